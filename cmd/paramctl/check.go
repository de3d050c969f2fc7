package main

import (
	"fmt"
	"sort"

	"github.com/danmuck/paramctl/internal/config"
	"github.com/danmuck/paramctl/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// newCheckCmd loads everything the daemon would and prints the resulting
// status. Badger runs in memory so the real store is not written.
func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration, structure and settings files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.ConfigureRuntime()
			cfg, err := config.Load(configPath(cmd))
			if err != nil {
				return err
			}
			cfg.Badger.InMemory = true

			d, err := openDaemon(cfg, log.Logger)
			if err != nil {
				return err
			}
			defer d.close()

			st := d.engine.Status()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "system %s: %d bytes, %d subsystems\n", st.System, st.Bytes, len(st.Subsystems))
			for _, name := range sortedKeys(st.Domains) {
				fmt.Fprintf(out, "domain %s: %s\n", name, st.Domains[name])
			}
			fmt.Fprintln(out, "ok")
			return nil
		},
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
