package main

import (
	"fmt"
	"path/filepath"

	"github.com/danmuck/paramctl/internal/config"
	"github.com/spf13/cobra"
)

var starterFiles = []struct {
	kind string
	name string
}{
	{kind: "config", name: defaultConfigPath},
	{kind: "structure", name: "structure.yaml"},
	{kind: "settings", name: "settings.yaml"},
}

func newInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write starter configuration, structure and settings files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			for _, f := range starterFiles {
				path := filepath.Join(dir, f.name)
				if err := config.WriteTemplate(path, f.kind, force); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	return cmd
}
