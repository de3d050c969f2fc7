package main

import (
	"github.com/spf13/cobra"
)

const defaultConfigPath = "paramctl.toml"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "paramctl",
		Short:         "paramctl manages a tree of typed parameters and their hardware backends",
		Long:          `paramctl loads a parameter structure and its settings, applies the configuration selected by the current criteria and serves the remote command channel.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", defaultConfigPath, "Path to the daemon configuration file")

	root.AddCommand(newServeCmd(), newCheckCmd(), newInitCmd(), newSendCmd())
	return root
}

func configPath(cmd *cobra.Command) string {
	path, err := cmd.Flags().GetString("config")
	if err != nil || path == "" {
		return defaultConfigPath
	}
	return path
}
