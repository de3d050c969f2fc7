package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/paramctl/internal/remote"
	"github.com/spf13/cobra"
)

func newSendCmd() *cobra.Command {
	var (
		addr    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "send <command> [args...]",
		Short: "Send one command to a running daemon and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			c, err := remote.Dial(ctx, addr)
			if err != nil {
				return err
			}
			defer c.Close()

			ans, err := c.Send(args[0], args[1:]...)
			if err != nil {
				return err
			}
			if !ans.Success() {
				return errors.New(ans.Text)
			}
			fmt.Fprintln(cmd.OutOrStdout(), ans.Text)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:5000", "Address of the remote command channel")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Dial timeout")
	return cmd
}
