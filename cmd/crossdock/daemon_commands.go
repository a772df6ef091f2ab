package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"crossdock/internal/ipc"
)

func newLinkCommand(ctx *commandContext) *cobra.Command {
	linkCmd := &cobra.Command{
		Use:   "link up|down",
		Short: "Mark backend connectivity up or down",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var online bool
			switch args[0] {
			case "up":
				online = true
			case "down":
				online = false
			default:
				return errors.New("link takes 'up' or 'down'")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.LinkSet(online)
				if err != nil {
					return err
				}
				if resp.Online {
					fmt.Fprintln(cmd.OutOrStdout(), "Link marked online; queued scans will replay")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Link marked offline; shipment scans will queue")
				}
				return nil
			})
		},
	}
	return linkCmd
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the crossdock daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Stop(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopped")
				return nil
			})
		},
	}
}

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification through the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if err != nil {
					return err
				}
				if !resp.Sent {
					return fmt.Errorf("notification not sent: %s", resp.Message)
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				return nil
			})
		},
	}
}
