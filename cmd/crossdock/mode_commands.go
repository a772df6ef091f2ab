package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"crossdock/internal/ipc"
	"crossdock/internal/scan"
)

func newModeCommand(ctx *commandContext) *cobra.Command {
	modeCmd := &cobra.Command{
		Use:   "mode",
		Short: "Operation mode control",
	}

	names := make([]string, 0, len(scan.AllModes()))
	for _, mode := range scan.AllModes() {
		names = append(names, string(mode))
	}

	setCmd := &cobra.Command{
		Use:   "set MODE",
		Short: fmt.Sprintf("Switch operation mode (%s)", strings.Join(names, ", ")),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ModeSet(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Mode set to %s\n", resp.Mode)
				return nil
			})
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the current operation mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Mode: %s\n", status.Mode)
				if status.ActiveManifest != "" {
					fmt.Fprintf(out, "Active manifest: %s (%s)\n", status.ActiveManifest, status.ManifestStatus)
				}
				return nil
			})
		},
	}

	modeCmd.AddCommand(setCmd)
	modeCmd.AddCommand(showCmd)
	return modeCmd
}

func newManifestCommand(ctx *commandContext) *cobra.Command {
	manifestCmd := &cobra.Command{
		Use:   "manifest",
		Short: "Active manifest control",
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop the active manifest binding",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.ManifestClear(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Active manifest cleared")
				return nil
			})
		},
	}

	manifestCmd.AddCommand(clearCmd)
	return manifestCmd
}

func newSessionCommand(ctx *commandContext) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Session control",
	}

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear manifest context and session history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.SessionReset(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Session reset")
				return nil
			})
		},
	}

	sessionCmd.AddCommand(resetCmd)
	return sessionCmd
}
