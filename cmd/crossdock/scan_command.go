package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"crossdock/internal/ipc"
	"crossdock/internal/scan"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "scan TOKEN",
		Short: "Submit a token to the scan station",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Scan(args[0], source)
				if err != nil {
					return err
				}
				printOutcome(cmd, resp.Outcome)
				if resp.Outcome.Class == string(scan.ClassError) {
					return fmt.Errorf("scan failed: %s", resp.Outcome.Code)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&source, "source", "manual", "Input source (wedge, camera, manual)")
	return cmd
}

func printOutcome(cmd *cobra.Command, outcome ipc.OutcomeDTO) {
	out := cmd.OutOrStdout()
	marker := "OK"
	switch {
	case outcome.Class == string(scan.ClassError):
		marker = "ERR"
	case outcome.Duplicate:
		marker = "DUP"
	case outcome.Class == string(scan.ClassQueued):
		marker = "QUEUED"
	case outcome.Class == string(scan.ClassDebounced):
		marker = "ABSORBED"
	}

	line := fmt.Sprintf("[%s] %s", marker, outcome.Message)
	if outcome.Code != "" && outcome.Class == string(scan.ClassError) {
		line = fmt.Sprintf("%s (%s)", line, outcome.Code)
	}
	if outcome.Retryable {
		line += " - safe to retry"
	}
	fmt.Fprintln(out, strings.TrimSpace(line))
}
