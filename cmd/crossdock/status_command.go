package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"crossdock/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and session status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				stats, err := client.Stats()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderStatus(status, stats))
				return nil
			})
		},
	}
}

func renderStatus(status *ipc.StatusResponse, stats *ipc.StatsResponse) string {
	manifest := "-"
	if status.ActiveManifest != "" {
		manifest = fmt.Sprintf("%s (%s)", status.ActiveManifest, status.ManifestStatus)
	}
	linkState := "online"
	if !status.Online {
		linkState = "offline"
	}
	if status.Draining {
		linkState += ", draining queue"
	}

	rows := [][]string{
		{"Running", yesNo(status.Running)},
		{"PID", strconv.Itoa(status.PID)},
		{"Mode", status.Mode},
		{"Active manifest", manifest},
		{"Link", linkState},
		{"Queue pending", strconv.Itoa(status.QueuePending)},
		{"Queue failed", strconv.Itoa(status.QueueFailed)},
		{"Scans", strconv.Itoa(stats.ScanCount)},
		{"Successes", strconv.Itoa(stats.SuccessCount)},
		{"Errors", strconv.Itoa(stats.ErrorCount)},
		{"Duplicates", strconv.Itoa(stats.DuplicateCount)},
		{"Debounced", strconv.Itoa(stats.DebouncedCount)},
		{"Records DB", status.RecordsDBPath},
		{"Queue DB", status.QueueDBPath},
	}
	return renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft})
}
