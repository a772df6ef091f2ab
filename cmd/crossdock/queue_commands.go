package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"crossdock/internal/ipc"
	"crossdock/internal/offline"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Offline scan queue operations",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var failedOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued scans",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				var statuses []string
				if failedOnly {
					statuses = []string{string(offline.StatusFailed)}
				}
				resp, err := client.QueueList(statuses)
				if err != nil {
					return err
				}
				if len(resp.Entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Offline queue is empty")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderQueue(resp.Entries))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Show only entries that exhausted their replay attempts")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [ID...]",
		Short: "Move failed entries back to pending (all failed entries when no IDs given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid entry id %q", arg)
				}
				ids = append(ids, id)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueRetry(ids)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d entr%s\n", resp.Updated, pluralY(resp.Updated))
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var failedOnly bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove queued scans",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				var removed int64
				if failedOnly {
					resp, err := client.QueueClearFailed()
					if err != nil {
						return err
					}
					removed = resp.Removed
				} else {
					resp, err := client.QueueClear()
					if err != nil {
						return err
					}
					removed = resp.Removed
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entr%s\n", removed, pluralY(removed))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Remove only entries in the failed set")
	return cmd
}

func renderQueue(entries []ipc.QueueEntry) string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		manifest := entry.ManifestCode
		if manifest == "" {
			manifest = "-"
		}
		lastError := entry.LastError
		if lastError == "" {
			lastError = "-"
		}
		rows = append(rows, []string{
			strconv.FormatInt(entry.ID, 10),
			entry.AWB,
			entry.Mode,
			manifest,
			entry.Status,
			strconv.Itoa(entry.AttemptCount),
			entry.EnqueuedAt.Local().Format("15:04:05"),
			lastError,
		})
	}
	return renderTable(
		[]string{"ID", "AWB", "Mode", "Manifest", "Status", "Attempts", "Enqueued", "Last Error"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	)
}

func pluralY(n int64) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
