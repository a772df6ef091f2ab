package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"crossdock/internal/ipc"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent scan outcomes, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.History(limit)
				if err != nil {
					return err
				}
				if len(resp.Outcomes) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No scans this session")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderHistory(resp.Outcomes))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum entries to show (0 shows all)")
	return cmd
}

func renderHistory(outcomes []ipc.OutcomeDTO) string {
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		code := o.Code
		if code == "" {
			code = "-"
		}
		rows = append(rows, []string{
			o.Timestamp.Local().Format("15:04:05"),
			o.Class,
			o.Reference,
			code,
			o.Message,
		})
	}
	return renderTable(
		[]string{"Time", "Class", "Reference", "Code", "Message"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
	)
}
