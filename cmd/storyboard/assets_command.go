package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"storyboard/internal/apiclient"
)

func newAssetsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "assets <project-id> <scene-id>",
		Short: "Show the archival history for a scene's start frame",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				history, err := client.SceneAssets(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, history)
				}
				if len(history) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No archived assets for this scene")
					return nil
				}

				rows := make([][]string, 0, len(history))
				for _, record := range history {
					rows = append(rows, []string{
						yesNo(record.IsCurrent),
						record.CreatedAt.Local().Format(time.DateTime),
						record.Provider,
						formatByteSize(record.ByteSize),
						record.PublicURL,
					})
				}
				table := renderTable(
					[]string{"Current", "Archived", "Provider", "Size", "URL"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}

func formatByteSize(size int64) string {
	switch {
	case size >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(size)/(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(size)/(1<<10))
	case size > 0:
		return fmt.Sprintf("%d B", size)
	default:
		return "-"
	}
}
