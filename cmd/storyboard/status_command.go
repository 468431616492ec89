package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"storyboard/internal/apiclient"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				status, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, status)
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				runningColor := ansiRed
				if status.Running {
					runningColor = ansiGreen
				}
				fmt.Fprintln(out, renderStatusLine("Running", yesNo(status.Running), colorize, runningColor))
				fmt.Fprintln(out, renderStatusLine("PID", strconv.Itoa(status.PID), colorize, ""))
				fmt.Fprintln(out, renderStatusLine("Database", status.DocumentDBPath, colorize, ""))
				fmt.Fprintln(out, renderStatusLine("Lock file", status.LockFilePath, colorize, ""))
				if status.APIAddress != "" {
					fmt.Fprintln(out, renderStatusLine("API address", status.APIAddress, colorize, ""))
				}
				dbValue := "unreachable"
				dbColor := ansiRed
				if status.Database.DatabaseReadable && status.Database.TableExists {
					dbValue = fmt.Sprintf("ok (%d projects)", status.Database.ProjectCount)
					dbColor = ansiGreen
				} else if status.Database.Error != "" {
					dbValue = status.Database.Error
				}
				fmt.Fprintln(out, renderStatusLine("Database health", dbValue, colorize, dbColor))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}

func newPhasesCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "phases <project-id>",
		Short: "Show the phase-gate states for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				states, err := client.Phases(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, states)
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, state := range states {
					value := "unlocked"
					if !state.CanProceed {
						value = "locked"
						if state.Reason != "" {
							value += " (" + state.Reason + ")"
						}
					}
					fmt.Fprintln(out, renderStatusLine(string(state.Phase), value, colorize, phaseColor(state.CanProceed)))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}
