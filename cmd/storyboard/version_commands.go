package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"storyboard/internal/apiclient"
)

func newVersionCommand(ctx *commandContext) *cobra.Command {
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Manage document versions",
	}

	versionCmd.AddCommand(newVersionSaveCommand(ctx))
	versionCmd.AddCommand(newVersionListCommand(ctx))
	versionCmd.AddCommand(newVersionShowCommand(ctx))
	versionCmd.AddCommand(newVersionRestoreCommand(ctx))
	return versionCmd
}

func newVersionSaveCommand(ctx *commandContext) *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "save <project-id>",
		Short: "Cut an immutable version from the live document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				version, err := client.SaveVersion(cmd.Context(), args[0], description)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved version %d\n", version.Number)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&description, "message", "m", "", "Version description")
	return cmd
}

func newVersionListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list <project-id>",
		Short: "List saved versions, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				versions, err := client.ListVersions(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, versions)
				}
				if len(versions) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No versions saved")
					return nil
				}

				rows := make([][]string, 0, len(versions))
				for _, version := range versions {
					rows = append(rows, []string{
						strconv.Itoa(version.Number),
						version.CreatedAt.Local().Format(time.DateTime),
						version.Description,
					})
				}
				table := renderTable(
					[]string{"Version", "Created", "Description"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}

func newVersionShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id> <number>",
		Short: "Print a version snapshot as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid version number %q", args[1])
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				version, err := client.GetVersion(cmd.Context(), args[0], number)
				if err != nil {
					return err
				}
				return writeJSON(cmd, version)
			})
		},
	}
}

func newVersionRestoreCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <project-id> <number>",
		Short: "Replace the live document with a version snapshot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid version number %q", args[1])
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				version, err := client.RestoreVersion(cmd.Context(), args[0], number)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restored version %d as new version %d\n", number, version.Number)
				return nil
			})
		},
	}
}
