package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"storyboard/internal/apiclient"
)

func newProjectCommand(ctx *commandContext) *cobra.Command {
	projectCmd := &cobra.Command{
		Use:   "project",
		Short: "Manage storyboard projects",
	}

	projectCmd.AddCommand(newProjectCreateCommand(ctx))
	return projectCmd
}

func newProjectCreateCommand(ctx *commandContext) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "create <project-id>",
		Short: "Register a new project with an empty document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				state, err := client.CreateProject(cmd.Context(), args[0], title)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created project %s\n", state.Document.ProjectID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Project title")
	return cmd
}

func newDocumentCommand(ctx *commandContext) *cobra.Command {
	documentCmd := &cobra.Command{
		Use:   "document",
		Short: "Inspect and update the live project document",
	}

	documentCmd.AddCommand(newDocumentShowCommand(ctx))
	documentCmd.AddCommand(newDocumentPushCommand(ctx))
	return documentCmd
}

func newDocumentShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Print the live document as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				state, err := client.GetDocument(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd, state.Document)
			})
		},
	}
}

func newDocumentPushCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "push <project-id> <file>",
		Short: "Replace the live document from a JSON file without cutting a version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read document file: %w", err)
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				state, err := client.PutDocument(cmd.Context(), args[0], raw)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated document for %s (%d scenes)\n",
					state.Document.ProjectID, len(state.Document.Scenes))
				return nil
			})
		},
	}
}
