package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"storyboard/internal/apiclient"
	"storyboard/internal/imaging"
	"storyboard/internal/prompting"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Run generation stages",
	}

	generateCmd.AddCommand(newGeneratePromptsCommand(ctx))
	generateCmd.AddCommand(newGenerateImagesCommand(ctx))
	return generateCmd
}

func newGeneratePromptsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "prompts <project-id> [scene-id...]",
		Short: "Generate frame prompts for scenes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				result, err := client.GeneratePrompts(cmd.Context(), args[0], args[1:])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, result)
				}
				printPromptStage(cmd.OutOrStdout(), result.Result)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}

func newGenerateImagesCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "images <project-id> [scene-id...]",
		Short: "Generate and archive start frames for scenes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				result, err := client.GenerateImages(cmd.Context(), args[0], args[1:])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, result)
				}
				printImageStage(cmd.OutOrStdout(), result.Result)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}

func printPromptStage(out io.Writer, result prompting.BulkResult) {
	fmt.Fprintf(out, "Prompts generated for %d/%d scenes\n", result.SuccessfulScenes, result.Total)
	for _, item := range result.Results {
		fmt.Fprintf(out, "  %s: %d characters\n", item.SceneID, item.CharacterCount)
	}
	for _, itemErr := range result.Errors {
		fmt.Fprintf(out, "  %s: FAILED: %s\n", itemErr.SceneID, itemErr.Message)
	}
}

func printImageStage(out io.Writer, result imaging.BulkResult) {
	fmt.Fprintf(out, "Images generated for %d/%d scenes\n", result.SuccessfulScenes, result.Total)
	for _, item := range result.Results {
		suffix := ""
		if item.Fallback {
			suffix = " (fallback to provider URL)"
		}
		fmt.Fprintf(out, "  %s: %s%s\n", item.SceneID, item.URL, suffix)
	}
	for _, itemErr := range result.Errors {
		fmt.Fprintf(out, "  %s: FAILED: %s\n", itemErr.SceneID, itemErr.Message)
	}
}
