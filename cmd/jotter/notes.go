package main

import (
	"github.com/spf13/cobra"

	"jotter/internal/api"
	"jotter/internal/config"
	"jotter/internal/models"
)

func newNoteCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{Use: "note", Short: "Create and inspect notes"}
	cmd.AddCommand(
		newNoteCreateCmd(cfg, jsonOutput),
		newNoteShowCmd(cfg, jsonOutput),
	)
	return cmd
}

func newNoteCreateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var req api.NoteCreateRequest

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a note to attach files to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				note, err := client.CreateNote(cmd.Context(), req)
				if err != nil {
					return err
				}
				return writeNote(note, *jsonOutput)
			})
		},
	}

	cmd.Flags().StringVar(&req.Title, "title", "", "note title (required)")
	cmd.Flags().StringVar(&req.Content, "content", "", "note body")
	cmd.Flags().StringSliceVar(&req.Tags, "tag", nil, "tag (repeatable)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newNoteShowCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "show <note-id>",
		Short: "Show a note with its attachments",
		Args:  requireExactlyArgs(1, "note id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				note, err := client.GetNote(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeNote(note, *jsonOutput)
			})
		},
	}
}

func writeNote(note models.Note, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(note)
	}
	return writeNoteDetail(note)
}
