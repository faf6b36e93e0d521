package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"jotter/internal/api"
	"jotter/internal/config"
	"jotter/internal/models"
)

type attachAddOptions struct {
	filename  string
	mediaType string
}

func newAttachCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{Use: "attach", Short: "Manage note attachments"}
	cmd.AddCommand(
		newAttachAddCmd(cfg, jsonOutput),
		newAttachListCmd(cfg, jsonOutput),
		newAttachGetCmd(cfg),
		newAttachRemoveCmd(cfg, jsonOutput),
	)
	return cmd
}

func newAttachAddCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	opts := &attachAddOptions{}
	cmd := &cobra.Command{
		Use:   "add <note-id> <path>...",
		Short: "Upload files and attach them to a note",
		Args:  requireAtLeastArgs(2, "note id and at least one path are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			noteID, paths := args[0], args[1:]
			if len(paths) > 1 && strings.TrimSpace(opts.filename) != "" {
				return fmt.Errorf("--filename applies to a single path only")
			}

			files := make([]api.UploadFile, 0, len(paths))
			for _, path := range paths {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				defer f.Close()
				files = append(files, api.UploadFile{
					Filename:  chooseFirst(opts.filename, filepath.Base(path)),
					MediaType: chooseFirst(opts.mediaType, mediaTypeForPath(path)),
					Content:   f,
				})
			}

			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				if len(files) == 1 {
					size := int64(-1)
					if info, err := os.Stat(paths[0]); err == nil {
						size = info.Size()
					}
					file := files[0]
					attachment, err := client.UploadAttachment(cmd.Context(), noteID, file.Filename, file.MediaType, file.Content, size)
					if err != nil {
						return err
					}
					if *jsonOutput {
						return writeJSON(attachment)
					}
					return writeAttachmentDetail(attachment)
				}

				resp, err := client.UploadAttachments(cmd.Context(), noteID, files)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				if err := writeAttachmentList(resp.Attachments); err != nil {
					return err
				}
				for _, failed := range resp.Errors {
					if err := writePlain("failed: %s: %s\n", failed.Filename, failed.Error); err != nil {
						return err
					}
				}
				if len(resp.Errors) > 0 {
					return fmt.Errorf("%d of %d files were not attached", len(resp.Errors), len(files))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.filename, "filename", "", "display filename (single path only)")
	cmd.Flags().StringVar(&opts.mediaType, "media-type", "", "media type (default: guessed from extension)")
	return cmd
}

func newAttachListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "list <note-id>",
		Short: "List attachments of a note in upload order",
		Args:  requireExactlyArgs(1, "note id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				resp, err := client.ListAttachments(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writeAttachmentList(resp.Attachments)
			})
		},
	}
}

func newAttachGetCmd(cfg *config.Config) *cobra.Command {
	var (
		outPath string
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "get <storage-key>",
		Short: "Download stored attachment content",
		Args:  requireExactlyArgs(1, "storage key is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(outPath) == "" {
				outPath = args[0]
			}
			if !force {
				if _, err := os.Stat(outPath); err == nil {
					return fmt.Errorf("output file exists (use --force to overwrite)")
				}
			}

			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				f, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
				if err != nil {
					return err
				}
				defer f.Close()

				contentType, n, err := client.DownloadAttachment(cmd.Context(), args[0], f)
				if err != nil {
					_ = f.Close()
					_ = os.Remove(outPath)
					return err
				}
				return writePlain("%s (%s, %s)\n", outPath, contentType, humanize.IBytes(uint64(n)))
			})
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "output path (default: the storage key)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite output path if it exists")
	return cmd
}

func newAttachRemoveCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <note-id> <attachment-id>",
		Short: "Remove an attachment and its stored content",
		Args:  requireExactlyArgs(2, "note id and attachment id are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				resp, err := client.DeleteAttachment(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writePlain("%s removed, %d left on %s\n", args[1], len(resp.Attachments), resp.NoteID)
			})
		},
	}
}

// mediaTypeForPath guesses from the extension; the server has the final say.
func mediaTypeForPath(path string) string {
	if mediaType := mime.TypeByExtension(filepath.Ext(path)); mediaType != "" {
		return mediaType
	}
	return models.FallbackContentType
}

func chooseFirst(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
