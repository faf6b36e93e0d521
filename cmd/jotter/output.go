package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"jotter/internal/format"
	"jotter/internal/models"
)

var outputFormatter format.Formatter = format.JSONFormatter{}

func writeJSON(payload any) error {
	return outputFormatter.Write(os.Stdout, payload)
}

func writePlain(layout string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, layout, args...)
	return err
}

func writeNoteDetail(note models.Note) error {
	lines := []string{
		fmt.Sprintf("id: %s", note.ID),
		fmt.Sprintf("title: %s", note.Title),
		fmt.Sprintf("created_at: %s", formatTime(note.CreatedAt)),
		fmt.Sprintf("updated_at: %s", formatTime(note.UpdatedAt)),
	}
	if len(note.Tags) > 0 {
		lines = append(lines, fmt.Sprintf("tags: %s", strings.Join(note.Tags, ", ")))
	}
	if note.Content != "" {
		lines = append(lines, fmt.Sprintf("content: %s", note.Content))
	}
	if len(note.Attachments) > 0 {
		lines = append(lines, "attachments:")
		for _, attachment := range note.Attachments {
			lines = append(lines, "  "+formatAttachmentLine(attachment))
		}
	}
	return writePlain("%s\n", strings.Join(lines, "\n"))
}

func writeAttachmentList(attachments []models.Attachment) error {
	for _, attachment := range attachments {
		if err := writePlain("%s\n", formatAttachmentLine(attachment)); err != nil {
			return err
		}
	}
	return nil
}

func writeAttachmentDetail(attachment models.Attachment) error {
	lines := []string{
		fmt.Sprintf("id: %s", attachment.ID),
		fmt.Sprintf("filename: %s", attachment.Filename),
		fmt.Sprintf("storage_key: %s", attachment.StorageKey),
		fmt.Sprintf("mime_type: %s", attachment.MimeType),
		fmt.Sprintf("type_category: %s", attachment.TypeCategory),
		fmt.Sprintf("size: %s (%d bytes)", humanize.IBytes(uint64(attachment.SizeBytes)), attachment.SizeBytes),
		fmt.Sprintf("uploaded_at: %s", formatTime(attachment.UploadedAt)),
	}
	return writePlain("%s\n", strings.Join(lines, "\n"))
}

func formatAttachmentLine(attachment models.Attachment) string {
	return fmt.Sprintf("%s  %-9s %s  %s  (%s)",
		attachment.ID,
		humanize.IBytes(uint64(attachment.SizeBytes)),
		attachment.Filename,
		attachment.StorageKey,
		humanize.Time(attachment.UploadedAt),
	)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
