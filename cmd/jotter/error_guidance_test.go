package main

import (
	"context"
	"fmt"
	"net"
	"testing"

	"jotter/internal/api"
)

func TestFormatCLIError_NetworkGuidance(t *testing.T) {
	err := &net.DNSError{Err: "dial tcp: connection refused", Name: "127.0.0.1", IsTemporary: true}
	lines := formatCLIError(err)
	if !containsLine(lines, "hint: ensure a jotter server is running at JOTTER_API_URL.") {
		t.Fatalf("expected connectivity guidance, got %v", lines)
	}
	if !containsLine(lines, "hint: start local server manually with: jotter srv") {
		t.Fatalf("expected manual-start guidance, got %v", lines)
	}
}

func TestFormatCLIError_APIUnknownServiceGuidance(t *testing.T) {
	err := &api.APIError{Status: 404, Message: "api error: 404 Not Found"}
	lines := formatCLIError(err)
	if !containsLine(lines, "hint: verify JOTTER_API_URL points to a jotter server.") {
		t.Fatalf("expected api-url guidance, got %v", lines)
	}
}

func TestFormatCLIError_UploadGuidance(t *testing.T) {
	tests := []struct {
		name string
		err  *api.APIError
		hint string
	}{
		{
			name: "too large",
			err:  &api.APIError{Status: 413, Code: "payload_too_large", ErrorCode: 1002, Message: "file too large"},
			hint: "hint: the server limit is attachments.max_upload_bytes (JOTTER_ATTACH_MAX_UPLOAD_BYTES).",
		},
		{
			name: "unsupported type",
			err:  &api.APIError{Status: 415, Code: "unsupported_type", ErrorCode: 1015, Message: "unsupported media type"},
			hint: "hint: pass --media-type explicitly or widen attachments.allowed_media_types.",
		},
		{
			name: "missing note",
			err:  &api.APIError{Status: 404, Code: "not_found", ErrorCode: 2001, Message: "note not found"},
			hint: "hint: create the note first with: jotter note create --title <title>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := formatCLIError(fmt.Errorf("attach: %w", tt.err))
			if !containsLine(lines, tt.hint) {
				t.Fatalf("expected %q, got %v", tt.hint, lines)
			}
		})
	}
}

func TestFormatCLIError_MissingAttachmentHasNoNoteHint(t *testing.T) {
	err := &api.APIError{Status: 404, Code: "not_found", ErrorCode: 2003, Message: "attachment not found"}
	lines := formatCLIError(err)
	if len(lines) != 1 {
		t.Fatalf("expected only the error line, got %v", lines)
	}
}

func TestFormatCLIError_APIInternalGuidance(t *testing.T) {
	err := &api.APIError{Status: 500, Code: "internal", Message: "internal error"}
	lines := formatCLIError(err)
	if !containsLine(lines, "hint: server returned an internal error; check server logs for the request id.") {
		t.Fatalf("expected internal-error guidance, got %v", lines)
	}
}

func TestFormatCLIError_Timeout(t *testing.T) {
	lines := formatCLIError(fmt.Errorf("upload: %w", context.DeadlineExceeded))
	if !containsLine(lines, "hint: request timed out; check server health or increase JOTTER_HTTP_TIMEOUT.") {
		t.Fatalf("expected timeout guidance, got %v", lines)
	}
}

func containsLine(lines []string, expected string) bool {
	for _, line := range lines {
		if line == expected {
			return true
		}
	}
	return false
}
