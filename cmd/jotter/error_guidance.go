package main

import (
	"context"
	"errors"
	"net"

	"jotter/internal/api"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case "payload_too_large":
			lines = append(lines, "hint: the server limit is attachments.max_upload_bytes (JOTTER_ATTACH_MAX_UPLOAD_BYTES).")
		case "unsupported_type":
			lines = append(lines, "hint: pass --media-type explicitly or widen attachments.allowed_media_types.")
		case "not_found":
			if apiErr.ErrorCode == 2001 {
				lines = append(lines, "hint: create the note first with: jotter note create --title <title>")
			}
		}
		if apiErr.Code == "" {
			lines = append(lines, "hint: verify JOTTER_API_URL points to a jotter server.")
		}
		if apiErr.Status >= 500 {
			lines = append(lines, "hint: server returned an internal error; check server logs for the request id.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase JOTTER_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure a jotter server is running at JOTTER_API_URL.",
			"hint: start local server manually with: jotter srv",
			"hint: you can increase JOTTER_HTTP_TIMEOUT for slower environments.",
		)
		return uniqueLines(lines)
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
