package server

import (
	"strings"
	"testing"
)

func TestValidateNoteAndAttachmentIDs(t *testing.T) {
	tests := []struct {
		id       string
		note     bool
		attached bool
	}{
		{"nt-ab12cd", true, false},
		{"at-ab12cd", false, true},
		{"nt-ab12", false, false},    // too short
		{"nt-ab12cde", false, false}, // too long
		{"NT-ab12cd", false, false},
		{"nt-AB12CD", false, false},
		{"nt_ab12cd", false, false},
		{"", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := validateNoteID(tt.id); got != tt.note {
				t.Fatalf("validateNoteID(%q) = %v, want %v", tt.id, got, tt.note)
			}
			if got := validateAttachmentID(tt.id); got != tt.attached {
				t.Fatalf("validateAttachmentID(%q) = %v, want %v", tt.id, got, tt.attached)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"diagram.png", "diagram.png", false},
		{"  spaced name.pdf ", "spaced name.pdf", false},
		{"../../etc/passwd", "passwd", false},
		{`C:\Users\me\report.docx`, "report.docx", false},
		{"tab\there.txt", "tabhere.txt", false},
		{`quote"d.txt`, "quoted.txt", false},
		{"日本語.txt", "日本語.txt", false},
		{"", "", true},
		{"..", "", true},
		{"dir/", "dir", false},
		{"/", "", true},
		{"bad\xffname.txt", "", true},
		{strings.Repeat("a", 252) + ".txt", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := sanitizeFilename(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("sanitizeFilename(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil {
				assertAPIError(t, err, 400, ErrCodeInvalidFilename)
			}
			if got != tt.want {
				t.Fatalf("sanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFilenameExtension(t *testing.T) {
	tests := map[string]string{
		"photo.JPG":   ".jpg",
		"archive":     "",
		"a.tar.gz":    ".gz",
		"report.Docx": ".docx",
	}
	for input, want := range tests {
		if got := filenameExtension(input); got != want {
			t.Fatalf("filenameExtension(%q) = %q, want %q", input, got, want)
		}
	}
}
