package models

import "testing"

func TestContentTypeForKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{key: "0192f1c4-7a3b-7c2d-9e4f-1a2b3c4d5e6f.png", want: "image/png"},
		{key: "abc.JPG", want: "image/jpeg"},
		{key: "abc.jpeg", want: "image/jpeg"},
		{key: "abc.gif", want: "image/gif"},
		{key: "abc.pdf", want: "application/pdf"},
		{key: "abc.txt", want: "text/plain"},
		{key: "abc.doc", want: "application/msword"},
		{key: "abc.docx", want: "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		{key: "abc.exe", want: FallbackContentType},
		{key: "abc", want: FallbackContentType},
	}
	for _, tt := range tests {
		if got := ContentTypeForKey(tt.key); got != tt.want {
			t.Fatalf("ContentTypeForKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestTypeCategory(t *testing.T) {
	if got := TypeCategory("image/png"); got != "image" {
		t.Fatalf("expected image, got %q", got)
	}
	if got := TypeCategory("Application/PDF"); got != "application" {
		t.Fatalf("expected application, got %q", got)
	}
	if got := TypeCategory("garbage"); got != "" {
		t.Fatalf("expected empty category, got %q", got)
	}
}

func TestParseMediaType(t *testing.T) {
	got, err := ParseMediaType("Text/Plain; charset=utf-8")
	if err != nil {
		t.Fatalf("parse media type: %v", err)
	}
	if got != "text/plain" {
		t.Fatalf("expected text/plain, got %q", got)
	}

	if _, err := ParseMediaType(""); err == nil {
		t.Fatal("expected error for empty media type")
	}
	if _, err := ParseMediaType("not a type;;"); err == nil {
		t.Fatal("expected error for malformed media type")
	}
}
