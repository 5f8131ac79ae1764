package main

import (
	"testing"
)

func TestSanitizeEntryName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain recording", "ls20.random.100.abc123.recording.jsonl", "ls20.random.100.abc123.recording.jsonl"},
		{"leading dot-slash", "./ls20.random.100.abc123.recording.jsonl", "ls20.random.100.abc123.recording.jsonl"},
		{"leading slash", "/ls20.random.100.abc123.recording.jsonl", "ls20.random.100.abc123.recording.jsonl"},
		{"nested path rejected", "dir/ls20.abc.recording.jsonl", ""},
		{"traversal rejected", "../../etc/passwd", ""},
		{"non-recording rejected", "notes.txt", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeEntryName(tt.input); got != tt.want {
				t.Errorf("sanitizeEntryName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 bytes"},
		{512, "512 bytes"},
		{1023, "1023 bytes"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
		{1610612736, "1.5 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := formatSize(tt.bytes); got != tt.want {
				t.Errorf("formatSize(%d) = %q, want %q", tt.bytes, got, tt.want)
			}
		})
	}
}
