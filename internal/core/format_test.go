package core

import (
	"testing"
	"time"
)

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 Bytes"},
		{1, "1 Bytes"},
		{1023, "1023 Bytes"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{2048, "2 KB"},
		{1234567, "1.18 MB"},
		{1048576, "1 MB"},
		{1073741824, "1 GB"},
		{5 * 1024 * 1073741824, "5120 GB"},
		{-10, "0 Bytes"},
	}
	for _, tt := range tests {
		if got := FormatFileSize(tt.in); got != tt.want {
			t.Errorf("FormatFileSize(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatTimestamp(t *testing.T) {
	got := FormatTimestamp("2024-01-01T00:00:00Z", time.UTC)
	if got != "Jan 1, 2024, 12:00:00 AM UTC" {
		t.Fatalf("got %q", got)
	}
	if got := FormatTimestamp("yesterday", time.UTC); got != "yesterday" {
		t.Fatalf("unparseable timestamps pass through, got %q", got)
	}
}

func TestRelativeTimestamp(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 5, 0, 0, time.UTC)
	if got := RelativeTimestamp("2024-01-01T00:00:00Z", now); got != "5 minutes ago" {
		t.Fatalf("got %q", got)
	}
	if got := RelativeTimestamp("", now); got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestSubmitsTask(t *testing.T) {
	tests := []struct {
		ev   KeyEvent
		want bool
	}{
		{KeyEvent{Key: "Enter"}, true},
		{KeyEvent{Key: "Enter", Shift: true}, false},
		{KeyEvent{Key: "Enter", Ctrl: true}, false},
		{KeyEvent{Key: "Enter", Shift: true, Ctrl: true}, false},
		{KeyEvent{Key: "a"}, false},
	}
	for _, tt := range tests {
		if got := SubmitsTask(tt.ev); got != tt.want {
			t.Errorf("SubmitsTask(%+v) = %v, want %v", tt.ev, got, tt.want)
		}
	}
}
