package notification

import (
	"bytes"
	"log"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestShowErrorLogsSanitizedMessage(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(prev)

	ShowError("Analysis stopped", "remote failed:\nstatus 401")

	out := buf.String()
	if !strings.Contains(out, "Analysis stopped: remote failed:\\nstatus 401") {
		t.Fatalf("unexpected log output %q", out)
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc..."},
		{"Zahnärztin", 5, "Zahn..."},
		{"Zahnärztin", 6, "Zahnä..."},
		{"日本語", 4, "日..."},
	}
	for _, tt := range tests {
		got := truncate(tt.in, tt.max)
		if got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncate(%q, %d) produced invalid UTF-8", tt.in, tt.max)
		}
	}
}
