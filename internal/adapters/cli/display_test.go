package cli

import (
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"shorter than limit", "Widget", 28, "Widget"},
		{"exactly at limit", "abcdefghij", 10, "abcdefghij"},
		{"ascii over limit", "abcdefghijk", 10, "abcdefg..."},
		{"multibyte over limit", "Beratung für Büroausstattung", 10, "Beratun..."},
		{"multibyte at cut point", "ääääääääääää", 10, "äääääää..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncate(%q, %d) produced invalid UTF-8", tt.in, tt.n)
			}
		})
	}
}
