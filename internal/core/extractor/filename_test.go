package extractor

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Reserved characters",
			input:    `a\b/c:d"e*f?g<h>i|j`,
			expected: "a_b_c_d_e_f_g_h_i_j",
		},
		{
			name:     "Runs collapse to one underscore",
			input:    "AC/DC::Live",
			expected: "AC_DC_Live",
		},
		{
			name:     "Whitespace collapsed and trimmed",
			input:    "  my   song \t title ",
			expected: "my song title",
		},
		{
			name:     "Unicode kept",
			input:    "Café – 日本語",
			expected: "Café – 日本語",
		},
		{
			name:     "Length capped at 200 characters",
			input:    strings.Repeat("é", 250),
			expected: strings.Repeat("é", 200),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.input); got != tt.expected {
				t.Errorf("SanitizeFilename(%q) = %q; want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestApplyDesiredName(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "Some Title.mp3")
	writeSized(t, src, 1)

	got, err := ApplyDesiredName(src, "my: song")
	if err != nil {
		t.Fatalf("ApplyDesiredName: %v", err)
	}
	if got != filepath.Join(dir, "my_ song.mp3") {
		t.Errorf("renamed to %q", got)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source should be gone after rename")
	}
}

func TestApplyDesiredNameCollision(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "song.mp3")
	writeSized(t, existing, 7)
	src := filepath.Join(dir, "Downloaded Track.mp3")
	writeSized(t, src, 3)

	got, err := ApplyDesiredName(src, "song")
	if err != nil {
		t.Fatalf("ApplyDesiredName: %v", err)
	}
	if !regexp.MustCompile(`^song_[0-9a-f]{8}\.mp3$`).MatchString(filepath.Base(got)) {
		t.Errorf("collision name = %q; want song_<8 hex>.mp3", filepath.Base(got))
	}

	info, err := os.Stat(existing)
	if err != nil || info.Size() != 7 {
		t.Error("existing song.mp3 must not be overwritten")
	}
}

func TestApplyDesiredNameEmpty(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.mp4")
	writeSized(t, src, 1)

	got, err := ApplyDesiredName(src, " ?? ")
	if err != nil {
		t.Fatal(err)
	}
	// "??" sanitizes to "_", which is still a usable name
	if filepath.Base(got) != "_.mp4" {
		t.Errorf("got %q", got)
	}

	same, _ := ApplyDesiredName(got, "   ")
	if same != got {
		t.Errorf("blank desired name should keep %q, got %q", got, same)
	}
}
