package extractor

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const maxFilenameRunes = 200

var (
	reservedChars = regexp.MustCompile(`[\\/:"*?<>|]+`)
	whitespace    = regexp.MustCompile(`\s+`)
)

// SanitizeFilename replaces path and shell reserved characters with "_",
// collapses whitespace and caps the result at 200 characters.
func SanitizeFilename(name string) string {
	name = reservedChars.ReplaceAllString(name, "_")
	name = strings.TrimSpace(name)
	name = whitespace.ReplaceAllString(name, " ")

	runes := []rune(name)
	if len(runes) > maxFilenameRunes {
		name = string(runes[:maxFilenameRunes])
	}
	return name
}

// ApplyDesiredName renames path to the sanitized desired name, keeping the
// extension. If another file already holds that name an 8 hex character
// suffix is appended instead of overwriting it.
func ApplyDesiredName(path, desired string) (string, error) {
	safe := SanitizeFilename(desired)
	if safe == "" {
		return path, nil
	}

	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	target := filepath.Join(dir, safe+ext)
	if target == path {
		return path, nil
	}
	if _, err := os.Lstat(target); err == nil {
		suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
		target = filepath.Join(dir, safe+"_"+suffix+ext)
	}

	if err := os.Rename(path, target); err != nil {
		return path, err
	}
	return target, nil
}
