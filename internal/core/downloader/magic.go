package downloader

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// repairable maps detected MIME types to the extension a file of that type
// should carry. Types outside this set are left untouched.
var repairable = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
	"video/mp4":  "mp4",
	"audio/mpeg": "mp3",
}

// DetectFileType sniffs the file's content and returns the extension
// (without dot) it should carry, or "" if the type is not one we repair.
func DetectFileType(path string) (string, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", err
	}
	for m := mtype; m != nil; m = m.Parent() {
		if ext, ok := repairable[m.String()]; ok {
			return ext, nil
		}
	}
	return "", nil
}

// RenameByMagicBytes checks if the file's actual type differs from its extension
// and renames it if necessary. Returns the final path (renamed or original).
func RenameByMagicBytes(path string) string {
	detectedExt, err := DetectFileType(path)
	if err != nil || detectedExt == "" {
		return path
	}

	ext := filepath.Ext(path)
	currentExt := strings.TrimPrefix(ext, ".")
	if currentExt == "" || strings.EqualFold(currentExt, detectedExt) {
		return path
	}
	// jpeg and jpg are the same thing
	if detectedExt == "jpg" && strings.EqualFold(currentExt, "jpeg") {
		return path
	}

	newPath := path[:len(path)-len(ext)] + "." + detectedExt
	if _, err := os.Stat(newPath); err == nil {
		return path
	}
	if err := os.Rename(path, newPath); err != nil {
		return path
	}
	return newPath
}
