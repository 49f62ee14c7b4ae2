package extractor

import (
	"context"
	"path/filepath"
	"strings"
)

// MediaType is the requested output flavour.
type MediaType string

const (
	MediaTypeVideo MediaType = "video"
	MediaTypeAudio MediaType = "audio"
)

// ParseMediaType maps free-form input to a MediaType, video by default.
func ParseMediaType(s string) MediaType {
	if strings.EqualFold(strings.TrimSpace(s), string(MediaTypeAudio)) {
		return MediaTypeAudio
	}
	return MediaTypeVideo
}

// Kind classifies an artifact by its extension.
type Kind string

const (
	KindVideo   Kind = "video"
	KindAudio   Kind = "audio"
	KindImage   Kind = "image"
	KindArchive Kind = "archive"
	KindOther   Kind = "other"
)

var (
	videoExts = []string{".mp4", ".webm", ".mkv", ".mov"}
	audioExts = []string{".mp3", ".m4a", ".flac", ".opus", ".ogg"}
	imageExts = []string{".jpg", ".jpeg", ".png"}
)

// KindOf classifies path by extension.
func KindOf(path string) Kind {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case hasExt(videoExts, ext):
		return KindVideo
	case hasExt(audioExts, ext):
		return KindAudio
	case hasExt(imageExts, ext):
		return KindImage
	case ext == ".zip":
		return KindArchive
	}
	return KindOther
}

// Artifact is one downloaded file.
type Artifact struct {
	Path string
	Size int64
	Kind Kind

	// Rank is the position in the strategy's preference order, 0 first
	Rank int
}

// Request is the input of a strategy.
type Request struct {
	URL       string
	Dir       string
	MediaType MediaType
}

// Strategy acquires media for one platform. Implementations write only
// under req.Dir and can be retried with a fresh directory.
type Strategy interface {
	Name() string
	Acquire(ctx context.Context, req Request) ([]Artifact, error)
}

func hasExt(list []string, ext string) bool {
	for _, e := range list {
		if e == ext {
			return true
		}
	}
	return false
}
