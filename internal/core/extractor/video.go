package extractor

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/guiyumin/mediadrop/internal/core/engine"
	"github.com/guiyumin/mediadrop/internal/core/logger"
)

// VideoStrategy hands the URL to the extraction engine. It serves YouTube
// and X; X ignores the audio mode.
type VideoStrategy struct {
	Platform  Platform
	Engine    engine.Engine
	VideoOnly bool
}

func (s *VideoStrategy) Name() string { return string(s.Platform) }

func (s *VideoStrategy) Acquire(ctx context.Context, req Request) ([]Artifact, error) {
	l := logger.Get(strings.ToUpper(string(s.Platform)))

	audio := req.MediaType == MediaTypeAudio && !s.VideoOnly
	opts := engine.VideoOptions(req.Dir)
	exts := videoExts
	if audio {
		opts = engine.AudioOptions(req.Dir)
		exts = []string{".mp3"}
	}

	res, err := s.Engine.Download(ctx, req.URL, opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		l.Emit(logger.WARNING, "Engine failed for %s: %v", req.URL, err)
		return nil, acquisitionError(s.Platform, ErrExtractionFailed, err)
	}

	if path := reportedPath(res, audio); path != "" && isInside(req.Dir, path) && fileExists(path) {
		return artifacts([]string{path}), nil
	}

	// the reported name can drift from the file on disk after merging or
	// conversion, fall back to what is actually there
	files := LargestN(scanDir(req.Dir, exts...), 1)
	if len(files) == 0 {
		return nil, acquisitionError(s.Platform, ErrExtractionFailed, errNoOutput)
	}
	return files, nil
}

// reportedPath is the engine's filename with the extension post-processing
// produces.
func reportedPath(res *engine.Result, audio bool) string {
	if res == nil || res.Filename == "" {
		return ""
	}
	path := res.Filename
	ext := filepath.Ext(path)
	switch {
	case audio:
		path = strings.TrimSuffix(path, ext) + ".mp3"
	case ext != ".mp4" && !fileExists(path):
		path = strings.TrimSuffix(path, ext) + ".mp4"
	}
	return path
}

func isInside(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != "." && !strings.HasPrefix(rel, "..")
}
