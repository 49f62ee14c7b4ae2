package extractor

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// scanTree lists files below dir (recursively) whose extension is in exts.
// Order is the lexical walk order.
func scanTree(dir string, exts ...string) []string {
	var out []string
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && hasExt(exts, strings.ToLower(filepath.Ext(path))) {
			out = append(out, path)
		}
		return nil
	})
	return out
}

// scanDir lists files directly in dir whose extension is in exts.
func scanDir(dir string, exts ...string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if hasExt(exts, strings.ToLower(filepath.Ext(e.Name()))) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out
}

// artifacts stats paths, skipping ones that vanished.
func artifacts(paths []string) []Artifact {
	out := make([]Artifact, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			continue
		}
		out = append(out, Artifact{Path: p, Size: info.Size(), Kind: KindOf(p)})
	}
	return out
}

// bySizeDesc sorts largest first; ties keep enumeration order.
func bySizeDesc(files []Artifact) {
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].Size > files[j].Size
	})
}

func ranked(files []Artifact) []Artifact {
	for i := range files {
		files[i].Rank = i
	}
	return files
}

// LargestN returns the n largest of paths.
func LargestN(paths []string, n int) []Artifact {
	files := artifacts(paths)
	bySizeDesc(files)
	if n >= 0 && len(files) > n {
		files = files[:n]
	}
	return ranked(files)
}

// SelectVideoThenImage picks the largest video, then the largest image
// while fewer than limit items are selected. Video comes first.
func SelectVideoThenImage(paths []string, limit int) []Artifact {
	var videos, images []Artifact
	for _, a := range artifacts(paths) {
		switch a.Kind {
		case KindVideo:
			videos = append(videos, a)
		case KindImage:
			images = append(images, a)
		}
	}
	bySizeDesc(videos)
	bySizeDesc(images)

	var selected []Artifact
	if len(videos) > 0 && len(selected) < limit {
		selected = append(selected, videos[0])
	}
	if len(images) > 0 && len(selected) < limit {
		selected = append(selected, images[0])
	}
	return ranked(selected)
}
