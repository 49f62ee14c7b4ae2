package registry

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/guiyumin/mediadrop/internal/core/logger"
)

// Release deletes a served file and prunes the empty directories above it
// inside the root. With a non-empty id the entry is removed first and the
// deletion only happens if this call won it. Errors are logged, never
// returned.
func (r *Registry) Release(id, path string) {
	if id != "" {
		e, ok := r.Remove(id)
		if !ok {
			return
		}
		path = e.Path
	}
	r.deletePath(path)
}

// deletePath removes path (recursively for directories) and then its
// empty parents, never leaving the storage root.
func (r *Registry) deletePath(path string) {
	if path == "" {
		return
	}
	if !within(r.root, path) {
		log.Emit(logger.WARNING, "Refusing to delete %s outside %s", path, r.root)
		return
	}

	info, err := os.Lstat(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		log.Emit(logger.WARNING, "Cleanup stat %s failed: %v", path, err)
	case info.IsDir():
		if err := os.RemoveAll(path); err != nil {
			log.Emit(logger.WARNING, "Cleanup error removing %s: %v", path, err)
		}
	default:
		if err := os.Remove(path); err != nil {
			log.Emit(logger.WARNING, "Cleanup error removing %s: %v", path, err)
		}
	}

	r.pruneParents(filepath.Dir(path))
}

// pruneParents walks up from dir removing empty directories until it hits
// a non-empty one or the root.
func (r *Registry) pruneParents(dir string) {
	if r.root == "" {
		return
	}
	for {
		if !within(r.root, dir) {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			log.Emit(logger.DEBUG, "Could not prune %s: %v", dir, err)
			return
		}
		dir = filepath.Dir(dir)
	}
}

// resolve returns the absolute, symlink-free form of path. For a path
// that no longer exists the nearest existing ancestor is resolved and the
// rest appended.
func resolve(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	var rest []string
	cur := abs
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			for i := len(rest) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, rest[i])
			}
			return resolved, true
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", false
		}
		rest = append(rest, filepath.Base(cur))
		cur = parent
	}
}

// within reports whether path lies strictly inside root once both are
// resolved. An empty root disables the guard.
func within(root, path string) bool {
	if root == "" {
		return true
	}
	realRoot, ok := resolve(root)
	if !ok {
		return false
	}
	realPath, ok := resolve(path)
	if !ok {
		return false
	}
	rel, err := filepath.Rel(realRoot, realPath)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
