package extractor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/guiyumin/mediadrop/internal/core/logger"
	"github.com/guiyumin/mediadrop/internal/core/registry"
)

var svcLog = logger.Get("Download")

// Registrar records a deliverable file and hands back its id.
type Registrar interface {
	Register(path string) (registry.Entry, error)
}

// workdirHolder is implemented by registries that keep the orphan sweep
// away from directories still being written.
type workdirHolder interface {
	Hold(dir string)
	Unhold(dir string)
}

// Task is one request's isolated working directory.
type Task struct {
	ID  string
	Dir string
}

// SubmitRequest is what a client asks for.
type SubmitRequest struct {
	URL       string
	Platform  string
	MediaType string

	// Filename is the desired name (without extension) of the first file
	Filename string
}

// File is one registered deliverable.
type File struct {
	ID       string
	Path     string
	Filename string
	Kind     Kind
}

// Submission is the outcome of a successful Submit.
type Submission struct {
	Platform Platform
	Task     Task
	Files    []File
}

// Acquisition is the outcome of Acquire: files on disk, not yet registered.
// The task directory stays held until Done is called.
type Acquisition struct {
	Platform  Platform
	Task      Task
	Artifacts []Artifact

	done func()
}

// Done releases the hold on the task directory. It is safe to call more
// than once.
func (a *Acquisition) Done() {
	if a.done != nil {
		a.done()
		a.done = nil
	}
}

// Service runs a request through detection, the platform strategy and
// registration.
type Service struct {
	root       string
	strategies map[Platform]Strategy
	registry   Registrar
}

// NewService creates a service writing task directories under root.
func NewService(root string, reg Registrar, strategies map[Platform]Strategy) *Service {
	return &Service{
		root:       root,
		strategies: strategies,
		registry:   reg,
	}
}

// Root returns the storage root.
func (s *Service) Root() string {
	return s.root
}

// Submit acquires the media, applies the desired name to the first file
// and registers every file.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Submission, error) {
	acq, err := s.Acquire(ctx, req)
	if err != nil {
		return nil, err
	}
	defer acq.Done()

	sub := &Submission{Platform: acq.Platform, Task: acq.Task}
	for i, a := range acq.Artifacts {
		path := a.Path
		if i == 0 && strings.TrimSpace(req.Filename) != "" {
			renamed, err := ApplyDesiredName(path, req.Filename)
			if err != nil {
				svcLog.Emit(logger.WARNING, "Rename of %s failed, keeping original name: %v", filepath.Base(path), err)
			}
			path = renamed
		}

		entry, err := s.registry.Register(path)
		if err != nil {
			s.discard(acq.Task)
			return nil, fmt.Errorf("failed to register %s: %w", filepath.Base(path), err)
		}
		sub.Files = append(sub.Files, File{
			ID:       entry.ID,
			Path:     entry.Path,
			Filename: filepath.Base(entry.Path),
			Kind:     a.Kind,
		})
	}

	svcLog.Emit(logger.INFO, "Task %s (%s) registered %d file(s)", acq.Task.ID, acq.Platform, len(sub.Files))
	return sub, nil
}

// Acquire resolves the platform, creates the task directory and runs the
// strategy. Nothing is created when the platform cannot be resolved, and
// the directory is removed when the strategy fails. On success the caller
// must call Done once it no longer needs the files in place.
func (s *Service) Acquire(ctx context.Context, req SubmitRequest) (*Acquisition, error) {
	url := strings.TrimSpace(req.URL)
	platform, err := Resolve(url, req.Platform)
	if err != nil {
		return nil, err
	}

	strategy, ok := s.strategies[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, platform)
	}

	task, err := s.newTask()
	if err != nil {
		return nil, err
	}
	done := s.hold(task.Dir)

	svcLog.Emit(logger.INFO, "Task %s: %s via %s", task.ID, url, strategy.Name())
	files, err := strategy.Acquire(ctx, Request{
		URL:       url,
		Dir:       task.Dir,
		MediaType: ParseMediaType(req.MediaType),
	})
	if err == nil && len(files) == 0 {
		err = acquisitionError(platform, nil, errNoOutput)
	}
	if err != nil {
		svcLog.Emit(logger.ERROR, "Task %s failed: %v", task.ID, err)
		s.discard(task)
		done()
		return nil, err
	}

	return &Acquisition{Platform: platform, Task: task, Artifacts: files, done: done}, nil
}

// hold marks dir busy on the registry, when it supports that, and returns
// the matching release.
func (s *Service) hold(dir string) func() {
	h, ok := s.registry.(workdirHolder)
	if !ok {
		return func() {}
	}
	h.Hold(dir)
	return func() { h.Unhold(dir) }
}

func (s *Service) newTask() (Task, error) {
	id := uuid.New().String()
	dir := filepath.Join(s.root, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Task{}, fmt.Errorf("failed to create task dir: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err == nil {
		dir = abs
	}
	return Task{ID: id, Dir: dir}, nil
}

// discard removes a failed task's directory. Errors are only logged.
func (s *Service) discard(t Task) {
	if err := os.RemoveAll(t.Dir); err != nil {
		svcLog.Emit(logger.WARNING, "Failed to remove task dir %s: %v", t.Dir, err)
	}
}
