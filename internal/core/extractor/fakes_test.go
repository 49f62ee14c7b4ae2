package extractor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/guiyumin/mediadrop/internal/core/engine"
)

func writeSized(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatal(err)
	}
}

type downloadCall struct {
	URL  string
	Opts engine.Options
}

// fakeEngine records calls and runs download to simulate output
type fakeEngine struct {
	mu       sync.Mutex
	calls    []downloadCall
	queries  []string
	download func(url string, opts engine.Options) (*engine.Result, error)
	results  []engine.SearchResult
	err      error
}

func (f *fakeEngine) Download(ctx context.Context, url string, opts engine.Options) (*engine.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, downloadCall{URL: url, Opts: opts})
	f.mu.Unlock()
	if f.download == nil {
		return nil, errors.New("engine: unavailable")
	}
	return f.download(url, opts)
}

func (f *fakeEngine) Search(ctx context.Context, query string, limit int) ([]engine.SearchResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	return f.results, f.err
}

// outDir recovers the directory from an output template
func outDir(opts engine.Options) string {
	return filepath.Dir(opts.Output)
}

type fakeSpotdl struct {
	calls int
	run   func(dir string) engine.RunResult
}

func (f *fakeSpotdl) Download(ctx context.Context, url, dir string) engine.RunResult {
	f.calls++
	return f.run(dir)
}

type fakePostClient struct {
	authErr error
	fetch   func(dir string) error
	cookies int
}

func (f *fakePostClient) Authenticate(ctx context.Context) error { return f.authErr }

func (f *fakePostClient) FetchPost(ctx context.Context, shortcode, dir string) ([]string, error) {
	if f.fetch == nil {
		return nil, errors.New("login required")
	}
	return nil, f.fetch(dir)
}

func (f *fakePostClient) ExportCookies(path string) (int, error) {
	if f.cookies == 0 {
		return 0, nil
	}
	return f.cookies, os.WriteFile(path, []byte("# Netscape HTTP Cookie File\n"), 0600)
}

type fakeFetcher struct {
	html string
	err  error
}

func (f *fakeFetcher) Name() string { return "fake" }

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (string, error) {
	return f.html, f.err
}

type fakeCLI struct {
	calls   int
	args    []string
	produce func(dir string)
	res     engine.RunResult
}

func (f *fakeCLI) Download(ctx context.Context, shortcode, dir, username, sessionFile string) engine.RunResult {
	f.calls++
	f.args = []string{shortcode, dir, username, sessionFile}
	if f.produce != nil {
		f.produce(dir)
	}
	return f.res
}
