package extractor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/guiyumin/mediadrop/internal/core/engine"
)

type staticTitle string

func (s staticTitle) Title(context.Context, string) (string, error) { return string(s), nil }

const trackURL = "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC"

func TestSpotifySpotdlSuccess(t *testing.T) {
	dir := t.TempDir()
	sp := &fakeSpotdl{run: func(d string) engine.RunResult {
		writeSized(t, filepath.Join(d, "Artist - Track.mp3"), 10)
		return engine.RunResult{}
	}}
	eng := &fakeEngine{}

	s := &SpotifyStrategy{Spotdl: sp, Engine: eng}
	got, err := s.Acquire(context.Background(), Request{URL: trackURL, Dir: dir})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if len(got) != 1 || got[0].Kind != KindAudio {
		t.Errorf("got %v", paths(got))
	}
	if len(eng.queries) != 0 {
		t.Error("search must not run when spotdl produced audio")
	}
}

func TestSpotifyExitZeroWithoutFileFallsBack(t *testing.T) {
	dir := t.TempDir()
	sp := &fakeSpotdl{run: func(string) engine.RunResult { return engine.RunResult{} }}
	eng := &fakeEngine{
		results: []engine.SearchResult{
			{ID: "bad"},
			{ID: "good", WebpageURL: "https://www.youtube.com/watch?v=good"},
		},
		download: func(url string, opts engine.Options) (*engine.Result, error) {
			if url != "https://www.youtube.com/watch?v=good" {
				return nil, errors.New("unavailable")
			}
			if opts.Format != engine.FormatBestAudio {
				t.Errorf("first format tried should be bestaudio, got %s", opts.Format)
			}
			writeSized(t, filepath.Join(outDir(opts), "Track.mp3"), 42)
			return &engine.Result{}, nil
		},
	}

	s := &SpotifyStrategy{Spotdl: sp, Engine: eng, Metadata: staticTitle("Track - Artist")}
	got, err := s.Acquire(context.Background(), Request{URL: trackURL, Dir: dir})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if len(got) != 1 || filepath.Base(got[0].Path) != "Track.mp3" {
		t.Errorf("got %v", paths(got))
	}
	if len(eng.queries) != 1 || eng.queries[0] != "Track - Artist" {
		t.Errorf("queries = %v", eng.queries)
	}
	// bad candidate: two formats, good candidate: first format
	if len(eng.calls) != 3 {
		t.Errorf("download calls = %d; want 3", len(eng.calls))
	}
	if eng.calls[1].Opts.Format != engine.FormatBestVideo || eng.calls[1].Opts.MergeFormat != "mp4" {
		t.Errorf("second attempt options = %+v", eng.calls[1].Opts)
	}
}

func TestSpotifyQueryFallsBackToURL(t *testing.T) {
	sp := &fakeSpotdl{run: func(string) engine.RunResult { return engine.RunResult{ExitCode: 1, Stderr: "boom"} }}
	eng := &fakeEngine{}
	s := &SpotifyStrategy{Spotdl: sp, Engine: eng, Metadata: staticTitle("")}

	_, err := s.Acquire(context.Background(), Request{URL: trackURL, Dir: t.TempDir()})
	if !errors.Is(err, ErrNoAudioFound) || !errors.Is(err, ErrAcquisitionFailed) {
		t.Errorf("error = %v; want ErrNoAudioFound", err)
	}
	if len(eng.queries) != 1 || eng.queries[0] != trackURL {
		t.Errorf("queries = %v; want the track url", eng.queries)
	}
}

func TestOEmbedTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("url") != trackURL {
			t.Errorf("url param = %q", r.URL.Query().Get("url"))
		}
		w.Write([]byte(`{"title":"Track - Artist","type":"rich"}`))
	}))
	defer srv.Close()

	o := &OEmbed{Client: srv.Client(), Endpoint: srv.URL}
	title, err := o.Title(context.Background(), trackURL)
	if err != nil {
		t.Fatalf("Title: %v", err)
	}
	if title != "Track - Artist" {
		t.Errorf("title = %q", title)
	}
}
