// Package engine wraps the external download tools: the general-purpose
// extraction engine (yt-dlp), spotdl and the instaloader CLI.
package engine

import (
	"context"
	"fmt"
)

const (
	FormatBestVideo = "bestvideo+bestaudio/best"
	FormatBestAudio = "bestaudio/best"
)

// Options selects what the engine downloads and where.
type Options struct {
	// Format is a yt-dlp format selector, FormatBestVideo when empty
	Format string

	// MergeFormat is the container merged streams are written to
	MergeFormat string

	// ExtractAudio converts the result to AudioFormat at AudioQuality
	ExtractAudio bool
	AudioFormat  string
	AudioQuality string

	// Output is the output template, e.g. <dir>/%(title)s.%(ext)s
	Output string

	CookieFile string
	UserAgent  string
}

// VideoOptions returns the options for a merged mp4 download into dir.
func VideoOptions(dir string) Options {
	return Options{
		Format:      FormatBestVideo,
		MergeFormat: "mp4",
		Output:      OutputTemplate(dir),
	}
}

// AudioOptions returns the options for an mp3 (quality 192) download into dir.
func AudioOptions(dir string) Options {
	return Options{
		Format:       FormatBestAudio,
		ExtractAudio: true,
		AudioFormat:  "mp3",
		AudioQuality: "192",
		Output:       OutputTemplate(dir),
	}
}

// OutputTemplate names files after the media title.
func OutputTemplate(dir string) string {
	return dir + "/%(title)s.%(ext)s"
}

// Result describes one finished download. Filename is the path the engine
// reported before post-processing, so it may carry the pre-conversion
// extension.
type Result struct {
	Filename string
	Title    string
}

// SearchResult is one candidate from a search query.
type SearchResult struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	WebpageURL string `json:"webpage_url"`
}

// Link returns the best URL to download the candidate from.
func (r SearchResult) Link() string {
	if r.WebpageURL != "" {
		return r.WebpageURL
	}
	if r.URL != "" {
		return r.URL
	}
	if r.ID != "" {
		return "https://www.youtube.com/watch?v=" + r.ID
	}
	return ""
}

// Engine is the general-purpose extraction engine.
type Engine interface {
	Download(ctx context.Context, url string, opts Options) (*Result, error)
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// Error carries the tool's diagnostic output with the failure.
type Error struct {
	Tool     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s failed", e.Tool)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit %d)", e.ExitCode)
	}
	if e.Stderr != "" {
		msg += ": " + tail(e.Stderr, 500)
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// tail keeps the last n bytes of s, where tools print the actual error
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
