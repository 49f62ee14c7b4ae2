package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/guiyumin/mediadrop/internal/core/logger"
	"github.com/lrstanley/go-ytdlp"
)

var log = logger.Get("Engine")

// YtDlp drives the yt-dlp binary.
type YtDlp struct {
	// Bin is the executable name or path, "yt-dlp" when empty
	Bin string

	// Timeout bounds a single invocation
	Timeout time.Duration
}

func (y *YtDlp) command() *ytdlp.Command {
	cmd := ytdlp.New()
	if y.Bin != "" {
		cmd = cmd.SetExecutable(y.Bin)
	}
	return cmd
}

func (y *YtDlp) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if y.Timeout > 0 {
		return context.WithTimeout(ctx, y.Timeout)
	}
	return context.WithCancel(ctx)
}

// Download fetches url according to opts.
func (y *YtDlp) Download(ctx context.Context, url string, opts Options) (*Result, error) {
	ctx, cancel := y.withTimeout(ctx)
	defer cancel()

	format := opts.Format
	if format == "" {
		format = FormatBestVideo
	}

	cmd := y.command().
		NoPlaylist().
		NoWarnings().
		PrintJSON().
		Format(format)

	if opts.Output != "" {
		cmd = cmd.Output(opts.Output)
	}
	if opts.MergeFormat != "" {
		cmd = cmd.MergeOutputFormat(opts.MergeFormat)
	}
	if opts.ExtractAudio {
		cmd = cmd.ExtractAudio()
		if opts.AudioFormat != "" {
			cmd = cmd.AudioFormat(opts.AudioFormat)
		}
		if opts.AudioQuality != "" {
			cmd = cmd.AudioQuality(opts.AudioQuality)
		}
	}
	if opts.CookieFile != "" {
		cmd = cmd.Cookies(opts.CookieFile)
	}
	if opts.UserAgent != "" {
		cmd = cmd.AddHeaders("User-Agent:" + opts.UserAgent)
	}

	log.Emit(logger.DEBUG, "yt-dlp %s (format %s)", url, format)
	res, err := cmd.Run(ctx, url)
	if err != nil {
		return nil, runError(res, err)
	}

	out := &Result{}
	if info, err := res.GetExtractedInfo(); err == nil && len(info) > 0 {
		if info[0].Filename != nil {
			out.Filename = *info[0].Filename
		}
		if info[0].Title != nil {
			out.Title = *info[0].Title
		}
	}
	return out, nil
}

type searchPlaylist struct {
	Entries []*SearchResult `json:"entries"`
}

// Search runs a ytsearch query and returns up to limit candidates.
func (y *YtDlp) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}
	ctx, cancel := y.withTimeout(ctx)
	defer cancel()

	res, err := y.command().
		DumpSingleJSON().
		FlatPlaylist().
		NoWarnings().
		IgnoreErrors().
		Run(ctx, fmt.Sprintf("ytsearch%d:%s", limit, query))
	if err != nil {
		return nil, runError(res, err)
	}

	results, err := parseSearch(res.Stdout)
	if err != nil {
		return nil, err
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// parseSearch accepts either a playlist object with entries or a single
// video object, the latter being what a search with one hit may print.
func parseSearch(stdout string) ([]SearchResult, error) {
	stdout = strings.TrimSpace(stdout)
	if stdout == "" {
		return nil, nil
	}

	var pl searchPlaylist
	if err := json.Unmarshal([]byte(stdout), &pl); err != nil {
		return nil, fmt.Errorf("failed to parse search output: %w", err)
	}

	var out []SearchResult
	for _, e := range pl.Entries {
		if e != nil && e.Link() != "" {
			out = append(out, *e)
		}
	}
	if len(out) > 0 || pl.Entries != nil {
		return out, nil
	}

	var single SearchResult
	if err := json.Unmarshal([]byte(stdout), &single); err == nil && single.Link() != "" {
		return []SearchResult{single}, nil
	}
	return nil, nil
}

func runError(res *ytdlp.Result, err error) error {
	e := &Error{Tool: "yt-dlp", Err: err}
	if res != nil {
		e.ExitCode = res.ExitCode
		e.Stderr = strings.TrimSpace(res.Stderr)
	}
	return e
}
