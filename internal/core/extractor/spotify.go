package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/guiyumin/mediadrop/internal/core/engine"
	"github.com/guiyumin/mediadrop/internal/core/logger"
)

var spotifyLog = logger.Get("Spotify")

var (
	spotdlExts   = []string{".mp3", ".m4a", ".webm", ".flac"}
	fallbackExts = []string{".mp3", ".m4a", ".webm", ".flac", ".mp4"}
)

// SpotdlRunner is the primary Spotify tool.
type SpotdlRunner interface {
	Download(ctx context.Context, url, dir string) engine.RunResult
}

// TitleResolver turns a track URL into a searchable title.
type TitleResolver interface {
	Title(ctx context.Context, trackURL string) (string, error)
}

// SpotifyStrategy tries spotdl, then searches for the track title and
// downloads the first candidate that yields audio.
type SpotifyStrategy struct {
	Spotdl   SpotdlRunner
	Engine   engine.Engine
	Metadata TitleResolver

	// Candidates is the number of search results tried, 5 when zero
	Candidates int
}

func (s *SpotifyStrategy) Name() string { return string(PlatformSpotify) }

func (s *SpotifyStrategy) Acquire(ctx context.Context, req Request) ([]Artifact, error) {
	tactics := []tactic[Request]{
		{name: "spotdl", run: s.viaSpotdl},
		{name: "search", run: s.viaSearch},
	}

	files, last := runTactics(ctx, spotifyLog, tactics, req)
	if len(files) > 0 {
		return files, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, acquisitionError(PlatformSpotify, ErrNoAudioFound, last)
}

func (s *SpotifyStrategy) viaSpotdl(ctx context.Context, req Request) ([]Artifact, error) {
	if s.Spotdl == nil {
		return nil, errors.New("spotdl not configured")
	}

	res := s.Spotdl.Download(ctx, req.URL, req.Dir)
	if res.Err != nil {
		return nil, fmt.Errorf("spotdl could not run: %w", res.Err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("spotdl failed with exit code %d: %s", res.ExitCode, res.Stderr)
	}

	files := LargestN(scanDir(req.Dir, spotdlExts...), 1)
	if len(files) == 0 {
		return nil, fmt.Errorf("spotdl returned success but no audio files found in %s", req.Dir)
	}
	return asAudio(files), nil
}

func (s *SpotifyStrategy) viaSearch(ctx context.Context, req Request) ([]Artifact, error) {
	if s.Engine == nil {
		return nil, errors.New("no engine configured")
	}

	query := ""
	if s.Metadata != nil {
		title, err := s.Metadata.Title(ctx, req.URL)
		if err != nil {
			spotifyLog.Emit(logger.WARNING, "Track metadata lookup failed: %v", err)
		}
		query = title
	}
	if query == "" {
		query = req.URL
	}

	limit := s.Candidates
	if limit <= 0 {
		limit = 5
	}

	spotifyLog.Emit(logger.INFO, "Searching for query: %s", query)
	candidates, err := s.Engine.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	spotifyLog.Emit(logger.INFO, "Found %d candidate(s) for query", len(candidates))

	formats := []string{engine.FormatBestAudio, engine.FormatBestVideo}
	var last error = errNoOutput
	for i, c := range candidates {
		link := c.Link()
		if link == "" {
			continue
		}
		for _, format := range formats {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			opts := engine.AudioOptions(req.Dir)
			opts.Format = format
			if format == engine.FormatBestVideo {
				opts.MergeFormat = "mp4"
			}
			opts.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"

			spotifyLog.Emit(logger.DEBUG, "Attempting candidate %d (%s) with format %s", i+1, link, format)
			if _, err := s.Engine.Download(ctx, link, opts); err != nil {
				spotifyLog.Emit(logger.WARNING, "Candidate %d failed with format %s: %v", i+1, format, err)
				last = err
				continue
			}

			if files := LargestN(scanDir(req.Dir, fallbackExts...), 1); len(files) > 0 {
				spotifyLog.Emit(logger.INFO, "Fallback download succeeded (candidate %d): %s", i+1, files[0].Path)
				return asAudio(files), nil
			}
			spotifyLog.Emit(logger.WARNING, "Candidate %d with format %s produced no files", i+1, format)
		}
	}
	return nil, last
}

// asAudio marks everything but an mp4 as audio; a .webm from spotdl or
// the search fallback is an audio stream.
func asAudio(files []Artifact) []Artifact {
	for i := range files {
		if strings.ToLower(filepath.Ext(files[i].Path)) != ".mp4" {
			files[i].Kind = KindAudio
		}
	}
	return files
}

// OEmbed resolves track titles through Spotify's public oEmbed endpoint,
// whose title is usually "Track - Artist".
type OEmbed struct {
	Client   *http.Client
	Endpoint string
	Timeout  time.Duration
}

const DefaultOEmbedEndpoint = "https://open.spotify.com/oembed"

type oembedResponse struct {
	Title string `json:"title"`
}

func (o *OEmbed) Title(ctx context.Context, trackURL string) (string, error) {
	endpoint := o.Endpoint
	if endpoint == "" {
		endpoint = DefaultOEmbedEndpoint
	}
	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint+"?url="+url.QueryEscape(trackURL), nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("oembed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oembed returned status %d", resp.StatusCode)
	}

	var out oembedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode oembed response: %w", err)
	}
	return out.Title, nil
}
