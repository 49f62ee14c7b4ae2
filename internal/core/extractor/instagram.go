package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/guiyumin/mediadrop/internal/core/archive"
	"github.com/guiyumin/mediadrop/internal/core/downloader"
	"github.com/guiyumin/mediadrop/internal/core/engine"
	"github.com/guiyumin/mediadrop/internal/core/logger"
	"github.com/guiyumin/mediadrop/internal/core/page"
)

var igLog = logger.Get("Instagram")

var shortcodeRe = regexp.MustCompile(`(?:/p/|/reel/|/reels/|/tv/)([A-Za-z0-9_-]+)`)

var (
	igMediaExts = []string{".mp4", ".jpg", ".jpeg", ".png"}
	igVideoExts = []string{".mp4", ".webm", ".mkv"}
)

// ParseShortcode extracts the post shortcode from a post, reel or tv URL.
func ParseShortcode(rawURL string) (string, error) {
	m := shortcodeRe.FindStringSubmatch(rawURL)
	if m == nil {
		return "", fmt.Errorf("%w: instagram shortcode not found", ErrInvalidSourceURL)
	}
	return m[1], nil
}

// PostClient is the scraping client the primary tactic uses.
type PostClient interface {
	Authenticate(ctx context.Context) error
	FetchPost(ctx context.Context, shortcode, dir string) ([]string, error)
	ExportCookies(path string) (int, error)
}

// InstaloaderRunner is the scraping client's command line form.
type InstaloaderRunner interface {
	Download(ctx context.Context, shortcode, dir, username, sessionFile string) engine.RunResult
}

// InstagramStrategy downloads posts, reels and tv videos.
type InstagramStrategy struct {
	// NewClient returns a fresh client per request so cookie jars are
	// never shared
	NewClient func() (PostClient, error)

	Engine   engine.Engine
	Fetchers []page.Fetcher
	CLI      InstaloaderRunner

	// Username and SessionFile are forwarded to the CLI
	Username    string
	SessionFile string

	// CookieFile is an externally exported cookie file that overrides the
	// client's own cookies for the engine tactic
	CookieFile string

	// EngineAttempts is how often the engine tactic is tried, 2 when zero
	EngineAttempts int

	// PageTimeout bounds each og:video page fetch
	PageTimeout time.Duration
}

func (s *InstagramStrategy) Name() string { return string(PlatformInstagram) }

type igState struct {
	req       Request
	shortcode string
	postURL   string
	client    PostClient
}

func (s *InstagramStrategy) Acquire(ctx context.Context, req Request) ([]Artifact, error) {
	shortcode, err := ParseShortcode(req.URL)
	if err != nil {
		return nil, err
	}

	st := &igState{
		req:       req,
		shortcode: shortcode,
		postURL:   stripQuery(req.URL),
	}

	if s.NewClient != nil {
		client, err := s.NewClient()
		if err != nil {
			igLog.Emit(logger.WARNING, "Client unavailable: %v", err)
		} else {
			st.client = client
			if err := client.Authenticate(ctx); err != nil {
				igLog.Emit(logger.WARNING, "Authentication failed; continuing without auth: %v", err)
			}
			if _, err := client.FetchPost(ctx, shortcode, filepath.Join(req.Dir, shortcode)); err != nil {
				igLog.Emit(logger.WARNING, "Primary fetch of %s failed: %v", shortcode, err)
			}
		}
	}

	postDir := filepath.Join(req.Dir, shortcode)
	if isDir(postDir) {
		selected := SelectVideoThenImage(scanTree(postDir, igMediaExts...), 2)
		if len(selected) > 0 {
			igLog.Emit(logger.INFO, "Selected media for return: %s", paths(selected))
			return selected, nil
		}
		igLog.Emit(logger.WARNING, "No media in %s, trying fallbacks", postDir)
	} else if files := s.bundleDir(st); len(files) > 0 {
		return files, nil
	}

	files, last := runTactics(ctx, igLog, s.tactics(), st)
	if len(files) > 0 {
		return files, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if images := LargestN(scanTree(req.Dir, imageExts...), 2); len(images) > 0 {
		igLog.Emit(logger.INFO, "Selected image-only media: %s", paths(images))
		return images, nil
	}

	igLog.Emit(logger.WARNING, "Directory listing for %s after fallbacks: %s", req.Dir, listDir(req.Dir))
	return nil, acquisitionError(PlatformInstagram, ErrNoMediaFound, last)
}

func (s *InstagramStrategy) tactics() []tactic[*igState] {
	return []tactic[*igState]{
		{name: "engine", run: s.viaEngine},
		{name: "og:video", run: s.viaOGVideo},
		{name: "instaloader-cli", run: s.viaCLI},
	}
}

// bundleDir handles a post that never got its own folder: the two largest
// media files directly in the workdir, zipped when there are two.
func (s *InstagramStrategy) bundleDir(st *igState) []Artifact {
	selected := LargestN(scanDir(st.req.Dir, igMediaExts...), 2)
	switch len(selected) {
	case 0:
		return nil
	case 1:
		return selected
	}

	bundle := filepath.Join(st.req.Dir, st.shortcode+"_bundle.zip")
	if err := archive.Zip(bundle, paths(selected)); err != nil {
		igLog.Emit(logger.WARNING, "Failed to create bundle zip; returning first media: %v", err)
		return selected[:1]
	}
	igLog.Emit(logger.INFO, "Created fallback bundle zip: %s", bundle)
	return artifacts([]string{bundle})
}

// cookieFile returns the cookie file for the engine. An existing external
// cookie file wins; otherwise the client's cookies are exported into the
// workdir.
func (s *InstagramStrategy) cookieFile(st *igState) string {
	if s.CookieFile != "" && fileExists(s.CookieFile) {
		igLog.Emit(logger.INFO, "Using external cookie file: %s", s.CookieFile)
		return s.CookieFile
	}
	if st.client == nil {
		return ""
	}

	p := filepath.Join(st.req.Dir, "cookies.txt")
	n, err := st.client.ExportCookies(p)
	switch {
	case err != nil:
		igLog.Emit(logger.WARNING, "Failed to write cookie file: %v", err)
		os.Remove(p)
		return ""
	case n == 0:
		return ""
	}
	igLog.Emit(logger.DEBUG, "Wrote %d cookie(s) to %s", n, p)
	return p
}

func (s *InstagramStrategy) videoResult(dir string) ([]Artifact, error) {
	if len(scanDir(dir, igVideoExts...)) == 0 {
		return nil, errNoOutput
	}
	all := scanDir(dir, append(append([]string{}, igVideoExts...), imageExts...)...)
	return SelectVideoThenImage(all, 2), nil
}

func (s *InstagramStrategy) viaEngine(ctx context.Context, st *igState) ([]Artifact, error) {
	if s.Engine == nil {
		return nil, errors.New("no engine configured")
	}

	opts := engine.VideoOptions(st.req.Dir)
	opts.CookieFile = s.cookieFile(st)
	opts.UserAgent = downloader.DefaultUserAgent
	if opts.CookieFile != "" && opts.CookieFile != s.CookieFile {
		// exported session cookies never outlive the tactic
		defer os.Remove(opts.CookieFile)
	}

	attempts := s.EngineAttempts
	if attempts <= 0 {
		attempts = 2
	}

	var last error
	for i := 1; i <= attempts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := s.Engine.Download(ctx, st.postURL, opts); err != nil {
			igLog.Emit(logger.WARNING, "Engine attempt %d failed: %v", i, err)
			last = err
			continue
		}
		files, err := s.videoResult(st.req.Dir)
		if err == nil {
			return files, nil
		}
		igLog.Emit(logger.WARNING, "Engine attempt %d produced no video", i)
		last = err
	}
	return nil, last
}

func (s *InstagramStrategy) viaOGVideo(ctx context.Context, st *igState) ([]Artifact, error) {
	if s.Engine == nil || len(s.Fetchers) == 0 {
		return nil, errors.New("no page fetcher configured")
	}

	var last error = errors.New("no og:video meta tag")
	for _, f := range s.Fetchers {
		videoURL, err := s.ogVideo(ctx, f, st.postURL)
		if err != nil {
			igLog.Emit(logger.WARNING, "og:video via %s failed: %v", f.Name(), err)
			last = err
			continue
		}
		if videoURL == "" {
			continue
		}

		igLog.Emit(logger.INFO, "Found og:video URL via %s, downloading direct media", f.Name())
		if _, err := s.Engine.Download(ctx, videoURL, engine.VideoOptions(st.req.Dir)); err != nil {
			last = err
			continue
		}
		files, err := s.videoResult(st.req.Dir)
		if err == nil {
			return files, nil
		}
		last = err
	}
	return nil, last
}

func (s *InstagramStrategy) ogVideo(ctx context.Context, f page.Fetcher, url string) (string, error) {
	timeout := s.PageTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	html, err := f.Fetch(ctx, url)
	if err != nil {
		return "", err
	}
	return page.OGVideoURL(html)
}

func (s *InstagramStrategy) viaCLI(ctx context.Context, st *igState) ([]Artifact, error) {
	if s.CLI == nil {
		return nil, errors.New("no instaloader cli configured")
	}

	var username, session string
	if s.Username != "" && s.SessionFile != "" && fileExists(s.SessionFile) {
		username, session = s.Username, s.SessionFile
	}

	igLog.Emit(logger.INFO, "Attempting instaloader CLI fallback for %s into %s", st.shortcode, st.req.Dir)
	res := s.CLI.Download(ctx, st.shortcode, st.req.Dir, username, session)
	if res.Err != nil {
		igLog.Emit(logger.WARNING, "instaloader CLI invocation failed: %v", res.Err)
	}

	// the CLI may leave usable files even when it exits non-zero
	if files := LargestN(scanTree(st.req.Dir, ".mp4"), 1); len(files) > 0 {
		return files, nil
	}
	if res.Err != nil {
		return nil, res.Err
	}
	return nil, fmt.Errorf("instaloader exited %d without a video", res.ExitCode)
}

func stripQuery(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}

func paths(files []Artifact) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

func listDir(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
