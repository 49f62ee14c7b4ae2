// Package instagram is a small scraping client for public (or session
// authenticated) Instagram posts.
package instagram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/guiyumin/mediadrop/internal/core/downloader"
	"github.com/guiyumin/mediadrop/internal/core/logger"
)

const (
	DefaultBaseURL = "https://www.instagram.com"

	// appID is the web client's X-IG-App-ID
	appID = "936619743392459"

	cookieDomain = ".instagram.com"
)

var log = logger.Get("Instagram")

// ErrNotAuthenticated is returned when a login or session load did not
// produce a session cookie.
var ErrNotAuthenticated = errors.New("instagram: not authenticated")

// Options configures a Client. Zero values mean anonymous access against
// the public site.
type Options struct {
	BaseURL     string
	SessionFile string
	Username    string
	Password    string
	Timeout     time.Duration
}

// Client holds one cookie jar; create one per acquisition so sessions
// never leak across requests.
type Client struct {
	opts   Options
	base   *url.URL
	jar    *cookiejar.Jar
	http   *http.Client
	authed bool
}

// New creates a client. It does not touch the network.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	return &Client{
		opts: opts,
		base: base,
		jar:  jar,
		http: &http.Client{
			Jar:     jar,
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
			},
		},
	}, nil
}

// Authenticated reports whether a session was established.
func (c *Client) Authenticated() bool {
	return c.authed
}

// Authenticate loads the session file when a username and an existing
// session file are configured, otherwise performs a password login when
// both username and password are set. With no credentials it is a no-op.
func (c *Client) Authenticate(ctx context.Context) error {
	o := c.opts
	if o.Username != "" && o.SessionFile != "" && fileExists(o.SessionFile) {
		if err := c.LoadSessionFile(o.SessionFile); err != nil {
			return fmt.Errorf("failed to load session from %s: %w", o.SessionFile, err)
		}
		log.Emit(logger.INFO, "Loaded session from %s for user %s", o.SessionFile, o.Username)
		return nil
	}
	if o.Username != "" && o.Password != "" {
		log.Emit(logger.INFO, "Logging into Instagram as %s", o.Username)
		return c.Login(ctx, o.Username, o.Password)
	}
	return nil
}

// LoadSessionFile imports the cookies of a Netscape cookie file into the jar.
// The file must carry a sessionid cookie.
func (c *Client) LoadSessionFile(path string) error {
	cookies, err := ReadNetscapeCookies(path)
	if err != nil {
		return err
	}

	var hasSession bool
	for _, ck := range cookies {
		if ck.Name == "sessionid" && ck.Value != "" {
			hasSession = true
		}
		// the jar rejects cookies whose Domain does not match the request host
		ck.Domain = ""
	}
	if !hasSession {
		return ErrNotAuthenticated
	}

	c.jar.SetCookies(c.base, cookies)
	c.authed = true
	return nil
}

type loginResponse struct {
	Authenticated bool   `json:"authenticated"`
	User          bool   `json:"user"`
	Status        string `json:"status"`
	Message       string `json:"message"`
}

// Login performs the web login flow: fetch the login page for a csrftoken
// cookie, then post the credentials.
func (c *Client) Login(ctx context.Context, username, password string) error {
	if _, err := c.get(ctx, "/accounts/login/"); err != nil {
		return fmt.Errorf("failed to open login page: %w", err)
	}

	form := url.Values{}
	form.Set("username", username)
	form.Set("enc_password", fmt.Sprintf("#PWD_INSTAGRAM_BROWSER:0:%d:%s", time.Now().Unix(), password))
	form.Set("queryParams", "{}")
	form.Set("optIntoOneTap", "false")

	req, err := http.NewRequestWithContext(ctx, "POST", c.resolve("/api/v1/web/accounts/login/ajax/"), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-CSRFToken", c.cookie("csrftoken"))
	req.Header.Set("Referer", c.resolve("/accounts/login/"))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode login response: %w", err)
	}
	if !lr.Authenticated {
		if lr.Message != "" {
			return fmt.Errorf("%w: %s", ErrNotAuthenticated, lr.Message)
		}
		return ErrNotAuthenticated
	}

	c.authed = true
	return nil
}

// Cookies returns the jar's cookies for the site, with the domain filled in
// so they can be exported.
func (c *Client) Cookies() []*http.Cookie {
	cookies := c.jar.Cookies(c.base)
	for _, ck := range cookies {
		if ck.Domain == "" {
			ck.Domain = cookieDomain
		}
		if ck.Path == "" {
			ck.Path = "/"
		}
		ck.Secure = true
	}
	return cookies
}

// ExportCookies writes the jar to path as a Netscape cookie file. It
// returns the number of cookies written; zero cookies writes nothing.
func (c *Client) ExportCookies(path string) (int, error) {
	cookies := c.Cookies()
	if len(cookies) == 0 {
		return 0, nil
	}
	if err := WriteNetscapeCookies(path, cookieDomain, cookies); err != nil {
		return 0, err
	}
	return len(cookies), nil
}

// FetchPost resolves the post's media and downloads every video and
// display image (carousel children included) into dir. It returns the
// written file paths.
func (c *Client) FetchPost(ctx context.Context, shortcode, dir string) ([]string, error) {
	body, err := c.get(ctx, "/p/"+url.PathEscape(shortcode)+"/?__a=1&__d=dis")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch post %s: %w", shortcode, err)
	}

	media, err := parsePost(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse post %s: %w", shortcode, err)
	}
	if len(media) == 0 {
		return nil, fmt.Errorf("post %s has no media", shortcode)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	var written []string
	for i, m := range media {
		name := shortcode
		if len(media) > 1 {
			name += "_" + strconv.Itoa(i+1)
		}

		if m.ImageURL != "" {
			path := filepath.Join(dir, name+".jpg")
			if err := c.download(ctx, m.ImageURL, path); err != nil {
				log.Emit(logger.WARNING, "Image %d of %s failed: %v", i+1, shortcode, err)
			} else {
				written = append(written, downloader.RenameByMagicBytes(path))
			}
		}
		if m.VideoURL != "" {
			path := filepath.Join(dir, name+".mp4")
			if err := c.download(ctx, m.VideoURL, path); err != nil {
				log.Emit(logger.WARNING, "Video %d of %s failed: %v", i+1, shortcode, err)
			} else {
				written = append(written, path)
			}
		}
	}

	if len(written) == 0 {
		return nil, fmt.Errorf("no media of post %s could be downloaded", shortcode)
	}
	return written, nil
}

func (c *Client) download(ctx context.Context, mediaURL, path string) error {
	headers := map[string]string{
		"User-Agent": downloader.DefaultUserAgent,
		"Referer":    c.resolve("/"),
	}
	n, err := downloader.Fetch(ctx, c.http, mediaURL, path, headers)
	if err != nil {
		return err
	}
	log.Emit(logger.DEBUG, "Saved %s (%s)", filepath.Base(path), downloader.FormatBytes(n))
	return nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.resolve(path), nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", downloader.DefaultUserAgent)
	req.Header.Set("X-IG-App-ID", appID)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
}

func (c *Client) resolve(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return c.base.String() + path
	}
	return c.base.ResolveReference(ref).String()
}

func (c *Client) cookie(name string) string {
	for _, ck := range c.jar.Cookies(c.base) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
