package extractor

import (
	"fmt"
	"net/url"
	"strings"
)

// Platform identifies which strategy handles a URL.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformYouTube   Platform = "youtube"
	PlatformSpotify   Platform = "spotify"
	PlatformX         Platform = "x"
)

// Platforms lists every supported platform in detection order.
var Platforms = []Platform{PlatformInstagram, PlatformSpotify, PlatformYouTube, PlatformX}

// platformMarkers are checked in order against the lowercased URL
var platformMarkers = []struct {
	platform Platform
	markers  []string
}{
	{PlatformInstagram, []string{"instagram.com"}},
	{PlatformSpotify, []string{"spotify.com"}},
	{PlatformYouTube, []string{"youtube.com", "youtu.be"}},
	{PlatformX, []string{"twitter.com", "x.com"}},
}

// Detect maps a URL to its platform by substring match.
func Detect(rawURL string) (Platform, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("%w: empty url", ErrInvalidURL)
	}
	if _, err := url.Parse(rawURL); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	u := strings.ToLower(rawURL)
	for _, pm := range platformMarkers {
		for _, m := range pm.markers {
			if strings.Contains(u, m) {
				return pm.platform, nil
			}
		}
	}
	return "", fmt.Errorf("%w: could not detect platform from url", ErrUnsupportedPlatform)
}

// ParsePlatform resolves an explicit platform hint. "twitter" is accepted
// for x.
func ParsePlatform(hint string) (Platform, error) {
	switch p := Platform(strings.ToLower(strings.TrimSpace(hint))); p {
	case PlatformInstagram, PlatformYouTube, PlatformSpotify, PlatformX:
		return p, nil
	case "twitter":
		return PlatformX, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedPlatform, hint)
	}
}

// Resolve uses hint when given, otherwise detects from the URL.
func Resolve(rawURL, hint string) (Platform, error) {
	if strings.TrimSpace(rawURL) == "" {
		return "", fmt.Errorf("%w: empty url", ErrInvalidURL)
	}
	if strings.TrimSpace(hint) != "" {
		return ParsePlatform(hint)
	}
	return Detect(rawURL)
}
