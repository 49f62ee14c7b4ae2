package extractor

import (
	"errors"
	"testing"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		url  string
		want Platform
	}{
		{"https://www.instagram.com/p/ABC123/", PlatformInstagram},
		{"https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC", PlatformSpotify},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", PlatformYouTube},
		{"https://youtu.be/abc", PlatformYouTube},
		{"https://twitter.com/user/status/1", PlatformX},
		{"https://x.com/user/status/1", PlatformX},
		{"HTTPS://WWW.INSTAGRAM.COM/reel/XYZ", PlatformInstagram},
		// order matters: instagram is checked before youtube
		{"https://instagram.com/p/A/?ref=youtube.com", PlatformInstagram},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := Detect(tt.url)
			if err != nil {
				t.Fatalf("Detect: %v", err)
			}
			if got != tt.want {
				t.Errorf("Detect(%q) = %q; want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestDetectFailures(t *testing.T) {
	tests := []struct {
		url  string
		want error
	}{
		{"https://vimeo.com/123", ErrUnsupportedPlatform},
		{"", ErrInvalidURL},
		{"   ", ErrInvalidURL},
		{"http://[::1", ErrInvalidURL},
	}
	for _, tt := range tests {
		if _, err := Detect(tt.url); !errors.Is(err, tt.want) {
			t.Errorf("Detect(%q) error = %v; want %v", tt.url, err, tt.want)
		}
	}
}

func TestParsePlatform(t *testing.T) {
	tests := []struct {
		hint    string
		want    Platform
		wantErr bool
	}{
		{"instagram", PlatformInstagram, false},
		{"YouTube", PlatformYouTube, false},
		{" spotify ", PlatformSpotify, false},
		{"x", PlatformX, false},
		{"twitter", PlatformX, false},
		{"tiktok", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePlatform(tt.hint)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePlatform(%q) error = %v", tt.hint, err)
			continue
		}
		if tt.wantErr && !errors.Is(err, ErrUnsupportedPlatform) {
			t.Errorf("ParsePlatform(%q) error = %v; want ErrUnsupportedPlatform", tt.hint, err)
		}
		if got != tt.want {
			t.Errorf("ParsePlatform(%q) = %q; want %q", tt.hint, got, tt.want)
		}
	}
}
