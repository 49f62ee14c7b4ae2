// Package wire builds the platform strategies from the configuration so
// the server and the one-shot CLI acquire media the same way.
package wire

import (
	"net/http"

	"github.com/guiyumin/mediadrop/internal/core/config"
	"github.com/guiyumin/mediadrop/internal/core/engine"
	"github.com/guiyumin/mediadrop/internal/core/extractor"
	"github.com/guiyumin/mediadrop/internal/core/instagram"
	"github.com/guiyumin/mediadrop/internal/core/page"
)

// Strategies builds the per-platform strategies from cfg.
func Strategies(cfg *config.Config) map[extractor.Platform]extractor.Strategy {
	eng := &engine.YtDlp{Bin: cfg.Tools.YtDlp, Timeout: cfg.Timeouts.Engine}
	client := &http.Client{Timeout: cfg.Timeouts.HTTP}

	fetchers := []page.Fetcher{&page.HTTPFetcher{Client: client}}
	if cfg.Instagram.BrowserFallback {
		fetchers = append(fetchers, &page.BrowserFetcher{Bin: cfg.Instagram.BrowserBin})
	}

	ig := cfg.Instagram
	return map[extractor.Platform]extractor.Strategy{
		extractor.PlatformInstagram: &extractor.InstagramStrategy{
			NewClient: func() (extractor.PostClient, error) {
				c, err := instagram.New(instagram.Options{
					SessionFile: ig.SessionFile,
					Username:    ig.Username,
					Password:    ig.Password,
				})
				if err != nil {
					return nil, err
				}
				return c, nil
			},
			Engine:      eng,
			Fetchers:    fetchers,
			CLI:         &engine.InstaloaderCLI{Bin: cfg.Tools.Instaloader, Timeout: cfg.Timeouts.InstaloaderCLI},
			Username:    ig.Username,
			SessionFile: ig.SessionFile,
			CookieFile:  ig.CookieFile,
			PageTimeout: cfg.Timeouts.HTTP,
		},
		extractor.PlatformYouTube: &extractor.VideoStrategy{
			Platform: extractor.PlatformYouTube,
			Engine:   eng,
		},
		extractor.PlatformX: &extractor.VideoStrategy{
			Platform:  extractor.PlatformX,
			Engine:    eng,
			VideoOnly: true,
		},
		extractor.PlatformSpotify: &extractor.SpotifyStrategy{
			Spotdl: &engine.Spotdl{Bin: cfg.Tools.Spotdl, Timeout: cfg.Timeouts.Spotdl},
			Engine: eng,
			Metadata: &extractor.OEmbed{
				Client:  client,
				Timeout: cfg.Timeouts.HTTP,
			},
		},
	}
}
