package cli

import (
	"os"

	"github.com/guiyumin/mediadrop/internal/core/config"
	"github.com/guiyumin/mediadrop/internal/core/logger"
	"github.com/guiyumin/mediadrop/internal/core/version"
	"github.com/spf13/cobra"
)

var (
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "mediadrop",
	Short: "Download relay for Instagram, YouTube, Spotify and X media",
	Long: `mediadrop fetches media from Instagram, YouTube, Spotify and X, keeps each
file for a short while and hands it out exactly once.

Examples:
  mediadrop serve                                   # Start the HTTP API
  mediadrop get https://youtu.be/dQw4w9WgXcQ        # Download into ./
  mediadrop get --type audio https://youtu.be/...   # Download as mp3
  mediadrop search "artist - title"                 # Search YouTube`,
	Version:      version.Version,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if configFile != "" {
			os.Setenv("MEDIADROP_CONFIG", configFile)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: ~/.config/mediadrop/config.yml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: verbose, debug, info, warning, error")
}

func Execute() error {
	return rootCmd.Execute()
}

// loadConfig loads the config and applies the log level, the --log-level
// flag winning over the file.
func loadConfig() *config.Config {
	cfg := config.LoadOrDefault()

	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	logger.SetMinLoggingLevel(logger.ParseLevel(level))
	return cfg
}
