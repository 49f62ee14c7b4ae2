package cli

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/guiyumin/mediadrop/internal/core/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage mediadrop configuration",
}

// mediadrop config init - write a config file with defaults
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file with default values",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(); err != nil {
			return err
		}
		fmt.Printf("Saved %s\n", config.SavePath())
		return nil
	},
}

// mediadrop config show - show the effective config
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration (file, .env and environment)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadOrDefault()

		shown := *cfg
		shown.Server.APIKey = mask(shown.Server.APIKey)
		shown.Instagram.Password = mask(shown.Instagram.Password)

		data, err := yaml.Marshal(&shown)
		if err != nil {
			return err
		}
		fmt.Printf("# %s\n", config.SavePath())
		fmt.Print(string(data))
		return nil
	},
}

// mediadrop config path - show config file path
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.SavePath())
	},
}

// mediadrop config set KEY VALUE - set a config value
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in config.yml.

Supported keys:
  ` + strings.Join(configKeys(), "\n  ") + `

Examples:
  mediadrop config set server.port 9000
  mediadrop config set storage.ttl 30m
  mediadrop config set instagram.session_file ~/.config/mediadrop/instagram.txt`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := fileConfig()
		if err := setConfigValue(cfg, args[0], args[1]); err != nil {
			return err
		}
		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Printf("Set %s = %s\n", args[0], args[1])
		return nil
	},
}

// mediadrop config get KEY - get a config value
var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := getConfigValue(config.LoadOrDefault(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(value)
		return nil
	},
}

// fileConfig is the config file alone, so set never persists values that
// only came from the environment.
func fileConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Starting from defaults: %v\n", err)
		return config.DefaultConfig()
	}
	return cfg
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

type configField struct {
	get func(*config.Config) string
	set func(*config.Config, string) error
}

func stringField(p func(*config.Config) *string) configField {
	return configField{
		get: func(c *config.Config) string { return *p(c) },
		set: func(c *config.Config, v string) error { *p(c) = v; return nil },
	}
}

func intField(p func(*config.Config) *int) configField {
	return configField{
		get: func(c *config.Config) string { return strconv.Itoa(*p(c)) },
		set: func(c *config.Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid number: %s", v)
			}
			*p(c) = n
			return nil
		},
	}
}

func boolField(p func(*config.Config) *bool) configField {
	return configField{
		get: func(c *config.Config) string { return strconv.FormatBool(*p(c)) },
		set: func(c *config.Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid boolean: %s", v)
			}
			*p(c) = b
			return nil
		},
	}
}

func durationField(p func(*config.Config) *time.Duration) configField {
	return configField{
		get: func(c *config.Config) string { return p(c).String() },
		set: func(c *config.Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				return fmt.Errorf("invalid duration: %s", v)
			}
			*p(c) = d
			return nil
		},
	}
}

var configFields = map[string]configField{
	"server.port":           intField(func(c *config.Config) *int { return &c.Server.Port }),
	"server.api_key":        stringField(func(c *config.Config) *string { return &c.Server.APIKey }),
	"server.print_api_key":  boolField(func(c *config.Config) *bool { return &c.Server.PrintAPIKey }),
	"server.max_concurrent": intField(func(c *config.Config) *int { return &c.Server.MaxConcurrent }),

	"storage.root":           stringField(func(c *config.Config) *string { return &c.Storage.Root }),
	"storage.ttl":            durationField(func(c *config.Config) *time.Duration { return &c.Storage.TTL }),
	"storage.sweep_interval": durationField(func(c *config.Config) *time.Duration { return &c.Storage.SweepInterval }),
	"storage.journal":        boolField(func(c *config.Config) *bool { return &c.Storage.Journal }),

	"instagram.session_file":     stringField(func(c *config.Config) *string { return &c.Instagram.SessionFile }),
	"instagram.username":         stringField(func(c *config.Config) *string { return &c.Instagram.Username }),
	"instagram.password":         stringField(func(c *config.Config) *string { return &c.Instagram.Password }),
	"instagram.cookie_file":      stringField(func(c *config.Config) *string { return &c.Instagram.CookieFile }),
	"instagram.browser_fallback": boolField(func(c *config.Config) *bool { return &c.Instagram.BrowserFallback }),

	"tools.ytdlp":       stringField(func(c *config.Config) *string { return &c.Tools.YtDlp }),
	"tools.spotdl":      stringField(func(c *config.Config) *string { return &c.Tools.Spotdl }),
	"tools.instaloader": stringField(func(c *config.Config) *string { return &c.Tools.Instaloader }),

	"timeouts.engine": durationField(func(c *config.Config) *time.Duration { return &c.Timeouts.Engine }),
	"timeouts.http":   durationField(func(c *config.Config) *time.Duration { return &c.Timeouts.HTTP }),

	"log.level": stringField(func(c *config.Config) *string { return &c.Log.Level }),
}

func configKeys() []string {
	keys := make([]string, 0, len(configFields))
	for k := range configFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// setConfigValue sets a config value by key
func setConfigValue(cfg *config.Config, key, value string) error {
	f, ok := configFields[key]
	if !ok {
		return fmt.Errorf("unknown config key: %s\nRun 'mediadrop config set --help' to see supported keys", key)
	}
	return f.set(cfg, value)
}

// getConfigValue gets a config value by key
func getConfigValue(cfg *config.Config, key string) (string, error) {
	f, ok := configFields[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %s\nRun 'mediadrop config set --help' to see supported keys", key)
	}
	return f.get(cfg), nil
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)

	rootCmd.AddCommand(configCmd)
}
