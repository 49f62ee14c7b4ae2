package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ConfigFileName = "config.yml"
	AppDirName     = "mediadrop"
)

// ConfigDir returns the standard config directory for mediadrop.
// Windows: %APPDATA%\mediadrop\
// macOS/Linux: ~/.config/mediadrop/
func ConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, AppDirName), nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppDirName), nil
}

// ConfigPath returns the path to the config file.
// e.g., ~/.config/mediadrop/config.yml
func ConfigPath() (string, error) {
	if p := os.Getenv("MEDIADROP_CONFIG"); p != "" {
		return expandPath(p), nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

type Config struct {
	Server ServerConfig `yaml:"server,omitempty"`

	Storage StorageConfig `yaml:"storage,omitempty"`

	// Instagram credentials are optional; when absent the authenticated
	// tactics are simply skipped.
	Instagram InstagramConfig `yaml:"instagram,omitempty"`

	// Tools holds binary names or absolute paths of the external engines.
	Tools ToolsConfig `yaml:"tools,omitempty"`

	Timeouts TimeoutsConfig `yaml:"timeouts,omitempty"`

	Log LogConfig `yaml:"log,omitempty"`
}

// ServerConfig holds HTTP server settings for `mediadrop serve`
type ServerConfig struct {
	// Port is the HTTP listen port (default: 8000)
	Port int `yaml:"port,omitempty"`

	// APIKey for authentication. When empty a random key is generated at startup.
	APIKey string `yaml:"api_key,omitempty"`

	// PrintAPIKey logs the active API key at startup (default: true)
	PrintAPIKey bool `yaml:"print_api_key"`

	// MaxConcurrent is the max number of acquisitions running at once (default: 10)
	MaxConcurrent int `yaml:"max_concurrent,omitempty"`

	// CORSOrigins lists allowed origins, "*" allows any
	CORSOrigins []string `yaml:"cors_origins,omitempty"`
}

// StorageConfig controls the managed storage root and file lifetime.
type StorageConfig struct {
	// Root is the directory holding every per-request task directory
	Root string `yaml:"root,omitempty"`

	// TTL is the maximum age of a registered file before the reaper deletes it
	TTL time.Duration `yaml:"ttl,omitempty"`

	// SweepInterval is how often the reaper runs
	SweepInterval time.Duration `yaml:"sweep_interval,omitempty"`

	// Journal persists registry entries in <root>/.registry.db so files
	// survive a restart until they are served or reaped
	Journal bool `yaml:"journal,omitempty"`
}

// InstagramConfig holds the optional Instagram credentials surface
type InstagramConfig struct {
	SessionFile string `yaml:"session_file,omitempty"`
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`

	// CookieFile is a browser-exported Netscape cookie file handed to the
	// extraction engine instead of the scraping client's own cookies
	CookieFile string `yaml:"cookie_file,omitempty"`

	// BrowserFallback renders the post page in a headless browser when the
	// plain HTTP fetch carries no og:video tag
	BrowserFallback bool `yaml:"browser_fallback,omitempty"`

	// BrowserBin overrides the Chromium binary used for the browser fallback
	BrowserBin string `yaml:"browser_bin,omitempty"`
}

type ToolsConfig struct {
	YtDlp       string `yaml:"ytdlp,omitempty"`
	Spotdl      string `yaml:"spotdl,omitempty"`
	Instaloader string `yaml:"instaloader,omitempty"`
}

// TimeoutsConfig bounds every subprocess and network call
type TimeoutsConfig struct {
	Engine         time.Duration `yaml:"engine,omitempty"`
	Spotdl         time.Duration `yaml:"spotdl,omitempty"`
	InstaloaderCLI time.Duration `yaml:"instaloader_cli,omitempty"`
	HTTP           time.Duration `yaml:"http,omitempty"`
}

type LogConfig struct {
	Level string `yaml:"level,omitempty"`
}

// DefaultStorageRoot returns the default managed storage root
func DefaultStorageRoot() string {
	// Docker: use the default container path (users mount their volume here)
	if IsRunningInDocker() {
		return "/home/mediadrop/downloads"
	}

	wd, err := os.Getwd()
	if err != nil {
		return "./downloads"
	}
	return filepath.Join(wd, "downloads")
}

// IsRunningInDocker detects if we're running inside a Docker container
func IsRunningInDocker() bool {
	// Check for .dockerenv file
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	// Check cgroup
	if data, err := os.ReadFile("/proc/1/cgroup"); err == nil {
		content := string(data)
		if strings.Contains(content, "docker") || strings.Contains(content, "containerd") {
			return true
		}
	}
	// Check for kubernetes
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true
	}
	return false
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          8000,
			PrintAPIKey:   true,
			MaxConcurrent: 10,
			CORSOrigins:   []string{"*"},
		},
		Storage: StorageConfig{
			Root:          DefaultStorageRoot(),
			TTL:           time.Hour,
			SweepInterval: 10 * time.Minute,
		},
		Tools: ToolsConfig{
			YtDlp:       "yt-dlp",
			Spotdl:      "spotdl",
			Instaloader: "instaloader",
		},
		Timeouts: TimeoutsConfig{
			Engine:         10 * time.Minute,
			Spotdl:         10 * time.Minute,
			InstaloaderCLI: 120 * time.Second,
			HTTP:           10 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Exists checks if config file exists
func Exists() bool {
	path, err := ConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Load reads the config from ~/.config/mediadrop/config.yml. Missing fields
// keep their defaults.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads the config at path on top of DefaultConfig
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	cfg.normalize()

	return cfg, nil
}

// expandPath expands the tilde (~) in the path to the user's home directory.
// It handles both forward and backward slashes to ensure cross-platform compatibility
// for configuration files.
func expandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~") {
		// Only expand if it's explicitly "~", "~/", or "~\"
		if len(path) == 1 || path[1] == '/' || path[1] == '\\' {
			home, err := os.UserHomeDir()
			if err == nil {
				subPath := path[1:]
				if len(subPath) > 0 && (subPath[0] == '/' || subPath[0] == '\\') {
					subPath = subPath[1:]
				}
				return filepath.Join(home, subPath)
			}
		}
	}

	return path
}

// normalize expands paths and restores defaults for zero or negative values
func (c *Config) normalize() {
	def := DefaultConfig()

	c.Storage.Root = expandPath(c.Storage.Root)
	if c.Storage.Root == "" {
		c.Storage.Root = def.Storage.Root
	}
	if abs, err := filepath.Abs(c.Storage.Root); err == nil {
		c.Storage.Root = abs
	}
	if c.Storage.TTL <= 0 {
		c.Storage.TTL = def.Storage.TTL
	}
	if c.Storage.SweepInterval <= 0 {
		c.Storage.SweepInterval = def.Storage.SweepInterval
	}

	c.Instagram.SessionFile = expandPath(c.Instagram.SessionFile)
	c.Instagram.CookieFile = expandPath(c.Instagram.CookieFile)

	if c.Server.Port <= 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.MaxConcurrent <= 0 {
		c.Server.MaxConcurrent = def.Server.MaxConcurrent
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = def.Server.CORSOrigins
	}

	if c.Tools.YtDlp == "" {
		c.Tools.YtDlp = def.Tools.YtDlp
	}
	if c.Tools.Spotdl == "" {
		c.Tools.Spotdl = def.Tools.Spotdl
	}
	if c.Tools.Instaloader == "" {
		c.Tools.Instaloader = def.Tools.Instaloader
	}

	if c.Timeouts.Engine <= 0 {
		c.Timeouts.Engine = def.Timeouts.Engine
	}
	if c.Timeouts.Spotdl <= 0 {
		c.Timeouts.Spotdl = def.Timeouts.Spotdl
	}
	if c.Timeouts.InstaloaderCLI <= 0 {
		c.Timeouts.InstaloaderCLI = def.Timeouts.InstaloaderCLI
	}
	if c.Timeouts.HTTP <= 0 {
		c.Timeouts.HTTP = def.Timeouts.HTTP
	}
}

// LoadDotEnv loads .env from the working directory and its parent, when
// present. Variables already set in the environment win.
func LoadDotEnv() {
	for _, p := range []string{".env", filepath.Join("..", ".env")} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

// ApplyEnv overrides config values from environment variables, using the
// same names the original deployment scripts export.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("API_KEY"); v != "" {
		c.Server.APIKey = v
	}
	if v := os.Getenv("PRINT_API_KEY"); v != "" {
		c.Server.PrintAPIKey = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("CORS_ALLOW_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.Server.CORSOrigins = origins
	}
	if v := os.Getenv("MEDIADROP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("MEDIADROP_STORAGE_ROOT"); v != "" {
		c.Storage.Root = v
	}
	if v := os.Getenv("INSTALOADER_SESSION_FILE"); v != "" {
		c.Instagram.SessionFile = v
	}
	if v := os.Getenv("INSTALOADER_USERNAME"); v != "" {
		c.Instagram.Username = v
	}
	if v := os.Getenv("INSTALOADER_PASSWORD"); v != "" {
		c.Instagram.Password = v
	}
	if v := os.Getenv("INSTALOADER_COOKIEFILE"); v != "" {
		c.Instagram.CookieFile = v
	}
	if v := os.Getenv("ROD_BROWSER"); v != "" {
		c.Instagram.BrowserBin = v
	}
	c.normalize()
}

// Save writes the config to ~/.config/mediadrop/config.yml
func Save(cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	configPath, err := ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	header := "# mediadrop configuration file\n# Run 'mediadrop config init' to regenerate with defaults\n\n"
	content := header + string(data)

	return os.WriteFile(configPath, []byte(content), 0600)
}

// SavePath returns the path where config will be saved
func SavePath() string {
	if path, err := ConfigPath(); err == nil {
		return path
	}
	return "config.yml"
}

// Init creates a new config.yml with default values
func Init() error {
	if Exists() {
		path, _ := ConfigPath()
		return fmt.Errorf("%s already exists", path)
	}
	return Save(DefaultConfig())
}

// LoadOrDefault loads .env, the config file if it exists (defaults otherwise),
// then applies environment overrides.
func LoadOrDefault() *Config {
	LoadDotEnv()
	cfg, err := Load()
	if err != nil {
		cfg = DefaultConfig()
	}
	cfg.ApplyEnv()
	return cfg
}
