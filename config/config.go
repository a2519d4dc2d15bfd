package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Pandoc   PandocConfig   `yaml:"pandoc"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Browser  BrowserConfig  `yaml:"browser"`
	Crawl    CrawlConfig    `yaml:"crawl"`
	Splitter SplitterConfig `yaml:"splitter"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	MaxUploadMB  int64         `yaml:"max_upload_mb"`
}

type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

type PandocConfig struct {
	Path    string        `yaml:"path"`
	Timeout time.Duration `yaml:"timeout"`
}

type FetchConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	UserAgent     string        `yaml:"user_agent"`
	ProxyURL      string        `yaml:"proxy_url"`
	MaxImageBytes int64         `yaml:"max_image_bytes"`
}

type BrowserConfig struct {
	Enabled bool          `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout"`
}

type CrawlConfig struct {
	MaxPages int           `yaml:"max_pages"`
	MaxDepth int           `yaml:"max_depth"`
	Delay    time.Duration `yaml:"delay"`
}

type SplitterConfig struct {
	MinSectionLength int `yaml:"min_section_length"`
}

type LogConfig struct {
	Development bool `yaml:"development"`
}

// DefaultUserAgent is sent on every page and image fetch.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         3000,
			ReadTimeout:  5 * time.Minute,
			WriteTimeout: 10 * time.Minute,
			MaxUploadMB:  200,
		},
		Storage: StorageConfig{DataDir: "./data"},
		Pandoc:  PandocConfig{Path: "pandoc", Timeout: 5 * time.Minute},
		Fetch: FetchConfig{
			Timeout:       30 * time.Second,
			UserAgent:     DefaultUserAgent,
			MaxImageBytes: 20 << 20,
		},
		Browser:  BrowserConfig{Timeout: 60 * time.Second},
		Crawl:    CrawlConfig{MaxPages: 20, MaxDepth: 2, Delay: 500 * time.Millisecond},
		Splitter: SplitterConfig{MinSectionLength: 50},
	}
}

// Load reads the YAML file at path when it exists, then applies environment
// overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("FOLIO_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FOLIO_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("FOLIO_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("FOLIO_PANDOC_PATH"); v != "" {
		cfg.Pandoc.Path = v
	}
	if v := os.Getenv("FOLIO_PROXY_URL"); v != "" {
		cfg.Fetch.ProxyURL = v
	}
	if v := os.Getenv("FOLIO_BROWSER_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("FOLIO_BROWSER_ENABLED: %w", err)
		}
		cfg.Browser.Enabled = enabled
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Storage.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}
	return nil
}

// ConvertedDir is the root of all per-book directories.
func (c *Config) ConvertedDir() string {
	return filepath.Join(c.Storage.DataDir, "converted")
}

func (c *Config) DatabasePath() string {
	return filepath.Join(c.Storage.DataDir, "library.db")
}

func (c *Config) CrawlStatePath() string {
	return filepath.Join(c.Storage.DataDir, "crawl.db")
}
