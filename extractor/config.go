package extractor

import (
	"time"
)

type Config struct {
	PandocPath       string
	PandocTimeout    time.Duration
	FetchTimeout     time.Duration
	UserAgent        string
	ProxyURL         string
	MaxImageBytes    int64
	BrowserEnabled   bool
	BrowserTimeout   time.Duration
	CrawlMaxPages    int
	CrawlMaxDepth    int
	CrawlDelay       time.Duration
	MinContentLength int
}

// DefaultConfig returns a default extractor configuration
func DefaultConfig() *Config {
	return &Config{
		PandocPath:       "pandoc",
		PandocTimeout:    5 * time.Minute,
		FetchTimeout:     30 * time.Second,
		UserAgent:        "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		MaxImageBytes:    20 << 20,
		BrowserTimeout:   60 * time.Second,
		CrawlMaxPages:    20,
		CrawlMaxDepth:    2,
		CrawlDelay:       500 * time.Millisecond,
		MinContentLength: 200,
	}
}
