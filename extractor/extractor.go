// Package extractor turns uploaded files and web pages into normalized HTML
// ready for splitting.
package extractor

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

var (
	ErrConversion        = errors.New("conversion failed")
	ErrFetch             = errors.New("fetch failed")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrInvalidURL        = errors.New("invalid url")
)

type Format string

const (
	FormatEPUB     Format = "epub"
	FormatPDF      Format = "pdf"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatWebsite  Format = "website"
)

var extensions = map[string]Format{
	".epub":     FormatEPUB,
	".pdf":      FormatPDF,
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
	".html":     FormatHTML,
	".htm":      FormatHTML,
}

// DetectFormat picks the intake path from the file extension.
func DetectFormat(filename string) (Format, error) {
	f, ok := extensions[strings.ToLower(filepath.Ext(filename))]
	if !ok {
		return "", ErrUnsupportedFormat
	}
	return f, nil
}

// Asset is a media file written into the book directory.
type Asset struct {
	Name      string `json:"name"`
	SourceURL string `json:"source_url"`
	Size      int    `json:"size"`
}

// Document is the normalized result of one extraction. HTML is a complete
// document for EPUB, Markdown and HTML uploads and a body fragment for web
// captures.
type Document struct {
	Title     string
	Language  string
	Author    string
	SiteName  string
	SourceURL string
	HTML      string
	Images    []Asset
	PageCount int
}

type Extractor struct {
	cfg     *Config
	client  *resty.Client
	policy  *bluemonday.Policy
	crawlDB *CrawlState
	logger  *zap.Logger
}

func New(cfg *Config, crawlDB *CrawlState, logger *zap.Logger) *Extractor {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Extractor{
		cfg:     cfg,
		client:  newClient(cfg, logger),
		policy:  newPolicy(),
		crawlDB: crawlDB,
		logger:  logger,
	}
}

func newClient(cfg *Config, logger *zap.Logger) *resty.Client {
	client := resty.New().
		SetTimeout(cfg.FetchTimeout).
		SetLogger(logger.Sugar()).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8").
		SetHeader("Accept-Language", "en-US,en;q=0.9")
	if cfg.ProxyURL != "" {
		client.SetProxy(cfg.ProxyURL)
	}
	return client
}
