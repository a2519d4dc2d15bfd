package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"folio/config"
	"folio/extractor"
	"folio/ingest"
	"folio/library"
	"folio/pkg/sqlite"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "folio",
	Short:         "Personal document library server",
	Long:          "folio converts EPUB, PDF, Markdown, HTML and web pages into paged books and serves them over HTTP.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

// app holds the wired components shared by every command.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	crawlState *extractor.CrawlState
	store      *sqlite.Store
	lib        *library.Library
	ingest     *ingest.Service
}

func newApp() (*app, error) {
	// =========
	// Config
	// =========
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// =========
	// Logging
	// =========
	newLogger := zap.NewProduction
	if cfg.Log.Development {
		newLogger = zap.NewDevelopment
	}
	logger, err := newLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}

	// =========
	// Crawl state
	// =========
	// Another folio process may hold the file lock; crawls then run
	// with colly's in-memory storage.
	a.crawlState, err = extractor.OpenCrawlState(cfg.CrawlStatePath())
	if err != nil {
		logger.Warn("crawl state unavailable", zap.String("path", cfg.CrawlStatePath()), zap.Error(err))
		a.crawlState = nil
	}

	// =========
	// SQLite
	// =========
	a.store, err = sqlite.Open(cfg.DatabasePath())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// =========
	// Library
	// =========
	a.lib, err = library.New(cfg.ConvertedDir(), logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	// =========
	// Extractor + ingest
	// =========
	ext := extractor.New(extractorConfig(cfg), a.crawlState, logger)
	a.ingest = ingest.New(a.lib, ext, a.store, cfg.Splitter.MinSectionLength, logger)

	logger.Info("folio ready",
		zap.String("data_dir", cfg.Storage.DataDir),
		zap.String("pandoc", cfg.Pandoc.Path),
		zap.Bool("browser", cfg.Browser.Enabled),
	)
	return a, nil
}

func extractorConfig(cfg *config.Config) *extractor.Config {
	ec := extractor.DefaultConfig()
	ec.PandocPath = cfg.Pandoc.Path
	ec.PandocTimeout = cfg.Pandoc.Timeout
	ec.FetchTimeout = cfg.Fetch.Timeout
	ec.UserAgent = cfg.Fetch.UserAgent
	ec.ProxyURL = cfg.Fetch.ProxyURL
	ec.MaxImageBytes = cfg.Fetch.MaxImageBytes
	ec.BrowserEnabled = cfg.Browser.Enabled
	ec.BrowserTimeout = cfg.Browser.Timeout
	ec.CrawlMaxPages = cfg.Crawl.MaxPages
	ec.CrawlMaxDepth = cfg.Crawl.MaxDepth
	ec.CrawlDelay = cfg.Crawl.Delay
	return ec
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close database", zap.Error(err))
		}
	}
	if err := a.crawlState.Close(); err != nil {
		a.logger.Warn("failed to close crawl state", zap.Error(err))
	}
	a.logger.Sync()
}
