package main

import (
	"testing"
	"time"

	"folio/config"
)

func TestExtractorConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.DataDir = "/srv/folio"
	cfg.Pandoc.Path = "/opt/pandoc"
	cfg.Fetch.ProxyURL = "socks5://127.0.0.1:9050"
	cfg.Browser.Enabled = true
	cfg.Crawl.MaxPages = 7
	cfg.Crawl.Delay = time.Second

	ec := extractorConfig(cfg)
	if ec.PandocPath != "/opt/pandoc" || ec.ProxyURL != cfg.Fetch.ProxyURL {
		t.Errorf("paths not carried: %+v", ec)
	}
	if !ec.BrowserEnabled || ec.CrawlMaxPages != 7 || ec.CrawlDelay != time.Second {
		t.Errorf("crawl/browser settings not carried: %+v", ec)
	}
	if got := cfg.CrawlStatePath(); got != "/srv/folio/crawl.db" {
		t.Errorf("crawl state path = %q", got)
	}
	if ec.MinContentLength != 200 {
		t.Errorf("min content length = %d, want the extractor default", ec.MinContentLength)
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{"serve": false, "import": false, "save": false, "restore-all": false, "version": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}
