package extractor

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/gocolly/colly/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type crawledPage struct {
	url  *url.URL
	body []byte
}

// CrawlWebsite visits up to maxPages pages on the start URL's host and
// concatenates their extracted content. Each page's title becomes an <h1>.
func (e *Extractor) CrawlWebsite(ctx context.Context, rawURL string, maxPages int, bookDir string) (*Document, error) {
	start, err := parseWebURL(rawURL)
	if err != nil {
		return nil, err
	}
	if maxPages <= 0 {
		maxPages = e.cfg.CrawlMaxPages
	}

	pages, err := e.collect(ctx, start, maxPages)
	if err != nil {
		return nil, err
	}

	images := e.newImageStore(bookDir)
	doc := &Document{SourceURL: start.String()}
	var b strings.Builder
	for i, p := range pages {
		page, err := e.extractPage(ctx, p.body, p.url, images)
		if err != nil {
			e.logger.Warn("crawled page skipped", zap.String("url", p.url.String()), zap.Error(err))
			continue
		}
		if i == 0 || doc.Title == "" {
			doc.Title = firstNonEmpty(page.SiteName, page.Title)
			doc.Language = page.Language
			doc.Author = page.Author
			doc.SiteName = page.SiteName
		}
		title := firstNonEmpty(page.Title, p.url.Path, p.url.String())
		fmt.Fprintf(&b, "<section><h1>%s</h1>\n%s\n</section>\n", html.EscapeString(title), page.HTML)
	}
	if b.Len() == 0 {
		return nil, fmt.Errorf("%w: no page of %s could be extracted", ErrConversion, start)
	}
	doc.HTML = b.String()
	doc.Images = images.assets
	return doc, nil
}

// collect runs the colly crawl and returns HTML responses in visit order.
func (e *Extractor) collect(ctx context.Context, start *url.URL, maxPages int) ([]crawledPage, error) {
	c := colly.NewCollector(
		colly.UserAgent(e.cfg.UserAgent),
		colly.MaxDepth(e.cfg.CrawlMaxDepth),
		colly.AllowedDomains(start.Hostname()),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(e.cfg.FetchTimeout)
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       e.cfg.CrawlDelay,
	}); err != nil {
		return nil, fmt.Errorf("crawl limit: %w", err)
	}
	if e.cfg.ProxyURL != "" {
		if err := c.SetProxy(e.cfg.ProxyURL); err != nil {
			return nil, fmt.Errorf("crawl proxy: %w", err)
		}
	}

	if e.crawlDB != nil {
		store := e.crawlDB.session(uuid.NewString())
		if err := c.SetStorage(store); err != nil {
			return nil, fmt.Errorf("crawl storage: %w", err)
		}
		defer func() {
			if err := store.Drop(); err != nil {
				e.logger.Warn("failed to drop crawl state", zap.Error(err))
			}
		}()
	}

	var pages []crawledPage
	requested := 0

	c.OnRequest(func(r *colly.Request) {
		if requested >= maxPages {
			r.Abort()
			return
		}
		requested++
	})
	c.OnResponse(func(r *colly.Response) {
		if !strings.Contains(strings.ToLower(r.Headers.Get("Content-Type")), "html") {
			return
		}
		if len(pages) >= maxPages {
			return
		}
		body := make([]byte, len(r.Body))
		copy(body, r.Body)
		pages = append(pages, crawledPage{url: r.Request.URL, body: body})
	})
	c.OnHTML("a[href]", func(el *colly.HTMLElement) {
		if requested >= maxPages {
			return
		}
		link := el.Request.AbsoluteURL(el.Attr("href"))
		if link == "" {
			return
		}
		if u, err := url.Parse(link); err == nil {
			u.Fragment = ""
			link = u.String()
		}
		el.Request.Visit(link)
	})
	c.OnError(func(r *colly.Response, err error) {
		e.logger.Warn("crawl request failed", zap.String("url", r.Request.URL.String()), zap.Error(err))
	})

	e.logger.Info("crawl start", zap.String("url", start.String()), zap.Int("max_pages", maxPages))
	if err := c.Visit(start.String()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	c.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: crawl of %s returned no html pages", ErrFetch, start)
	}
	e.logger.Info("crawl done", zap.String("url", start.String()), zap.Int("pages", len(pages)))
	return pages, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
