package extractor

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// boilerplate is removed before the content container is chosen.
const boilerplate = "script, style, noscript, iframe, nav, header, footer, aside, form, " +
	".advertisement, .ads, [class*=comment], #comments, .share, .social, .sidebar, .related, .newsletter"

// containerSelectors are tried in order; the first match with enough text wins.
var containerSelectors = []string{
	"article",
	"main",
	"[role=main]",
	".post-content",
	".entry-content",
	".article-content",
	".content",
	"#content",
	".post",
	"body",
}

// SaveWebsite fetches one page and extracts its main content, downloading
// images into bookDir/media.
func (e *Extractor) SaveWebsite(ctx context.Context, rawURL, bookDir string) (*Document, error) {
	u, err := parseWebURL(rawURL)
	if err != nil {
		return nil, err
	}
	body, final, err := e.fetchPage(ctx, u)
	if err != nil {
		return nil, err
	}

	images := e.newImageStore(bookDir)
	doc, err := e.extractPage(ctx, body, final, images)
	if err != nil {
		return nil, err
	}
	doc.SourceURL = u.String()
	doc.Images = images.assets
	return doc, nil
}

// ExtractHTML cleans an uploaded HTML file. No images are fetched; remote
// image references are dropped and local ones kept.
func (e *Extractor) ExtractHTML(data []byte) (*Document, error) {
	gq, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %v", ErrConversion, err)
	}
	doc := &Document{
		Title:    strings.TrimSpace(gq.Find("title").First().Text()),
		Language: gq.Find("html").AttrOr("lang", ""),
	}

	clean(gq)
	gq.Find("img").Each(func(_ int, img *goquery.Selection) {
		src := imageSource(img)
		if src == "" || strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") || strings.HasPrefix(src, "//") {
			img.Remove()
			return
		}
		img.SetAttr("src", src)
	})

	content, err := gq.Find("body").Html()
	if err != nil {
		return nil, fmt.Errorf("%w: render html: %v", ErrConversion, err)
	}
	doc.HTML = wrapDocument(doc.Title, doc.Language, e.Sanitize(content))
	return doc, nil
}

func parseWebURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return u, nil
}

// fetchPage returns the page HTML and the URL it was finally served from.
func (e *Extractor) fetchPage(ctx context.Context, u *url.URL) ([]byte, *url.URL, error) {
	if e.cfg.BrowserEnabled {
		body, err := e.renderPage(ctx, u.String())
		if err == nil {
			return body, u, nil
		}
		e.logger.Warn("headless render failed, using plain fetch", zap.String("url", u.String()), zap.Error(err))
	}

	resp, err := e.client.R().SetContext(ctx).Get(u.String())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if resp.IsError() {
		return nil, nil, fmt.Errorf("%w: %s returned status %d", ErrFetch, u, resp.StatusCode())
	}
	final := u
	if resp.RawResponse != nil && resp.RawResponse.Request != nil {
		final = resp.RawResponse.Request.URL
	}
	return resp.Body(), final, nil
}

// extractPage selects the main content of a fetched page, localizes its
// images and sanitizes it. The returned HTML is a body fragment.
func (e *Extractor) extractPage(ctx context.Context, body []byte, pageURL *url.URL, images *imageStore) (*Document, error) {
	meta := e.pageMetadata(body, pageURL)

	gq, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse page: %v", ErrConversion, err)
	}
	if meta.Title == "" {
		meta.Title = strings.TrimSpace(gq.Find("title").First().Text())
	}
	if meta.Language == "" {
		meta.Language = gq.Find("html").AttrOr("lang", "")
	}

	clean(gq)
	container := e.selectContainer(gq)
	if container == nil {
		container, err = e.readabilityContent(body, pageURL)
		if err != nil {
			return nil, err
		}
	}

	images.rewrite(ctx, container, pageURL)

	var content string
	if goquery.NodeName(container) == "body" {
		content, err = container.Html()
	} else {
		content, err = goquery.OuterHtml(container)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: render content: %v", ErrConversion, err)
	}

	e.logger.Info("page extracted",
		zap.String("url", pageURL.String()),
		zap.String("title", meta.Title),
		zap.String("container", goquery.NodeName(container)),
		zap.Int("images", len(images.byURL)),
	)

	return &Document{
		Title:    meta.Title,
		Language: meta.Language,
		Author:   meta.Author,
		SiteName: meta.SiteName,
		HTML:     e.Sanitize(content),
	}, nil
}

func clean(doc *goquery.Document) {
	doc.Find(boilerplate).Remove()
	doc.Find("*").Contents().FilterFunction(func(_ int, s *goquery.Selection) bool {
		return len(s.Nodes) > 0 && s.Nodes[0].Type == html.CommentNode
	}).Remove()
}

func (e *Extractor) selectContainer(doc *goquery.Document) *goquery.Selection {
	minLen := e.cfg.MinContentLength
	for _, sel := range containerSelectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		if utf8.RuneCountInString(strings.TrimSpace(s.Text())) >= minLen {
			return s
		}
	}
	return nil
}

func (e *Extractor) readabilityContent(body []byte, pageURL *url.URL) (*goquery.Selection, error) {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		e.logger.Error("readability extraction failed", zap.String("url", pageURL.String()), zap.Error(err))
		return nil, fmt.Errorf("%w: no readable content: %v", ErrConversion, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return nil, fmt.Errorf("%w: parse readability output: %v", ErrConversion, err)
	}
	return doc.Find("body"), nil
}

func headTitle(s string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func wrapDocument(title, lang, body string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html")
	if lang != "" {
		b.WriteString(` lang="` + html.EscapeString(lang) + `"`)
	}
	b.WriteString("><head><meta charset=\"utf-8\"><title>")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</title></head><body>\n")
	b.WriteString(body)
	b.WriteString("\n</body></html>\n")
	return b.String()
}
