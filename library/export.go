package library

import (
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
)

// ExportMarkdown converts every page body to markdown and joins them in page
// order, separated by horizontal rules.
func (l *Library) ExportMarkdown(id string) (string, error) {
	_, pages, err := l.AllPages(id)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		body, err := pageBody(p.HTML)
		if err != nil {
			return "", fmt.Errorf("parse page %d: %w", p.Page, err)
		}
		md, err := htmltomarkdown.ConvertString(body)
		if err != nil {
			return "", fmt.Errorf("convert page %d: %w", p.Page, err)
		}
		md = strings.TrimSpace(md)
		if md != "" {
			parts = append(parts, md)
		}
	}
	return strings.Join(parts, "\n\n---\n\n") + "\n", nil
}

func pageBody(page string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", err
	}
	doc.Find("script, style").Remove()
	return doc.Find("body").Html()
}
