package library

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// TOCEntry is one heading found in a page file.
type TOCEntry struct {
	Page   int    `json:"page"`
	Level  int    `json:"level"`
	Title  string `json:"title"`
	Anchor string `json:"anchor,omitempty"`
}

// TOC scans the page files in manifest order and collects h1-h3 headings.
// Nothing is cached; edits show up on the next call.
func (l *Library) TOC(id string) ([]TOCEntry, error) {
	m, err := l.ReadManifest(id)
	if err != nil {
		return nil, err
	}

	entries := []TOCEntry{}
	for i := 1; i <= m.Total; i++ {
		data, err := l.ReadPage(id, i)
		if errors.Is(err, ErrPageNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("parse page %d: %w", i, err)
		}
		doc.Find("h1, h2, h3").Each(func(_ int, s *goquery.Selection) {
			if s.HasClass("title") {
				return
			}
			title := strings.TrimSpace(strings.TrimLeft(strings.Join(strings.Fields(s.Text()), " "), "#"))
			if title == "" {
				return
			}
			entries = append(entries, TOCEntry{
				Page:   i,
				Level:  int(goquery.NodeName(s)[1] - '0'),
				Title:  title,
				Anchor: headingAnchor(s),
			})
		})
	}
	return entries, nil
}

// headingAnchor prefers the heading's own id and falls back to the id of the
// section wrapping it, which is where pandoc puts it.
func headingAnchor(s *goquery.Selection) string {
	if id, ok := s.Attr("id"); ok && id != "" {
		return id
	}
	parent := s.Parent()
	if goquery.NodeName(parent) == "section" && parent.Children().First().Is(goquery.NodeName(s)) {
		if id, ok := parent.Attr("id"); ok {
			return id
		}
	}
	return ""
}
