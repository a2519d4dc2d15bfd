package splitter

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultMinSectionLength is the shortest captured web section kept as a page.
const DefaultMinSectionLength = 50

// SplitWeb splits captured web content at <h1>/<h2>. Heading text gets a
// markdown-style "# " or "## " prefix, and sections whose text is shorter
// than minLen characters are dropped. If nothing survives, the whole content
// becomes a single page.
func SplitWeb(src string, minLen int) (*Document, error) {
	if minLen <= 0 {
		minLen = DefaultMinSectionLength
	}
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	doc := &Document{Strategy: "web"}
	readHead(root, doc)

	body := findFirst(root, func(n *html.Node) bool { return isElement(n, atom.Body) })
	if body == nil {
		doc.Strategy = "single"
		doc.Sections = []Section{{}}
		return doc, nil
	}

	walk(body, prefixHeading)

	isBoundary := func(n *html.Node) bool {
		return isElement(n, atom.H1) || isElement(n, atom.H2)
	}
	for _, s := range splitAt(body, isBoundary) {
		if utf8.RuneCountInString(s.Text()) < minLen {
			continue
		}
		doc.Sections = append(doc.Sections, s)
	}
	if len(doc.Sections) == 0 {
		doc.Strategy = "single"
		doc.Sections = []Section{wholeBody(body)}
	}
	linkSections(doc.Sections)
	return doc, nil
}

func prefixHeading(n *html.Node) {
	var marker string
	switch {
	case isElement(n, atom.H1):
		marker = "# "
	case isElement(n, atom.H2):
		marker = "## "
	default:
		return
	}
	if strings.HasPrefix(textOf(n), strings.TrimSpace(marker)) {
		return
	}
	n.InsertBefore(&html.Node{Type: html.TextNode, Data: marker}, n.FirstChild)
}
