// Package splitter partitions one normalized HTML document into an ordered
// sequence of standalone pages cut at heading boundaries.
package splitter

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Section is one future page: a run of top-level nodes cloned out of the
// source body.
type Section struct {
	Title string
	Nodes []*html.Node
}

// Document is the split result of one source document.
type Document struct {
	Title    string
	Lang     string
	Styles   string
	TOC      string
	Strategy string
	Sections []Section
}

// boundary strategies in the order they are tried.
var strategies = []struct {
	name  string
	match func(*html.Node) bool
}{
	{"level1", isLevel1Section},
	{"h1", func(n *html.Node) bool { return isElement(n, atom.H1) }},
	{"h2", func(n *html.Node) bool { return isElement(n, atom.H2) }},
}

func isLevel1Section(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if n.DataAtom != atom.Section && n.DataAtom != atom.Div {
		return false
	}
	return hasClass(n, "level1")
}

// Split parses a standalone HTML document (as produced by pandoc) and cuts its
// body into sections. A body without usable boundaries becomes one section.
func Split(src string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	doc := &Document{}
	readHead(root, doc)

	body := findFirst(root, func(n *html.Node) bool { return isElement(n, atom.Body) })
	if body == nil {
		doc.Strategy = "single"
		doc.Sections = []Section{{}}
		return doc, nil
	}

	nav := extractTOC(body)

	for _, s := range strategies {
		sections := splitAt(body, s.match)
		if len(sections) >= 2 {
			doc.Strategy = s.name
			doc.Sections = sections
			break
		}
	}
	if doc.Sections == nil {
		doc.Strategy = "single"
		doc.Sections = []Section{wholeBody(body)}
	}

	linkSections(doc.Sections)
	if nav != nil {
		doc.TOC, err = renderTOC(nav, doc.Sections)
		if err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func readHead(root *html.Node, doc *Document) {
	if h := findFirst(root, func(n *html.Node) bool { return isElement(n, atom.Html) }); h != nil {
		doc.Lang = attr(h, "lang")
		if doc.Lang == "" {
			doc.Lang = attr(h, "xml:lang")
		}
	}
	head := findFirst(root, func(n *html.Node) bool { return isElement(n, atom.Head) })
	if head == nil {
		return
	}
	if t := findFirst(head, func(n *html.Node) bool { return isElement(n, atom.Title) }); t != nil {
		doc.Title = textOf(t)
	}
	var styles []*html.Node
	for _, c := range children(head) {
		if isElement(c, atom.Style) {
			styles = append(styles, c)
		}
	}
	doc.Styles, _ = render(styles)
}

// extractTOC detaches the navigation block pandoc emits for --toc, or an
// EPUB3 toc nav.
func extractTOC(body *html.Node) *html.Node {
	nav := findFirst(body, func(n *html.Node) bool {
		if !isElement(n, atom.Nav) {
			return false
		}
		return attr(n, "id") == "TOC" || attr(n, "epub:type") == "toc" || attr(n, "role") == "doc-toc"
	})
	if nav != nil && nav.Parent != nil {
		nav.Parent.RemoveChild(nav)
	}
	return nav
}

// skipSubtree marks regions whose headings never start a page.
func skipSubtree(n *html.Node) bool {
	return n.Type == html.ElementNode && attr(n, "id") == "title-block-header"
}

func containsBoundary(n *html.Node, match func(*html.Node) bool) bool {
	if skipSubtree(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if match(c) || containsBoundary(c, match) {
			return true
		}
	}
	return false
}

// splitAt cuts the body so that every boundary node starts a new section.
// Content before the first boundary is kept as a leading section only when
// it has visible content.
func splitAt(body *html.Node, match func(*html.Node) bool) []Section {
	segs := segment(body, match)

	var out []Section
	for i, nodes := range segs {
		if i == 0 && !hasContent(nodes) {
			continue
		}
		if len(nodes) == 0 {
			continue
		}
		out = append(out, Section{Title: sectionTitle(nodes), Nodes: nodes})
	}
	return out
}

// segment returns runs of cloned nodes. The first run holds content before
// any boundary; each following run starts with a boundary. Wrappers that
// contain a boundary are split and re-created around each piece.
func segment(parent *html.Node, match func(*html.Node) bool) [][]*html.Node {
	segs := [][]*html.Node{nil}
	last := func() int { return len(segs) - 1 }

	for _, c := range children(parent) {
		switch {
		case !skipSubtree(c) && match(c):
			segs = append(segs, []*html.Node{cloneNode(c)})
		case c.Type == html.ElementNode && containsBoundary(c, match):
			sub := segment(c, match)
			for i, piece := range sub {
				if len(piece) == 0 {
					continue
				}
				w := shallowClone(c)
				if i > 0 {
					removeAttr(w, "id")
				}
				for _, p := range piece {
					w.AppendChild(p)
				}
				if i == 0 {
					segs[last()] = append(segs[last()], w)
				} else {
					segs = append(segs, []*html.Node{w})
				}
			}
		default:
			segs[last()] = append(segs[last()], cloneNode(c))
		}
	}
	return segs
}

func wholeBody(body *html.Node) Section {
	var nodes []*html.Node
	for _, c := range children(body) {
		nodes = append(nodes, cloneNode(c))
	}
	return Section{Title: sectionTitle(nodes), Nodes: nodes}
}

func sectionTitle(nodes []*html.Node) string {
	for _, n := range nodes {
		if h := findFirst(n, func(x *html.Node) bool { return isHeading(x) && !hasClass(x, "title") }); h != nil {
			return strings.TrimLeft(textOf(h), "# ")
		}
	}
	return ""
}

// HTML renders the section's nodes without a document wrapper.
func (s Section) HTML() (string, error) {
	return render(s.Nodes)
}

// Text returns the section's visible text, whitespace collapsed.
func (s Section) Text() string {
	return textOf(s.Nodes...)
}
