package splitter

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// PageFile is the file name of the n-th page (1-based).
func PageFile(n int) string {
	return fmt.Sprintf("page-%d.html", n)
}

func anchorIndex(sections []Section) map[string]int {
	idx := make(map[string]int)
	for i, s := range sections {
		for _, n := range s.Nodes {
			walk(n, func(x *html.Node) {
				if x.Type != html.ElementNode {
					return
				}
				if id := attr(x, "id"); id != "" {
					if _, seen := idx[id]; !seen {
						idx[id] = i + 1
					}
				}
			})
		}
	}
	return idx
}

// linkSections points in-document fragment links at the page that now holds
// their target. Links to anchors on the same page are left alone.
func linkSections(sections []Section) {
	if len(sections) < 2 {
		return
	}
	idx := anchorIndex(sections)
	for i, s := range sections {
		page := i + 1
		for _, n := range s.Nodes {
			walk(n, func(x *html.Node) {
				if !isElement(x, atom.A) {
					return
				}
				href := attr(x, "href")
				if !strings.HasPrefix(href, "#") {
					return
				}
				target, ok := idx[href[1:]]
				if !ok || target == page {
					return
				}
				setAttr(x, "href", PageFile(target)+href)
			})
		}
	}
}

// renderTOC rewrites the navigation block so that every entry links into
// pages/ relative to the book root.
func renderTOC(nav *html.Node, sections []Section) (string, error) {
	idx := anchorIndex(sections)
	walk(nav, func(x *html.Node) {
		if !isElement(x, atom.A) {
			return
		}
		href := attr(x, "href")
		if !strings.HasPrefix(href, "#") {
			return
		}
		page, ok := idx[href[1:]]
		if !ok {
			page = 1
		}
		setAttr(x, "href", "pages/"+PageFile(page)+href)
		setAttr(x, "data-page", fmt.Sprint(page))
	})
	out, err := render([]*html.Node{nav})
	if err != nil {
		return "", fmt.Errorf("render toc: %w", err)
	}
	return out, nil
}
