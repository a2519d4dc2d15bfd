package splitter

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			out = append(out, a)
		}
	}
	n.Attr = out
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func isElement(n *html.Node, a atom.Atom) bool {
	return n != nil && n.Type == html.ElementNode && n.DataAtom == a
}

// findFirst returns the first node in document order matching fn.
func findFirst(n *html.Node, fn func(*html.Node) bool) *html.Node {
	if fn(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, fn); found != nil {
			return found
		}
	}
	return nil
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

func cloneNode(n *html.Node) *html.Node {
	c := shallowClone(n)
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		c.AppendChild(cloneNode(ch))
	}
	return c
}

func shallowClone(n *html.Node) *html.Node {
	return &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
}

// textOf concatenates all text below n with whitespace collapsed.
func textOf(nodes ...*html.Node) string {
	var b strings.Builder
	for _, n := range nodes {
		walk(n, func(x *html.Node) {
			if x.Type == html.TextNode {
				b.WriteString(x.Data)
				b.WriteByte(' ')
			}
		})
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

var mediaAtoms = map[atom.Atom]bool{
	atom.Img:   true,
	atom.Svg:   true,
	atom.Video: true,
	atom.Audio: true,
	atom.Table: true,
}

// hasContent reports whether nodes carry visible text or media.
func hasContent(nodes []*html.Node) bool {
	if textOf(nodes...) != "" {
		return true
	}
	for _, n := range nodes {
		if findFirst(n, func(x *html.Node) bool {
			return x.Type == html.ElementNode && mediaAtoms[x.DataAtom]
		}) != nil {
			return true
		}
	}
	return false
}

func render(nodes []*html.Node) (string, error) {
	var buf bytes.Buffer
	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

func isHeading(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return true
	}
	return false
}
