package library

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/kljensen/snowball"
	"golang.org/x/net/html"
)

const snippetRadius = 80

type SearchHit struct {
	Page    int    `json:"page"`
	Snippet string `json:"snippet"`
}

func stemWord(word string) string {
	stem, err := snowball.Stem(word, "english", true)
	if err != nil {
		return word
	}
	return stem
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Search returns the pages whose text contains every stemmed query term.
func (l *Library) Search(id, query string) ([]SearchHit, error) {
	terms := map[string]struct{}{}
	for _, w := range tokenize(query) {
		terms[stemWord(w)] = struct{}{}
	}
	hits := []SearchHit{}
	if len(terms) == 0 {
		return hits, nil
	}

	m, err := l.ReadManifest(id)
	if err != nil {
		return nil, err
	}
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
		text := pageText(doc)

		found := map[string]string{}
		for _, w := range tokenize(text) {
			s := stemWord(w)
			if _, ok := terms[s]; ok {
				if _, seen := found[s]; !seen {
					found[s] = w
				}
			}
		}
		if len(found) < len(terms) {
			continue
		}

		var first string
		for _, w := range tokenize(query) {
			if word, ok := found[stemWord(w)]; ok {
				first = word
				break
			}
		}
		hits = append(hits, SearchHit{Page: i, Snippet: snippet(text, first)})
	}
	return hits, nil
}

// pageText joins the text nodes of the page body with a space, so words at
// element boundaries stay apart.
func pageText(doc *goquery.Document) string {
	doc.Find("script, style").Remove()
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Find("body").Nodes {
		walk(n)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func snippet(text, word string) string {
	runes := []rune(text)
	at := indexRunes([]rune(strings.ToLower(text)), []rune(word))
	if at < 0 || at > len(runes) {
		at = 0
	}
	start := max(0, at-snippetRadius)
	end := min(len(runes), at+len([]rune(word))+snippetRadius)

	out := strings.TrimSpace(string(runes[start:end]))
	if start > 0 {
		out = "…" + out
	}
	if end < len(runes) {
		out += "…"
	}
	return out
}

func indexRunes(s, sub []rune) int {
	if len(sub) == 0 {
		return -1
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		match := true
		for j := range sub {
			if s[i+j] != sub[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
