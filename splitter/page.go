package splitter

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ReaderCSS is inlined into every page.
const ReaderCSS = `body {
  max-width: 46em;
  margin: 0 auto;
  padding: 2em 1.5em;
  font-family: Georgia, "Times New Roman", serif;
  font-size: 1.1em;
  line-height: 1.65;
  color: #222;
  background: #fdfdfb;
}
h1, h2, h3, h4 { line-height: 1.25; margin-top: 1.6em; }
img, svg, video { max-width: 100%; height: auto; }
pre { overflow-x: auto; padding: 0.8em; background: #f4f4f2; }
code { font-family: Menlo, Consolas, monospace; font-size: 0.92em; }
blockquote { margin-left: 0; padding-left: 1em; border-left: 3px solid #ccc; color: #555; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ddd; padding: 0.3em 0.6em; }
`

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html{{if .Lang}} lang="{{.Lang}}"{{end}}>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>{{.CSS}}</style>
{{.Styles}}
<link rel="stylesheet" href="/static/highlight.css">
</head>
<body data-page="{{.Page}}">
{{.Body}}
</body>
</html>
`))

type pageData struct {
	Lang   string
	Title  string
	CSS    template.CSS
	Styles template.HTML
	Page   int
	Body   template.HTML
}

// Pages renders every section as a standalone HTML document. Element i of
// the result is page i+1.
func (d *Document) Pages() ([]string, error) {
	out := make([]string, 0, len(d.Sections))
	for i, s := range d.Sections {
		page, err := d.renderPage(i+1, s)
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", i+1, err)
		}
		out = append(out, page)
	}
	return out, nil
}

func (d *Document) renderPage(n int, s Section) (string, error) {
	for _, node := range s.Nodes {
		walk(node, relocateMedia)
	}
	body, err := s.HTML()
	if err != nil {
		return "", err
	}

	title := s.Title
	switch {
	case title == "":
		title = d.Title
	case d.Title != "" && title != d.Title:
		title = title + " - " + d.Title
	}

	var buf bytes.Buffer
	err = pageTemplate.Execute(&buf, pageData{
		Lang:   d.Lang,
		Title:  title,
		CSS:    template.CSS(ReaderCSS),
		Styles: template.HTML(d.Styles),
		Page:   n,
		Body:   template.HTML(body),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// relocateMedia makes book-relative media references resolve from pages/.
func relocateMedia(n *html.Node) {
	if n.Type != html.ElementNode {
		return
	}
	var key string
	switch n.DataAtom {
	case atom.Img, atom.Source, atom.Video, atom.Audio:
		key = "src"
	case atom.Image:
		key = "href"
	default:
		if n.Data != "image" {
			return
		}
		key = "href"
	}
	for _, k := range []string{key, "xlink:href"} {
		v := attr(n, k)
		if strings.HasPrefix(v, "media/") {
			setAttr(n, k, "../"+v)
		}
	}
}
