package extractor

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

var codeClass = regexp.MustCompile(`^(language-[\w+#-]+|hljs[\w-]*)(\s+(language-[\w+#-]+|hljs[\w-]*))*$`)

// newPolicy allows structural and text markup, links and images. Styling
// attributes are dropped except code highlighting classes.
func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"article", "section", "div", "span", "p", "br", "hr",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li", "dl", "dt", "dd",
		"blockquote", "pre", "code", "kbd", "samp", "var",
		"em", "strong", "b", "i", "u", "s", "del", "ins", "mark", "small", "sub", "sup", "abbr", "cite", "q",
		"figure", "figcaption",
		"table", "thead", "tbody", "tfoot", "tr", "caption",
	)
	p.AllowAttrs("id").Globally()

	p.AllowStandardURLs()
	p.AllowAttrs("href").OnElements("a")
	p.RequireNoFollowOnLinks(false)

	p.AllowImages()
	p.AllowDataURIImages()
	p.AllowAttrs("src", "alt", "title", "width", "height").OnElements("img")

	p.AllowAttrs("colspan", "rowspan").OnElements("td", "th")
	p.AllowElements("td", "th")

	p.AllowAttrs("class").Matching(codeClass).OnElements("code", "pre", "span")
	return p
}

// Sanitize applies the content allowlist to an HTML fragment.
func (e *Extractor) Sanitize(fragment string) string {
	return e.policy.Sanitize(fragment)
}
