package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM, extension.Footnote),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

// ConvertMarkdown renders a Markdown upload into a standalone HTML document.
// The title is the first level-one heading, or fallback when there is none.
func (e *Extractor) ConvertMarkdown(src []byte, fallback string) (*Document, error) {
	var buf bytes.Buffer
	if err := markdown.Convert(src, &buf); err != nil {
		return nil, fmt.Errorf("%w: markdown: %v", ErrConversion, err)
	}
	title := markdownTitle(src)
	if title == "" {
		title = fallback
	}
	return &Document{
		Title: title,
		HTML:  wrapDocument(title, "", e.Sanitize(buf.String())),
	}, nil
}

func markdownTitle(src []byte) string {
	inFence := false
	for _, line := range strings.Split(string(src), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if !inFence && strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
		}
	}
	return ""
}
