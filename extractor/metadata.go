package extractor

import (
	"bytes"
	"net/url"

	"github.com/markusmobius/go-trafilatura"
	"go.uber.org/zap"
)

type pageMeta struct {
	Title    string
	Author   string
	SiteName string
	Language string
}

// pageMetadata reads title, author, site name and language. Extraction
// failures leave the fields empty for the caller's fallbacks.
func (e *Extractor) pageMetadata(body []byte, pageURL *url.URL) pageMeta {
	opts := trafilatura.Options{
		OriginalURL: pageURL,
	}
	result, err := trafilatura.Extract(bytes.NewReader(body), opts)
	if err != nil {
		e.logger.Debug("trafilatura: metadata unavailable", zap.String("url", pageURL.String()), zap.Error(err))
		return pageMeta{}
	}
	return pageMeta{
		Title:    result.Metadata.Title,
		Author:   result.Metadata.Author,
		SiteName: result.Metadata.Sitename,
		Language: result.Metadata.Language,
	}
}
