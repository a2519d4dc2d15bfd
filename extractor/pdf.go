package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// InspectPDF reads the page count and document title. PDFs are stored
// unmodified, so a file the reader cannot parse still yields a Document with
// empty metadata.
func (e *Extractor) InspectPDF(data []byte) *Document {
	doc := &Document{}
	if err := readPDFInfo(data, doc); err != nil {
		e.logger.Warn("pdf metadata unavailable", zap.Error(err))
	}
	return doc
}

func readPDFInfo(data []byte, doc *Document) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open pdf: %w", err)
	}
	doc.PageCount = r.NumPage()

	info := r.Trailer().Key("Info")
	doc.Title = strings.TrimSpace(info.Key("Title").Text())
	doc.Author = strings.TrimSpace(info.Key("Author").Text())
	return nil
}
