package extractor

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".svg": true, ".avif": true, ".bmp": true,
}

// imageStore downloads remote images into one book's media directory. The
// counter and URL map live for the whole extraction, so crawled pages share
// one sequence.
type imageStore struct {
	e      *Extractor
	dir    string
	next   int
	byURL  map[string]string
	failed map[string]error
	assets []Asset
}

func (e *Extractor) newImageStore(bookDir string) *imageStore {
	return &imageStore{
		e:      e,
		dir:    filepath.Join(bookDir, "media"),
		byURL:  make(map[string]string),
		failed: make(map[string]error),
	}
}

// imageSource picks src, then data-src, then the first srcset candidate.
func imageSource(s *goquery.Selection) string {
	for _, attr := range []string{"src", "data-src", "data-original", "data-lazy-src"} {
		if v, ok := s.Attr(attr); ok {
			v = strings.TrimSpace(v)
			if v != "" && !strings.HasPrefix(v, "data:image/gif") {
				return v
			}
		}
	}
	if set, ok := s.Attr("srcset"); ok {
		first := strings.TrimSpace(strings.Split(set, ",")[0])
		if fields := strings.Fields(first); len(fields) > 0 {
			return fields[0]
		}
	}
	return ""
}

// rewrite points every <img> under sel at a local media file. Images that
// cannot be downloaded are removed.
func (s *imageStore) rewrite(ctx context.Context, sel *goquery.Selection, base *url.URL) {
	sel.Find("img").Each(func(_ int, img *goquery.Selection) {
		raw := imageSource(img)
		if raw == "" {
			img.Remove()
			return
		}
		if strings.HasPrefix(raw, "data:") {
			return
		}
		abs, err := base.Parse(raw)
		if err != nil || (abs.Scheme != "http" && abs.Scheme != "https") {
			img.Remove()
			return
		}
		local, err := s.fetch(ctx, abs.String())
		if err != nil {
			s.e.logger.Warn("image dropped", zap.String("url", abs.String()), zap.Error(err))
			img.Remove()
			return
		}
		img.SetAttr("src", local)
		for _, a := range []string{"srcset", "sizes", "data-src", "data-original", "data-lazy-src", "loading"} {
			img.RemoveAttr(a)
		}
	})
}

func (s *imageStore) fetch(ctx context.Context, rawURL string) (string, error) {
	if local, ok := s.byURL[rawURL]; ok {
		return local, nil
	}
	if err, ok := s.failed[rawURL]; ok {
		return "", err
	}
	local, err := s.download(ctx, rawURL)
	if err != nil {
		s.failed[rawURL] = err
		return "", err
	}
	s.byURL[rawURL] = local
	return local, nil
}

func (s *imageStore) download(ctx context.Context, rawURL string) (string, error) {
	resp, err := s.e.client.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("server returned status %d", resp.StatusCode())
	}
	body := resp.Body()
	if len(body) == 0 {
		return "", errors.New("empty image")
	}
	if limit := s.e.cfg.MaxImageBytes; limit > 0 && int64(len(body)) > limit {
		return "", fmt.Errorf("image exceeds %d bytes", limit)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create media dir: %w", err)
	}
	name := fmt.Sprintf("image-%d%s", s.next+1, imageExt(rawURL, resp.Header().Get("Content-Type")))
	if err := os.WriteFile(filepath.Join(s.dir, name), body, 0644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	s.next++
	s.assets = append(s.assets, Asset{Name: "media/" + name, SourceURL: rawURL, Size: len(body)})
	return "media/" + name, nil
}

func imageExt(rawURL, contentType string) string {
	if u, err := url.Parse(rawURL); err == nil {
		ext := strings.ToLower(path.Ext(u.Path))
		if ext == ".jpeg" {
			ext = ".jpg"
		}
		if imageExts[ext] {
			return ext
		}
	}
	if ct, _, err := mime.ParseMediaType(contentType); err == nil {
		switch ct {
		case "image/jpeg":
			return ".jpg"
		case "image/svg+xml":
			return ".svg"
		}
		if exts, _ := mime.ExtensionsByType(ct); len(exts) > 0 && imageExts[exts[0]] {
			return exts[0]
		}
	}
	return ".jpg"
}
