package extractor

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gocolly/colly/v2/storage"
	bolt "go.etcd.io/bbolt"
)

// CrawlState is the bbolt file holding visited requests and cookies of
// running crawls. Every crawl gets its own bucket, dropped when it ends.
type CrawlState struct {
	db *bolt.DB
}

func OpenCrawlState(path string) (*CrawlState, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for BoltDB: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open BoltDB: %w", err)
	}
	return &CrawlState{db: db}, nil
}

func (c *CrawlState) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// session returns colly storage scoped to one crawl.
func (c *CrawlState) session(name string) *crawlStorage {
	return &crawlStorage{db: c.db, bucket: []byte("crawl:" + name)}
}

type crawlStorage struct {
	db     *bolt.DB
	bucket []byte
	mu     sync.RWMutex
}

// Init creates the crawl's bucket. colly calls it from SetStorage.
func (s *crawlStorage) Init() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(s.bucket)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func (s *crawlStorage) Visited(requestID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		key := []byte(fmt.Sprintf("v:%d", requestID))
		return b.Put(key, []byte("1"))
	})
}

func (s *crawlStorage) IsVisited(requestID uint64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var visited bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		visited = b.Get([]byte(fmt.Sprintf("v:%d", requestID))) != nil
		return nil
	})
	return visited, err
}

func (s *crawlStorage) Cookies(u *url.URL) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cookies string
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if v := b.Get([]byte("c:" + u.Host)); v != nil {
			cookies = string(v)
		}
		return nil
	})
	return cookies
}

func (s *crawlStorage) SetCookies(u *url.URL, cookies string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte("c:"+u.Host), []byte(cookies))
	})
}

// Drop removes everything the crawl stored.
func (s *crawlStorage) Drop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(s.bucket) == nil {
			return nil
		}
		return tx.DeleteBucket(s.bucket)
	})
}

var _ storage.Storage = (*crawlStorage)(nil)
