package dataset

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Fetcher downloads remote CSV datasets into a local cache directory.
type Fetcher struct {
	rest *resty.Client
	dir  string
}

// NewFetcher creates a fetcher caching files under dir.
func NewFetcher(dir string, timeout time.Duration) *Fetcher {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(30 * time.Second)
	}
	r.SetRetryCount(2)
	return &Fetcher{rest: r, dir: dir}
}

// Fetch downloads rawURL into the cache directory and returns the local path.
// The file is stored as name with a short digest of the URL's host, path and
// query inserted before the extension, so equal base names from different
// sources do not collide. An already cached file is reused without
// contacting the server.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, name string) (string, error) {
	dest := filepath.Join(f.dir, cacheName(rawURL, name))

	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		log.Debug().Str("path", dest).Msg("Using cached dataset")
		return dest, nil
	}

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	tmp := dest + ".part"
	resp, err := f.rest.R().
		SetContext(ctx).
		SetOutput(tmp).
		Get(rawURL)
	if err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if resp.IsError() {
		os.Remove(tmp)
		return "", fmt.Errorf("fetch %s: unexpected status %s", rawURL, resp.Status())
	}
	if err := os.Rename(tmp, dest); err != nil {
		return "", fmt.Errorf("failed to move downloaded dataset: %w", err)
	}

	log.Info().
		Str("url", rawURL).
		Str("path", dest).
		Dur("elapsed", resp.Time()).
		Msg("Dataset downloaded")
	return dest, nil
}

func cacheName(rawURL, name string) string {
	key := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		key = u.Host + u.Path
		if u.RawQuery != "" {
			key += "?" + u.RawQuery
		}
		if name == "" {
			name = path.Base(u.Path)
		}
	}
	if name == "" || name == "/" || name == "." {
		name = "dataset.csv"
	}
	digest := uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()[:8]
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + "-" + digest + ext
}
