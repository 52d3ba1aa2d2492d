// Package media turns the URIs of a post (local path, http(s) URL, s3://bucket/key) into local files.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"social-publisher/internal/logging"
	"social-publisher/internal/s3"
)

// File is a media item readable from local disk. Files created by a download are removed by Close,
// so callers must defer Close on every path.
type File struct {
	Path   string
	Source string
	Size   int64
	MIME   string
	Kind   Kind

	temporary bool
}

// Open returns a reader positioned at the start of the file.
func (f *File) Open() (*os.File, error) {
	return os.Open(f.Path)
}

// Temporary reports whether the file was downloaded and will be deleted on Close.
func (f *File) Temporary() bool { return f.temporary }

func (f *File) Close() error {
	if f == nil || !f.temporary {
		return nil
	}
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

type Resolver struct {
	http    *http.Client
	s3      s3.Client
	tempDir string
	log     *logging.Logger
}

// NewResolver builds a resolver. s3c may be nil when no s3:// media is expected.
func NewResolver(httpClient *http.Client, s3c s3.Client, tempDir string, log *logging.Logger) *Resolver {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Resolver{http: httpClient, s3: s3c, tempDir: tempDir, log: log}
}

// Open makes uri available as a local File.
func (r *Resolver) Open(ctx context.Context, uri string) (*File, error) {
	uri = strings.TrimSpace(uri)
	switch {
	case uri == "":
		return nil, errors.New("media: empty uri")
	case IsRemote(uri):
		return r.downloadHTTP(ctx, uri)
	case strings.HasPrefix(uri, "s3://"):
		return r.downloadS3(ctx, uri)
	default:
		return describe(strings.TrimPrefix(uri, "file://"), uri, false)
	}
}

// IsRemote reports whether uri is an http(s) URL.
func IsRemote(uri string) bool {
	u, err := url.Parse(uri)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (r *Resolver) downloadHTTP(ctx context.Context, uri string) (*File, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", uri, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: http %d", uri, resp.StatusCode)
	}

	u, _ := url.Parse(uri)
	return r.toTemp(uri, path.Ext(u.Path), func(f *os.File) error {
		_, err := io.Copy(f, resp.Body)
		return err
	})
}

func (r *Resolver) downloadS3(ctx context.Context, uri string) (*File, error) {
	if r.s3 == nil {
		return nil, fmt.Errorf("media: no s3 client configured for %s", uri)
	}
	bucket, key, ok := s3.ParseURI(uri)
	if !ok {
		return nil, fmt.Errorf("media: malformed s3 uri %q", uri)
	}
	info, err := r.s3.Head(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("media: %s: %w", uri, err)
	}
	ext := path.Ext(key)
	if ext == "" && info.ContentType != "" {
		if m := mimetype.Lookup(info.ContentType); m != nil {
			ext = m.Extension()
		}
	}
	return r.toTemp(uri, ext, func(f *os.File) error {
		n, err := r.s3.Download(ctx, bucket, key, f)
		if err != nil {
			return err
		}
		if n != info.Size {
			return fmt.Errorf("got %d of %d bytes", n, info.Size)
		}
		return nil
	})
}

// toTemp writes into a fresh temp file and removes it again if fill or describe fails.
func (r *Resolver) toTemp(source, ext string, fill func(*os.File) error) (_ *File, err error) {
	tmp, err := os.CreateTemp(r.tempDir, "publish-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = fill(tmp); err != nil {
		return nil, fmt.Errorf("download %s: %w", source, err)
	}
	if err = tmp.Close(); err != nil {
		return nil, err
	}
	f, err := describe(tmp.Name(), source, true)
	if err != nil {
		return nil, err
	}
	r.log.Debugf("media: downloaded %s -> %s (%d bytes)", source, f.Path, f.Size)
	return f, nil
}

func describe(p, source string, temporary bool) (*File, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("media: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("media: %s is a directory", p)
	}
	mime := detectMIME(p)
	return &File{
		Path:      filepath.Clean(p),
		Source:    source,
		Size:      info.Size(),
		MIME:      mime,
		Kind:      KindOf(mime, p),
		temporary: temporary,
	}, nil
}
