package publishers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"sort"
)

// formFile is the file part of a multipart/form-data request.
type formFile struct {
	Field string
	Name  string
	MIME  string
	Path  string // read from disk when set
	Data  []byte // used when Path is empty
}

func (f formFile) open() (io.ReadCloser, error) {
	if f.Path != "" {
		return os.Open(f.Path)
	}
	return io.NopCloser(bytes.NewReader(f.Data)), nil
}

// multipartRequest streams fields and file as multipart/form-data. The body is produced by a goroutine
// through a pipe so large videos are never held in memory; the pipe is closed when the transport stops
// reading.
func multipartRequest(ctx context.Context, method, endpoint string, fields url.Values, file formFile) (*http.Request, error) {
	src, err := file.open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", file.Name, err)
	}
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		defer src.Close()
		pw.CloseWithError(writeMultipart(mw, fields, file, src))
	}()

	req, err := http.NewRequestWithContext(ctx, method, endpoint, pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req, nil
}

func writeMultipart(mw *multipart.Writer, fields url.Values, file formFile, src io.Reader) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range fields[k] {
			if err := mw.WriteField(k, v); err != nil {
				return err
			}
		}
	}

	h := make(textproto.MIMEHeader)
	name := file.Name
	if name == "" {
		name = filepath.Base(file.Path)
	}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.Field, name))
	ct := file.MIME
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, src); err != nil {
		return err
	}
	return mw.Close()
}
