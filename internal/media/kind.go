package media

import (
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

type Kind string

const (
	KindImage   Kind = "image"
	KindGIF     Kind = "gif"
	KindVideo   Kind = "video"
	KindUnknown Kind = "unknown"
)

var extTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

func typeByExtension(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if t, ok := extTypes[ext]; ok {
		return t
	}
	return mime.TypeByExtension(ext)
}

// KindOf classifies by MIME type, falling back to the extension of name.
func KindOf(mimeType, name string) Kind {
	switch {
	case mimeType == "image/gif":
		return KindGIF
	case strings.HasPrefix(mimeType, "image/"):
		return KindImage
	case strings.HasPrefix(mimeType, "video/"):
		return KindVideo
	}
	if byExt := typeByExtension(name); byExt != "" && byExt != mimeType {
		return KindOf(byExt, "")
	}
	return KindUnknown
}

// KindOfURI classifies a remote URL by its path extension without fetching it.
func KindOfURI(uri string) Kind {
	u, err := url.Parse(uri)
	if err != nil {
		return KindUnknown
	}
	return KindOf("", u.Path)
}

// MIMEOfURI guesses the content type of a remote URL from its extension.
func MIMEOfURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return typeByExtension(u.Path)
}

func detectMIME(p string) string {
	m, err := mimetype.DetectFile(p)
	if err == nil && m.String() != "application/octet-stream" {
		if i := strings.IndexByte(m.String(), ';'); i > 0 {
			return m.String()[:i]
		}
		return m.String()
	}
	return typeByExtension(p)
}
