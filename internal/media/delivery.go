// Package media resolves how a stored asset file is delivered to a client:
// its content type, disposition and caching headers. Everything here is a
// pure function of the stored path and the asset's display name.
package media

import (
	"mime"
	"net/http"
	"path"
	"strings"
)

// FallbackContentType is used for any extension outside the known set.
const FallbackContentType = "application/octet-stream"

const (
	AcceptRanges = "bytes"
	CacheControl = "public, max-age=3600"
)

var contentTypes = map[string]string{
	"mp3": "audio/mpeg",
	"mp4": "video/mp4",
	"pdf": "application/pdf",
}

// Mode selects between viewing in the browser and saving to disk.
type Mode int

const (
	Inline Mode = iota
	Download
)

// Extension returns the lower-cased extension of p without the dot, or ""
// when p has none.
func Extension(p string) string {
	ext := path.Ext(p)
	if ext == "" || ext == "." {
		return ""
	}
	return strings.ToLower(ext[1:])
}

// ContentType maps the extension of p to a content type.
func ContentType(p string) string {
	if ct, ok := contentTypes[Extension(p)]; ok {
		return ct
	}
	return FallbackContentType
}

// Delivery is the set of headers sent with an asset body.
type Delivery struct {
	ContentType        string
	ContentDisposition string
	AcceptRanges       string
	CacheControl       string
}

// Resolve builds the delivery headers for the file stored at storedPath.
// For downloads the suggested filename is the asset name plus the stored
// extension.
func Resolve(storedPath, name string, mode Mode) Delivery {
	d := Delivery{
		ContentType:        ContentType(storedPath),
		ContentDisposition: "inline",
		AcceptRanges:       AcceptRanges,
		CacheControl:       CacheControl,
	}
	if mode == Download {
		d.ContentDisposition = attachment(Filename(storedPath, name))
	}
	return d
}

// Filename is the name a downloaded asset is saved under.
func Filename(storedPath, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.TrimSuffix(path.Base(storedPath), path.Ext(storedPath))
	}
	if ext := Extension(storedPath); ext != "" {
		return name + "." + ext
	}
	return name
}

func attachment(filename string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}

// Apply writes d onto h.
func (d Delivery) Apply(h http.Header) {
	h.Set("Content-Type", d.ContentType)
	h.Set("Content-Disposition", d.ContentDisposition)
	h.Set("Accept-Ranges", d.AcceptRanges)
	h.Set("Cache-Control", d.CacheControl)
}
