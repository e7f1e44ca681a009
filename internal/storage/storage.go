// Package storage keeps the files behind song assets.
//
// Objects are addressed by a relative, slash-separated key such as
// "song-assets/mp3/cv37rs3pp9olc6atsptg.mp3". Two backends exist: the local
// filesystem and an S3-compatible bucket through MinIO.
package storage

import (
	"context"
	"io"
	"path"
	"strings"
	"time"

	"github.com/rs/xid"
)

// Object is an open stored file. Content supports seeking so it can be
// served with HTTP range requests.
type Object struct {
	io.ReadSeekCloser
	Size    int64
	ModTime time.Time
}

// Storage stores and retrieves asset files.
type Storage interface {
	// Save writes r under key and returns the number of bytes written.
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (int64, error)

	// Open returns the object at key, or an apperror NotFound.
	Open(ctx context.Context, key string) (*Object, error)

	// Delete removes the object at key. A missing object is not an error.
	Delete(ctx context.Context, key string) error
}

// NewKey returns a fresh key "<dir>/<xid>.<ext>".
//
// xid ids are 20 URL-safe characters and sort by creation time, so a listing
// of a directory comes back in upload order.
func NewKey(dir, ext string) string {
	name := xid.New().String()
	if ext != "" {
		name += "." + ext
	}
	return path.Join(dir, name)
}

// CleanKey normalizes key and reports whether it stays inside the storage
// root: no absolute paths, no "..", no empty key.
func CleanKey(key string) (string, bool) {
	key = strings.ReplaceAll(key, "\\", "/")
	if key == "" || strings.HasPrefix(key, "/") {
		return "", false
	}
	clean := path.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", false
	}
	return clean, true
}

// PublicURL is the address clients fetch key from: "<base>/storage/<key>".
func PublicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/storage/" + strings.TrimLeft(key, "/")
}
