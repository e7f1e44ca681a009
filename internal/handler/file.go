package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/choirhub/internal/media"
	"github.com/sakif/choirhub/internal/service"
	"github.com/sakif/choirhub/internal/storage"
)

// AssetOpener opens stored asset files. *service.AssetService satisfies it.
type AssetOpener interface {
	Open(ctx context.Context, uuid string) (*service.AssetFile, error)
	OpenPath(ctx context.Context, key string) (*storage.Object, error)
}

// DeliveryRecorder counts served files by mode ("inline" or "download").
type DeliveryRecorder interface {
	Delivered(mode string)
}

// FileHandler streams asset files to clients.
//
// BODIES:
// http.ServeContent does the heavy lifting: it answers Range and
// If-Modified-Since requests from the seekable object, so audio and video
// can be scrubbed without downloading the whole file. Headers from
// media.Resolve are set first; ServeContent keeps a Content-Type that is
// already present.
type FileHandler struct {
	files  AssetOpener
	rec    DeliveryRecorder
	logger *slog.Logger
}

// NewFileHandler creates a FileHandler. rec may be nil.
func NewFileHandler(files AssetOpener, rec DeliveryRecorder, logger *slog.Logger) *FileHandler {
	return &FileHandler{files: files, rec: rec, logger: logger}
}

func modeName(m media.Mode) string {
	if m == media.Download {
		return "download"
	}
	return "inline"
}

func (h *FileHandler) serve(w http.ResponseWriter, r *http.Request, obj *storage.Object, path, name string, mode media.Mode) {
	defer obj.Close()

	media.Resolve(path, name, mode).Apply(w.Header())
	if h.rec != nil {
		h.rec.Delivered(modeName(mode))
	}
	http.ServeContent(w, r, "", obj.ModTime, obj)
}

func (h *FileHandler) serveAsset(w http.ResponseWriter, r *http.Request, mode media.Mode) {
	f, err := h.files.Open(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.serve(w, r, f.Object, f.Asset.Path, f.Asset.Name, mode)
}

// HandleDownload sends an asset as an attachment named after the asset.
//
// HTTP: GET /api/song-assets/{uuid}/download
func (h *FileHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	h.serveAsset(w, r, media.Download)
}

// HandleServe sends an asset for viewing in the browser.
//
// HTTP: GET /admin/song-assets/{uuid}/serve
func (h *FileHandler) HandleServe(w http.ResponseWriter, r *http.Request) {
	h.serveAsset(w, r, media.Inline)
}

// HandleStorage serves a stored object by its key, the target of the public
// URLs in asset resources.
//
// HTTP: GET /storage/song-assets/pdf/cv37rs3pp9olc6atsptg.pdf
func (h *FileHandler) HandleStorage(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")

	obj, err := h.files.OpenPath(r.Context(), key)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.serve(w, r, obj, key, "", media.Inline)
}
