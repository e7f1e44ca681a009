package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/choirhub/internal/apperror"
	"github.com/sakif/choirhub/internal/model"
	"github.com/sakif/choirhub/internal/service"
)

// multipartMemory is how much of a multipart form is held in memory before
// file parts spill to temporary files.
const multipartMemory = 32 << 20

// AssetManager is the admin side of song assets. *service.AssetService
// satisfies it.
type AssetManager interface {
	Create(ctx context.Context, in service.AssetInput, up *service.Upload) (*model.SongAsset, string, error)
	Update(ctx context.Context, uuid string, in service.AssetInput, up *service.Upload) (*model.SongAsset, string, error)
	Delete(ctx context.Context, uuid string) error
	ListBySong(ctx context.Context, songUUID string, page int) (*model.Song, service.Page[model.SongAsset], error)
}

// AssetHandler serves the admin asset routes. Uploads arrive as
// multipart/form-data with the fields song_uuid, name, type, active and file.
type AssetHandler struct {
	assets    AssetManager
	publicURL func(path string) string
	maxUpload int64
	logger    *slog.Logger
}

// NewAssetHandler creates an AssetHandler. maxUpload caps the size of a
// whole upload request in bytes.
func NewAssetHandler(assets AssetManager, publicURL func(string) string, maxUpload int64, logger *slog.Logger) *AssetHandler {
	return &AssetHandler{assets: assets, publicURL: publicURL, maxUpload: maxUpload, logger: logger}
}

// SongAssetsResponse is one page of a song's assets.
type SongAssetsResponse struct {
	Song model.SongResource         `json:"song"`
	Data []model.AdminAssetResource `json:"data"`
	Meta PageMeta                   `json:"meta"`
}

// HandleListBySong returns one page of a song's assets, newest first.
//
// HTTP: GET /admin/songs/{uuid}/assets?page=1
func (h *AssetHandler) HandleListBySong(w http.ResponseWriter, r *http.Request) {
	song, page, err := h.assets.ListBySong(r.Context(), chi.URLParam(r, "uuid"), pageParam(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	p := paginate(page, func(a model.SongAsset) model.AdminAssetResource {
		return a.AdminResource(song.UUID)
	})
	writeJSON(w, http.StatusOK, SongAssetsResponse{Song: song.Resource(h.publicURL), Data: p.Data, Meta: p.Meta})
}

// parseUpload reads the multipart form. The returned file, if any, must be
// closed by the caller.
func (h *AssetHandler) parseUpload(w http.ResponseWriter, r *http.Request) (service.AssetInput, *service.Upload, multipart.File, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return service.AssetInput{}, nil, nil, apperror.ValidationFailed("file",
				fmt.Sprintf("The file field must not be greater than %d kilobytes.", h.maxUpload>>10))
		}
		return service.AssetInput{}, nil, nil, apperror.ValidationFailed("file", "The request must be multipart/form-data.")
	}

	active, err := optionalBool(r.FormValue("active"))
	if err != nil {
		return service.AssetInput{}, nil, nil, err
	}
	in := service.AssetInput{
		SongUUID: r.FormValue("song_uuid"),
		Name:     r.FormValue("name"),
		Type:     r.FormValue("type"),
		Active:   active,
	}

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return in, nil, nil, nil
	}
	if err != nil {
		return in, nil, nil, fmt.Errorf("reading upload: %w", err)
	}
	return in, &service.Upload{Content: file, Size: header.Size, Filename: header.Filename}, file, nil
}

// HandleCreate uploads a new asset.
//
// HTTP: POST /admin/song-assets
func (h *AssetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	in, up, file, err := h.parseUpload(w, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if file != nil {
		defer file.Close()
	}

	a, songUUID, err := h.assets.Create(r.Context(), in, up)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]model.AdminAssetResource{"data": a.AdminResource(songUUID)})
}

// HandleUpdate changes an asset; a file part, when present, replaces the
// stored file.
//
// HTTP: PUT /admin/song-assets/{uuid}
func (h *AssetHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	in, up, file, err := h.parseUpload(w, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if file != nil {
		defer file.Close()
	}

	a, songUUID, err := h.assets.Update(r.Context(), chi.URLParam(r, "uuid"), in, up)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]model.AdminAssetResource{"data": a.AdminResource(songUUID)})
}

// HandleDelete removes an asset and its file.
//
// HTTP: DELETE /admin/song-assets/{uuid}
func (h *AssetHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.assets.Delete(r.Context(), chi.URLParam(r, "uuid")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
