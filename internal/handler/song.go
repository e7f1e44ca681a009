package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/choirhub/internal/apperror"
	"github.com/sakif/choirhub/internal/model"
	"github.com/sakif/choirhub/internal/service"
)

// SongReader is the read side of the song library. *service.SongService
// satisfies it.
type SongReader interface {
	List(ctx context.Context, page int) (service.Page[model.Song], error)
	Search(ctx context.Context, q service.SongQuery, page int) (service.Page[model.Song], error)
	Get(ctx context.Context, uuid string) (*model.Song, error)
}

// SongHandler serves the member song API. Every route sits behind the
// member gate.
type SongHandler struct {
	songs     SongReader
	publicURL func(path string) string
	logger    *slog.Logger
}

// NewSongHandler creates a SongHandler. publicURL turns a storage path into
// the absolute URL placed in asset resources.
func NewSongHandler(songs SongReader, publicURL func(string) string, logger *slog.Logger) *SongHandler {
	return &SongHandler{songs: songs, publicURL: publicURL, logger: logger}
}

func (h *SongHandler) resource(s model.Song) model.SongResource {
	return s.Resource(h.publicURL)
}

// HandleList returns one page of songs, newest first.
//
// HTTP: GET /api/songs?page=2
func (h *SongHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	page, err := h.songs.List(r.Context(), pageParam(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, paginate(page, h.resource))
}

// HandleSearch filters the song list.
//
// HTTP: GET /api/songs/search?q=ave&category=Hymn&active=1
//
// q matches name, description and category by substring; category must match
// exactly; active is a boolean. Omitted parameters are not filtered on.
func (h *SongHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query, err := songQuery(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	page, err := h.songs.Search(r.Context(), query, pageParam(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, paginate(page, h.resource))
}

func songQuery(r *http.Request) (service.SongQuery, error) {
	values := r.URL.Query()
	q := service.SongQuery{Q: values.Get("q")}
	if c := values.Get("category"); c != "" {
		q.Category = &c
	}
	active, err := optionalBool(values.Get("active"))
	if err != nil {
		return q, err
	}
	q.Active = active
	return q, nil
}

// optionalBool parses a boolean parameter; "" is nil.
func optionalBool(s string) (*bool, error) {
	if s == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, apperror.ValidationFailed("active", "The active field must be true or false.")
	}
	return &b, nil
}

// HandleShow returns one song with its assets.
//
// HTTP: GET /api/songs/{uuid}
func (h *SongHandler) HandleShow(w http.ResponseWriter, r *http.Request) {
	song, err := h.songs.Get(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]model.SongResource{"data": h.resource(*song)})
}
