package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/choirhub/internal/model"
	"github.com/sakif/choirhub/internal/service"
)

// ChoirManager is the admin side of member accounts.
type ChoirManager interface {
	Create(ctx context.Context, in service.ChoirInput) (*model.Choir, error)
	List(ctx context.Context, page int) (service.Page[model.Choir], error)
	Update(ctx context.Context, uuid string, in service.ChoirInput) (*model.Choir, error)
	Delete(ctx context.Context, uuid string) error
}

// SongManager is the admin side of the song library.
type SongManager interface {
	List(ctx context.Context, page int) (service.Page[model.Song], error)
	Create(ctx context.Context, in service.SongInput) (*model.Song, error)
	Update(ctx context.Context, uuid string, in service.SongInput) (*model.Song, error)
	Delete(ctx context.Context, uuid string) error
	Dashboard(ctx context.Context) (*service.Dashboard, error)
}

// AdminHandler serves the dashboard and the member and song admin routes.
// Everything here sits behind auth.RequireAdmin.
type AdminHandler struct {
	choirs    ChoirManager
	songs     SongManager
	publicURL func(path string) string
	logger    *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(choirs ChoirManager, songs SongManager, publicURL func(string) string, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{choirs: choirs, songs: songs, publicURL: publicURL, logger: logger}
}

// decodeJSON reads the request body into dst. It reports false, after
// answering 400, when the body is not valid JSON.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		badRequest(w, "Invalid JSON body")
		return false
	}
	return true
}

// DashboardResponse is the admin landing view.
type DashboardResponse struct {
	Stats model.Stats          `json:"stats"`
	Songs []model.SongResource `json:"songs"`
}

// HandleDashboard returns the counters and every active song with its
// active assets.
//
// HTTP: GET /admin/dashboard
func (h *AdminHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.songs.Dashboard(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	songs := make([]model.SongResource, 0, len(d.Songs))
	for _, s := range d.Songs {
		songs = append(songs, s.Resource(h.publicURL))
	}
	writeJSON(w, http.StatusOK, DashboardResponse{Stats: d.Stats, Songs: songs})
}

// =========================================================================
// CHOIR MEMBERS
// =========================================================================

type choirRequest struct {
	Name             string  `json:"name"`
	Email            string  `json:"email"`
	Level            string  `json:"level"`
	Role             string  `json:"role"`
	VoiceDesignation *string `json:"voice_designation"`
}

func (c choirRequest) input() service.ChoirInput {
	return service.ChoirInput{
		Name:             c.Name,
		Email:            c.Email,
		Level:            c.Level,
		Role:             c.Role,
		VoiceDesignation: c.VoiceDesignation,
	}
}

func profileOf(c model.Choir) model.Profile { return c.Profile() }

// HandleListChoirs returns one page of members, newest first.
//
// HTTP: GET /admin/choirs?page=1
func (h *AdminHandler) HandleListChoirs(w http.ResponseWriter, r *http.Request) {
	page, err := h.choirs.List(r.Context(), pageParam(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, paginate(page, profileOf))
}

// HandleCreateChoir adds a member. The login code is generated, never
// supplied.
//
// HTTP: POST /admin/choirs
func (h *AdminHandler) HandleCreateChoir(w http.ResponseWriter, r *http.Request) {
	var req choirRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.choirs.Create(r.Context(), req.input())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]model.Profile{"data": c.Profile()})
}

// HandleUpdateChoir replaces a member's profile.
//
// HTTP: PUT /admin/choirs/{uuid}
func (h *AdminHandler) HandleUpdateChoir(w http.ResponseWriter, r *http.Request) {
	var req choirRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.choirs.Update(r.Context(), chi.URLParam(r, "uuid"), req.input())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]model.Profile{"data": c.Profile()})
}

// HandleDeleteChoir removes a member.
//
// HTTP: DELETE /admin/choirs/{uuid}
func (h *AdminHandler) HandleDeleteChoir(w http.ResponseWriter, r *http.Request) {
	if err := h.choirs.Delete(r.Context(), chi.URLParam(r, "uuid")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =========================================================================
// SONGS
// =========================================================================

type songRequest struct {
	Name        string  `json:"name"`
	Category    *string `json:"category"`
	Description string  `json:"description"`
	Active      *bool   `json:"active"`
}

func (s songRequest) input() service.SongInput {
	return service.SongInput{
		Name:        s.Name,
		Category:    s.Category,
		Description: s.Description,
		Active:      s.Active,
	}
}

// HandleListSongs returns one page of songs, newest first.
//
// HTTP: GET /admin/songs?page=1
func (h *AdminHandler) HandleListSongs(w http.ResponseWriter, r *http.Request) {
	page, err := h.songs.List(r.Context(), pageParam(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, paginate(page, func(s model.Song) model.SongResource {
		return s.Resource(h.publicURL)
	}))
}

// HandleCreateSong adds a song. Active defaults to true.
//
// HTTP: POST /admin/songs
func (h *AdminHandler) HandleCreateSong(w http.ResponseWriter, r *http.Request) {
	var req songRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	s, err := h.songs.Create(r.Context(), req.input())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]model.SongResource{"data": s.Resource(h.publicURL)})
}

// HandleUpdateSong changes a song. An omitted active flag is left as is.
//
// HTTP: PUT /admin/songs/{uuid}
func (h *AdminHandler) HandleUpdateSong(w http.ResponseWriter, r *http.Request) {
	var req songRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	s, err := h.songs.Update(r.Context(), chi.URLParam(r, "uuid"), req.input())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]model.SongResource{"data": s.Resource(h.publicURL)})
}

// HandleDeleteSong removes a song together with its assets and their files.
//
// HTTP: DELETE /admin/songs/{uuid}
func (h *AdminHandler) HandleDeleteSong(w http.ResponseWriter, r *http.Request) {
	if err := h.songs.Delete(r.Context(), chi.URLParam(r, "uuid")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
