package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sakif/choirhub/internal/handler"
	"github.com/sakif/choirhub/internal/model"
	"github.com/sakif/choirhub/internal/repository/sqlite"
	"github.com/sakif/choirhub/internal/service"
	"github.com/sakif/choirhub/internal/storage"
)

const (
	demoCode  = "11916339"
	publicURL = "http://choir.test"
)

var pdfBytes = []byte("%PDF-1.4\n1 0 obj << /Type /Catalog >> endobj\ntrailer\n%%EOF\n")

// fixture is the real service stack over an in-memory database and a
// temporary storage directory.
type fixture struct {
	db     *sqlite.DB
	files  *storage.Local
	auth   *service.AuthService
	choirs *service.ChoirService
	songs  *service.SongService
	assets *service.AssetService
	router chi.Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	files, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { files.Close() })

	f := &fixture{
		db:     db,
		files:  files,
		auth:   service.NewAuthService(db.Choirs(), nil, logger),
		choirs: service.NewChoirService(db.Choirs(), logger),
		songs:  service.NewSongService(db.Songs(), files, logger),
		assets: service.NewAssetService(db.Assets(), db.Songs(), files, logger),
	}

	urlFor := func(p string) string { return storage.PublicURL(publicURL, p) }
	authH := handler.NewAuthHandler(f.auth, logger)
	songH := handler.NewSongHandler(f.songs, urlFor, logger)
	fileH := handler.NewFileHandler(f.assets, nil, logger)
	adminH := handler.NewAdminHandler(f.choirs, f.songs, urlFor, logger)
	assetH := handler.NewAssetHandler(f.assets, urlFor, 1<<20, logger)
	healthH := handler.NewHealthHandler(db, logger)

	r := chi.NewRouter()
	r.Post("/api/login", authH.HandleLogin)
	r.Post("/api/validate-token", authH.HandleValidateToken)
	r.Post("/api/logout", authH.HandleLogout)
	r.Get("/api/songs", songH.HandleList)
	r.Get("/api/songs/search", songH.HandleSearch)
	r.Get("/api/songs/{uuid}", songH.HandleShow)
	r.Get("/api/song-assets/{uuid}/download", fileH.HandleDownload)
	r.Get("/storage/*", fileH.HandleStorage)
	r.Get("/admin/dashboard", adminH.HandleDashboard)
	r.Get("/admin/choirs", adminH.HandleListChoirs)
	r.Post("/admin/choirs", adminH.HandleCreateChoir)
	r.Put("/admin/choirs/{uuid}", adminH.HandleUpdateChoir)
	r.Delete("/admin/choirs/{uuid}", adminH.HandleDeleteChoir)
	r.Get("/admin/songs", adminH.HandleListSongs)
	r.Post("/admin/songs", adminH.HandleCreateSong)
	r.Put("/admin/songs/{uuid}", adminH.HandleUpdateSong)
	r.Delete("/admin/songs/{uuid}", adminH.HandleDeleteSong)
	r.Get("/admin/songs/{uuid}/assets", assetH.HandleListBySong)
	r.Post("/admin/song-assets", assetH.HandleCreate)
	r.Put("/admin/song-assets/{uuid}", assetH.HandleUpdate)
	r.Delete("/admin/song-assets/{uuid}", assetH.HandleDelete)
	r.Get("/admin/song-assets/{uuid}/serve", fileH.HandleServe)
	r.Get("/healthz", healthH.HandleHealth)
	f.router = r

	return f
}

func (f *fixture) seedMember(t *testing.T) *model.Choir {
	t.Helper()
	c := &model.Choir{Name: "Demo Member", Email: "demo@choir.test", Level: "senior", Code: demoCode}
	require.NoError(t, f.db.Choirs().Create(context.Background(), c))
	return c
}

func (f *fixture) seedSong(t *testing.T, name string) *model.Song {
	t.Helper()
	s, err := f.songs.Create(context.Background(), service.SongInput{Name: name})
	require.NoError(t, err)
	return s
}

func (f *fixture) seedAsset(t *testing.T, song *model.Song, name string) *model.SongAsset {
	t.Helper()
	up := &service.Upload{Content: bytes.NewReader(pdfBytes), Size: int64(len(pdfBytes)), Filename: "score.pdf"}
	a, _, err := f.assets.Create(context.Background(), service.AssetInput{SongUUID: song.UUID, Name: name, Type: "pdf"}, up)
	require.NoError(t, err)
	return a
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), "body: %s", rr.Body.String())
	return v
}

type multipartField struct {
	name, value string
}

// multipartRequest builds a multipart/form-data request; file is omitted
// when nil.
func multipartRequest(t *testing.T, method, target string, fields []multipartField, file []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range fields {
		require.NoError(t, mw.WriteField(f.name, f.value))
	}
	if file != nil {
		part, err := mw.CreateFormFile("file", "upload.bin")
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
