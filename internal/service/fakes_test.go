package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sakif/choirhub/internal/apperror"
	"github.com/sakif/choirhub/internal/model"
	"github.com/sakif/choirhub/internal/repository"
	"github.com/sakif/choirhub/internal/storage"
)

// =========================================================================
// FAKE REPOSITORIES
// =========================================================================
//
// Hand-written in-memory implementations of the repository interfaces. They
// keep copies, never the caller's pointers, so a test cannot accidentally
// mutate stored state.

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeChoirRepo struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*model.Choir
	err    error // returned by every call when set
}

func newFakeChoirRepo() *fakeChoirRepo {
	return &fakeChoirRepo{byID: make(map[int64]*model.Choir)}
}

func (f *fakeChoirRepo) find(match func(*model.Choir) bool) *model.Choir {
	for _, c := range f.byID {
		if match(c) {
			return c
		}
	}
	return nil
}

func (f *fakeChoirRepo) Create(_ context.Context, c *model.Choir) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.find(func(o *model.Choir) bool { return o.Email == c.Email }) != nil {
		e := apperror.Conflict("choir", c.Email)
		e.Field = "email"
		e.Message = "The email has already been taken."
		return e
	}
	if f.find(func(o *model.Choir) bool { return o.Code == c.Code }) != nil {
		e := apperror.Conflict("choir", c.Code)
		e.Field = "code"
		return e
	}
	f.nextID++
	c.ID = f.nextID
	c.UUID = fmt.Sprintf("choir-%d", c.ID)
	if c.Role == "" {
		c.Role = model.DefaultRole
	}
	c.CreatedAt = time.Date(2026, 1, 1, 0, 0, int(c.ID), 0, time.UTC)
	c.UpdatedAt = c.CreatedAt
	stored := *c
	f.byID[c.ID] = &stored
	return nil
}

func (f *fakeChoirRepo) GetByUUID(_ context.Context, id string) (*model.Choir, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c := f.find(func(o *model.Choir) bool { return o.UUID == id }); c != nil {
		out := *c
		return &out, nil
	}
	return nil, apperror.NotFound("choir", id)
}

func (f *fakeChoirRepo) GetByToken(_ context.Context, token string) (*model.Choir, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if c := f.find(func(o *model.Choir) bool { return o.Token != nil && *o.Token == token && token != "" }); c != nil {
		out := *c
		return &out, nil
	}
	return nil, apperror.NotFound("choir", "token")
}

func (f *fakeChoirRepo) List(_ context.Context, opts repository.ListOptions) ([]model.Choir, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := make([]model.Choir, 0, len(f.byID))
	for _, c := range f.byID {
		all = append(all, *c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return paginate(all, opts), len(all), nil
}

func (f *fakeChoirRepo) Update(_ context.Context, c *model.Choir) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if other := f.find(func(o *model.Choir) bool { return o.Email == c.Email && o.UUID != c.UUID }); other != nil {
		e := apperror.Conflict("choir", c.Email)
		e.Field = "email"
		e.Message = "The email has already been taken."
		return e
	}
	stored := f.find(func(o *model.Choir) bool { return o.UUID == c.UUID })
	if stored == nil {
		return apperror.NotFound("choir", c.UUID)
	}
	stored.Name, stored.Email, stored.Level, stored.Role = c.Name, c.Email, c.Level, c.Role
	stored.VoiceDesignation = c.VoiceDesignation
	return nil
}

func (f *fakeChoirRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.find(func(o *model.Choir) bool { return o.UUID == id })
	if c == nil {
		return apperror.NotFound("choir", id)
	}
	delete(f.byID, c.ID)
	return nil
}

func (f *fakeChoirRepo) Count(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID), nil
}

func (f *fakeChoirRepo) RotateToken(_ context.Context, code, token string) (*model.Choir, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c := f.find(func(o *model.Choir) bool { return o.Code == code })
	if c == nil {
		return nil, apperror.NotFound("choir", "code")
	}
	next := c.WithToken(token, time.Now())
	*c = next
	return &next, nil
}

func (f *fakeChoirRepo) ClearToken(_ context.Context, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	c := f.find(func(o *model.Choir) bool { return o.Token != nil && *o.Token == token })
	if c == nil {
		return false, nil
	}
	*c = c.WithoutToken(time.Now())
	return true, nil
}

func paginate[T any](all []T, opts repository.ListOptions) []T {
	if opts.Offset >= len(all) {
		return []T{}
	}
	all = all[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(all) {
		all = all[:opts.Limit]
	}
	return all
}

// fakeLibrary implements both SongRepository and AssetRepository over one
// shared store, so cascades behave like the real schema.
type fakeLibrary struct {
	mu        sync.Mutex
	nextSong  int64
	nextAsset int64
	songs     map[int64]*model.Song
	assets    map[int64]*model.SongAsset

	lastFilter   repository.SongFilter
	failAssetOps bool
}

func newFakeLibrary() *fakeLibrary {
	return &fakeLibrary{songs: map[int64]*model.Song{}, assets: map[int64]*model.SongAsset{}}
}

// songRepo and assetRepo split fakeLibrary into the two interfaces, which
// share method names.
type songRepo struct{ *fakeLibrary }
type assetRepo struct{ *fakeLibrary }

func (f *fakeLibrary) withAssets(s model.Song, activeOnly bool) model.Song {
	s.Assets = []model.SongAsset{}
	ids := make([]int64, 0)
	for id, a := range f.assets {
		if a.SongID == s.ID && (!activeOnly || a.Active) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		s.Assets = append(s.Assets, *f.assets[id])
	}
	return s
}

func (r songRepo) Create(_ context.Context, s *model.Song) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSong++
	s.ID = r.nextSong
	s.UUID = fmt.Sprintf("song-%d", s.ID)
	s.CreatedAt = time.Date(2026, 1, 1, 0, 0, int(s.ID), 0, time.UTC)
	s.UpdatedAt = s.CreatedAt
	stored := *s
	stored.Assets = nil
	r.songs[s.ID] = &stored
	return nil
}

func (r songRepo) GetByUUID(_ context.Context, id string) (*model.Song, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.songs {
		if s.UUID == id {
			out := r.withAssets(*s, false)
			return &out, nil
		}
	}
	return nil, apperror.NotFound("song", id)
}

func (r songRepo) List(_ context.Context, filter repository.SongFilter, opts repository.ListOptions) ([]model.Song, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastFilter = filter
	all := make([]model.Song, 0)
	for _, s := range r.songs {
		if filter.Query != "" && !strings.Contains(s.Name, filter.Query) {
			continue
		}
		if filter.Active != nil && s.Active != *filter.Active {
			continue
		}
		all = append(all, r.withAssets(*s, false))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return paginate(all, opts), len(all), nil
}

func (r songRepo) Update(_ context.Context, s *model.Song) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.songs[s.ID]
	if !ok {
		return apperror.NotFound("song", s.UUID)
	}
	stored.Name, stored.Category, stored.Description, stored.Active = s.Name, s.Category, s.Description, s.Active
	return nil
}

func (r songRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sid, s := range r.songs {
		if s.UUID == id {
			delete(r.songs, sid)
			for aid, a := range r.assets {
				if a.SongID == sid {
					delete(r.assets, aid)
				}
			}
			return nil
		}
	}
	return apperror.NotFound("song", id)
}

func (r songRepo) ListPublished(_ context.Context) ([]model.Song, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Song, 0)
	for _, s := range r.songs {
		if s.Active {
			out = append(out, r.withAssets(*s, true))
		}
	}
	return out, nil
}

func (r songRepo) Stats(_ context.Context) (model.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var st model.Stats
	for _, s := range r.songs {
		if s.Active {
			st.TotalSongs++
		}
	}
	for _, a := range r.assets {
		if a.Active {
			st.TotalAssets++
			if a.Type == model.AssetAudio {
				st.TotalMp3s++
			}
		}
	}
	return st, nil
}

func (r assetRepo) Create(_ context.Context, a *model.SongAsset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAssetOps {
		return errors.New("database is locked")
	}
	r.nextAsset++
	a.ID = r.nextAsset
	a.UUID = fmt.Sprintf("asset-%d", a.ID)
	stored := *a
	r.assets[a.ID] = &stored
	return nil
}

func (r assetRepo) GetByUUID(_ context.Context, id string) (*model.SongAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.assets {
		if a.UUID == id {
			out := *a
			return &out, nil
		}
	}
	return nil, apperror.NotFound("song asset", id)
}

func (r assetRepo) ListBySong(_ context.Context, songID int64, opts repository.ListOptions) ([]model.SongAsset, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]model.SongAsset, 0)
	for _, a := range r.assets {
		if a.SongID == songID {
			all = append(all, *a)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return paginate(all, opts), len(all), nil
}

func (r assetRepo) Update(_ context.Context, a *model.SongAsset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAssetOps {
		return errors.New("database is locked")
	}
	if _, ok := r.assets[a.ID]; !ok {
		return apperror.NotFound("song asset", a.UUID)
	}
	stored := *a
	r.assets[a.ID] = &stored
	return nil
}

func (r assetRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for aid, a := range r.assets {
		if a.UUID == id {
			delete(r.assets, aid)
			return nil
		}
	}
	return apperror.NotFound("song asset", id)
}

// =========================================================================
// FAKE STORAGE
// =========================================================================

type memStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{files: make(map[string][]byte)}
}

func (m *memStorage) Save(_ context.Context, key string, r io.Reader, _ int64, _ string) (int64, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key] = b
	return int64(len(b)), nil
}

type nopCloser struct{ *bytes.Reader }

func (nopCloser) Close() error { return nil }

func (m *memStorage) Open(_ context.Context, key string) (*storage.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[key]
	if !ok {
		return nil, apperror.NotFound("file", key)
	}
	return &storage.Object{ReadSeekCloser: nopCloser{bytes.NewReader(b)}, Size: int64(len(b))}, nil
}

func (m *memStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, key)
	return nil
}

func (m *memStorage) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[key]
	return ok
}

func (m *memStorage) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

var (
	_ storage.Storage              = (*memStorage)(nil)
	_ repository.ChoirRepository   = (*fakeChoirRepo)(nil)
	_ repository.SongRepository    = songRepo{}
	_ repository.AssetRepository   = assetRepo{}
)
