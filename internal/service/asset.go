package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"

	"github.com/sakif/choirhub/internal/apperror"
	"github.com/sakif/choirhub/internal/media"
	"github.com/sakif/choirhub/internal/model"
	"github.com/sakif/choirhub/internal/repository"
	"github.com/sakif/choirhub/internal/storage"
)

// acceptedMIME lists the sniffed content types accepted for each asset type.
var acceptedMIME = map[model.AssetType][]string{
	model.AssetAudio:    {"audio/mpeg", "audio/mp3"},
	model.AssetVideo:    {"video/mp4"},
	model.AssetDocument: {"application/pdf"},
}

// Upload is a file received from a client.
type Upload struct {
	Content  io.Reader
	Size     int64
	Filename string
}

// AssetInput is the form part of an asset create or update.
type AssetInput struct {
	SongUUID string
	Name     string
	Type     string
	Active   *bool
}

// AssetFile is an asset together with its open stored file.
type AssetFile struct {
	Asset  *model.SongAsset
	Object *storage.Object
}

// AssetService manages song assets and their stored files.
type AssetService struct {
	assets repository.AssetRepository
	songs  repository.SongRepository
	files  storage.Storage
	logger *slog.Logger
}

// NewAssetService creates an AssetService.
func NewAssetService(assets repository.AssetRepository, songs repository.SongRepository, files storage.Storage, logger *slog.Logger) *AssetService {
	return &AssetService{assets: assets, songs: songs, files: files, logger: logger}
}

// validated is AssetInput after checking, with the song resolved.
type validated struct {
	song *model.Song
	name string
	typ  model.AssetType
}

func (s *AssetService) validate(ctx context.Context, in AssetInput) (*validated, error) {
	if in.SongUUID == "" {
		return nil, apperror.ValidationFailed("song_uuid", "The song uuid field is required.")
	}
	name, err := requireText("name", "name", in.Name)
	if err != nil {
		return nil, err
	}
	if in.Type == "" {
		return nil, apperror.ValidationFailed("type", "The type field is required.")
	}
	typ, ok := model.ParseAssetType(in.Type)
	if !ok {
		return nil, apperror.ValidationFailed("type", "The selected type is invalid.")
	}

	song, err := s.songs.GetByUUID(ctx, in.SongUUID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ValidationFailed("song_uuid", "The selected song uuid is invalid.")
		}
		return nil, err
	}
	return &validated{song: song, name: name, typ: typ}, nil
}

// SniffMIME detects the content type of the first bytes of a file.
//
// http.DetectContentType only recognizes MP3 when it starts with an ID3 tag,
// so a bare MPEG audio frame header is recognized here as well.
func SniffMIME(head []byte) string {
	ct := http.DetectContentType(head)
	if ct == media.FallbackContentType && len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0 {
		return "audio/mpeg"
	}
	return ct
}

// store checks that up matches typ and writes it under a new key.
func (s *AssetService) store(ctx context.Context, typ model.AssetType, up *Upload) (string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(up.Content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return "", apperror.ValidationFailed("file", "The file field is required.")
	}

	mime := SniffMIME(head)
	if !slices.Contains(acceptedMIME[typ], mime) {
		return "", apperror.ValidationFailed("file", fmt.Sprintf("The file must be a valid %s file.", typ))
	}

	key := storage.NewKey("song-assets/"+string(typ), string(typ))
	body := io.MultiReader(bytes.NewReader(head), up.Content)
	if _, err := s.files.Save(ctx, key, body, up.Size, mime); err != nil {
		return "", fmt.Errorf("saving upload: %w", err)
	}
	return key, nil
}

// Create validates in, stores the file and adds the asset row. If the row
// cannot be written the stored file is removed again.
func (s *AssetService) Create(ctx context.Context, in AssetInput, up *Upload) (*model.SongAsset, string, error) {
	v, err := s.validate(ctx, in)
	if err != nil {
		return nil, "", err
	}
	if up == nil || up.Content == nil {
		return nil, "", apperror.ValidationFailed("file", "The file field is required.")
	}

	key, err := s.store(ctx, v.typ, up)
	if err != nil {
		return nil, "", err
	}

	asset := &model.SongAsset{
		SongID: v.song.ID,
		Name:   v.name,
		Type:   v.typ,
		Path:   key,
		Active: true,
	}
	if in.Active != nil {
		asset.Active = *in.Active
	}

	if err := s.assets.Create(ctx, asset); err != nil {
		s.removeFile(ctx, key)
		return nil, "", fmt.Errorf("creating asset: %w", err)
	}
	s.logger.Info("asset uploaded",
		slog.String("asset", asset.UUID),
		slog.String("song", v.song.UUID),
		slog.String("path", key),
	)
	return asset, v.song.UUID, nil
}

// Update changes an asset. With a new file the old one is replaced: the new
// file is stored first and the old one removed only after the row points at
// the new path. The type may only change together with a new file.
func (s *AssetService) Update(ctx context.Context, uuid string, in AssetInput, up *Upload) (*model.SongAsset, string, error) {
	asset, err := s.assets.GetByUUID(ctx, uuid)
	if err != nil {
		return nil, "", err
	}
	v, err := s.validate(ctx, in)
	if err != nil {
		return nil, "", err
	}
	hasFile := up != nil && up.Content != nil
	if v.typ != asset.Type && !hasFile {
		return nil, "", apperror.ValidationFailed("file", "The file field is required when the type changes.")
	}

	oldPath := asset.Path
	asset.SongID = v.song.ID
	asset.Name = v.name
	asset.Type = v.typ
	if in.Active != nil {
		asset.Active = *in.Active
	}

	replaced := false
	if hasFile {
		key, err := s.store(ctx, v.typ, up)
		if err != nil {
			return nil, "", err
		}
		asset.Path = key
		replaced = true
	}

	if err := s.assets.Update(ctx, asset); err != nil {
		if replaced {
			s.removeFile(ctx, asset.Path)
		}
		return nil, "", err
	}
	if replaced {
		s.removeFile(ctx, oldPath)
	}
	return asset, v.song.UUID, nil
}

// Delete removes the asset row and then its file.
func (s *AssetService) Delete(ctx context.Context, uuid string) error {
	asset, err := s.assets.GetByUUID(ctx, uuid)
	if err != nil {
		return err
	}
	if err := s.assets.Delete(ctx, uuid); err != nil {
		return err
	}
	s.removeFile(ctx, asset.Path)
	s.logger.Info("asset deleted", slog.String("asset", uuid))
	return nil
}

// ListBySong returns one page of a song's assets, newest first.
func (s *AssetService) ListBySong(ctx context.Context, songUUID string, page int) (*model.Song, Page[model.SongAsset], error) {
	song, err := s.songs.GetByUUID(ctx, songUUID)
	if err != nil {
		return nil, Page[model.SongAsset]{}, err
	}
	opts, page := pageOptions(page)
	items, total, err := s.assets.ListBySong(ctx, song.ID, opts)
	if err != nil {
		return nil, Page[model.SongAsset]{}, fmt.Errorf("listing assets: %w", err)
	}
	return song, Page[model.SongAsset]{Items: items, CurrentPage: page, PerPage: PerPage, Total: total}, nil
}

// Open resolves an asset and opens its file. A row whose file is missing is
// NotFound. The caller must close the returned object.
func (s *AssetService) Open(ctx context.Context, uuid string) (*AssetFile, error) {
	asset, err := s.assets.GetByUUID(ctx, uuid)
	if err != nil {
		return nil, err
	}
	obj, err := s.files.Open(ctx, asset.Path)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Warn("asset file missing", slog.String("asset", uuid), slog.String("path", asset.Path))
		}
		return nil, err
	}
	return &AssetFile{Asset: asset, Object: obj}, nil
}

// OpenPath opens a stored file directly by key, for the public storage route.
// Keys that would leave the storage root are NotFound.
func (s *AssetService) OpenPath(ctx context.Context, key string) (*storage.Object, error) {
	clean, ok := storage.CleanKey(key)
	if !ok {
		s.logger.Debug("storage key rejected", slog.String("path", key))
		return nil, apperror.FileNotFound()
	}
	obj, err := s.files.Open(ctx, clean)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Debug("stored file missing", slog.String("path", clean))
		}
		return nil, err
	}
	return obj, nil
}

func (s *AssetService) removeFile(ctx context.Context, key string) {
	if err := s.files.Delete(ctx, key); err != nil {
		s.logger.Warn("removing asset file", slog.String("path", key), slog.String("error", err.Error()))
	}
}
