package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/choirhub/internal/model"
	"github.com/sakif/choirhub/internal/repository"
	"github.com/sakif/choirhub/internal/storage"
)

// SongInput is the editable part of a song. A nil Active keeps the current
// value on update and means true on create.
type SongInput struct {
	Name        string
	Category    *string
	Description string
	Active      *bool
}

// SongQuery is a member search. Nil fields are not filtered on.
type SongQuery struct {
	Q        string
	Category *string
	Active   *bool
}

// Dashboard is the admin landing view.
type Dashboard struct {
	Stats model.Stats
	Songs []model.Song
}

// SongService serves the song library to members and admins.
type SongService struct {
	songs  repository.SongRepository
	files  storage.Storage
	logger *slog.Logger
}

// NewSongService creates a SongService. files is used to remove asset files
// when a song is deleted.
func NewSongService(songs repository.SongRepository, files storage.Storage, logger *slog.Logger) *SongService {
	return &SongService{songs: songs, files: files, logger: logger}
}

// List returns one page of songs, newest first, each with its assets.
func (s *SongService) List(ctx context.Context, page int) (Page[model.Song], error) {
	return s.Search(ctx, SongQuery{}, page)
}

// Search is List with filters applied.
func (s *SongService) Search(ctx context.Context, q SongQuery, page int) (Page[model.Song], error) {
	opts, page := pageOptions(page)
	filter := repository.SongFilter{Query: q.Q, Category: q.Category, Active: q.Active}

	items, total, err := s.songs.List(ctx, filter, opts)
	if err != nil {
		return Page[model.Song]{}, fmt.Errorf("listing songs: %w", err)
	}
	return Page[model.Song]{Items: items, CurrentPage: page, PerPage: PerPage, Total: total}, nil
}

// Get returns one song with its assets.
func (s *SongService) Get(ctx context.Context, uuid string) (*model.Song, error) {
	return s.songs.GetByUUID(ctx, uuid)
}

func (in SongInput) validate() (SongInput, error) {
	var err error
	if in.Name, err = requireText("name", "name", in.Name); err != nil {
		return in, err
	}
	if in.Category, err = optionalText("category", "category", in.Category); err != nil {
		return in, err
	}
	return in, nil
}

// Create validates in and adds a song.
func (s *SongService) Create(ctx context.Context, in SongInput) (*model.Song, error) {
	in, err := in.validate()
	if err != nil {
		return nil, err
	}

	song := &model.Song{
		Name:        in.Name,
		Category:    in.Category,
		Description: in.Description,
		Active:      true,
	}
	if in.Active != nil {
		song.Active = *in.Active
	}

	if err := s.songs.Create(ctx, song); err != nil {
		return nil, fmt.Errorf("creating song: %w", err)
	}
	s.logger.Info("song created", slog.String("song", song.UUID))
	return song, nil
}

// Update replaces the editable fields of a song.
func (s *SongService) Update(ctx context.Context, uuid string, in SongInput) (*model.Song, error) {
	in, err := in.validate()
	if err != nil {
		return nil, err
	}

	song, err := s.songs.GetByUUID(ctx, uuid)
	if err != nil {
		return nil, err
	}
	song.Name = in.Name
	song.Category = in.Category
	song.Description = in.Description
	if in.Active != nil {
		song.Active = *in.Active
	}

	if err := s.songs.Update(ctx, song); err != nil {
		return nil, err
	}
	return song, nil
}

// Delete removes a song, its asset rows and their files.
//
// The rows go first. A file that cannot be removed afterwards is logged and
// left behind; it is unreachable once its row is gone.
func (s *SongService) Delete(ctx context.Context, uuid string) error {
	song, err := s.songs.GetByUUID(ctx, uuid)
	if err != nil {
		return err
	}
	if err := s.songs.Delete(ctx, uuid); err != nil {
		return err
	}

	for _, a := range song.Assets {
		if err := s.files.Delete(ctx, a.Path); err != nil {
			s.logger.Warn("orphaned asset file",
				slog.String("path", a.Path),
				slog.String("error", err.Error()),
			)
		}
	}
	s.logger.Info("song deleted", slog.String("song", uuid), slog.Int("assets", len(song.Assets)))
	return nil
}

// Dashboard returns the counters and every published song.
func (s *SongService) Dashboard(ctx context.Context) (*Dashboard, error) {
	stats, err := s.songs.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading stats: %w", err)
	}
	songs, err := s.songs.ListPublished(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading published songs: %w", err)
	}
	return &Dashboard{Stats: stats, Songs: songs}, nil
}
