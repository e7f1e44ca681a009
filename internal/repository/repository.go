// Package repository declares the persistence contracts the service layer
// depends on. Implementations live in sub-packages (sqlite).
package repository

import (
	"context"

	"github.com/sakif/choirhub/internal/model"
)

// ListOptions is offset pagination. A zero Limit means "no limit".
type ListOptions struct {
	Limit  int
	Offset int
}

// SongFilter narrows a song listing. Zero values mean "no filter".
type SongFilter struct {
	// Query is matched with LIKE against name, description and category.
	Query    string
	Category *string
	Active   *bool
}

// ChoirRepository stores choir member accounts and their session tokens.
type ChoirRepository interface {
	Create(ctx context.Context, choir *model.Choir) error
	GetByUUID(ctx context.Context, uuid string) (*model.Choir, error)
	GetByToken(ctx context.Context, token string) (*model.Choir, error)
	List(ctx context.Context, opts ListOptions) ([]model.Choir, int, error)
	Update(ctx context.Context, choir *model.Choir) error
	Delete(ctx context.Context, uuid string) error
	Count(ctx context.Context) (int, error)

	// RotateToken finds the account whose code matches exactly and replaces
	// its token in one transaction. Returns ErrNotFound when no code matches.
	RotateToken(ctx context.Context, code, token string) (*model.Choir, error)

	// ClearToken removes token from whichever account holds it. It reports
	// whether an account was changed; an unknown token is not an error.
	ClearToken(ctx context.Context, token string) (bool, error)
}

// SongRepository stores songs. Reads load each song's assets.
type SongRepository interface {
	Create(ctx context.Context, song *model.Song) error
	GetByUUID(ctx context.Context, uuid string) (*model.Song, error)
	List(ctx context.Context, filter SongFilter, opts ListOptions) ([]model.Song, int, error)
	Update(ctx context.Context, song *model.Song) error
	Delete(ctx context.Context, uuid string) error

	// ListPublished returns active songs with only their active assets.
	ListPublished(ctx context.Context) ([]model.Song, error)
	Stats(ctx context.Context) (model.Stats, error)
}

// AssetRepository stores song assets.
type AssetRepository interface {
	Create(ctx context.Context, asset *model.SongAsset) error
	GetByUUID(ctx context.Context, uuid string) (*model.SongAsset, error)
	ListBySong(ctx context.Context, songID int64, opts ListOptions) ([]model.SongAsset, int, error)
	Update(ctx context.Context, asset *model.SongAsset) error
	Delete(ctx context.Context, uuid string) error
}
