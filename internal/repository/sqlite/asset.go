package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/choirhub/internal/apperror"
	"github.com/sakif/choirhub/internal/model"
	"github.com/sakif/choirhub/internal/repository"
)

var _ repository.AssetRepository = (*AssetDB)(nil)

// AssetDB is the song_assets table.
type AssetDB struct {
	conn *sql.DB
}

const assetColumns = `id, uuid, song_id, name, type, path, active, created_at, updated_at`

func scanAsset(row scanner) (*model.SongAsset, error) {
	var a model.SongAsset
	err := row.Scan(
		&a.ID,
		&a.UUID,
		&a.SongID,
		&a.Name,
		&a.Type,
		&a.Path,
		&a.Active,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts an asset row. The file must already be in storage.
func (r *AssetDB) Create(ctx context.Context, a *model.SongAsset) error {
	a.UUID = uuid.NewString()
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	res, err := r.conn.ExecContext(ctx,
		`INSERT INTO song_assets (uuid, song_id, name, type, path, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.UUID, a.SongID, a.Name, string(a.Type), a.Path, a.Active, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating asset: %w", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("sqlite: reading asset id: %w", err)
	}
	return nil
}

// GetByUUID returns one asset.
func (r *AssetDB) GetByUUID(ctx context.Context, id string) (*model.SongAsset, error) {
	a, err := scanAsset(r.conn.QueryRowContext(ctx,
		`SELECT `+assetColumns+` FROM song_assets WHERE uuid = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("song asset", id)
		}
		return nil, fmt.Errorf("sqlite: getting asset %s: %w", id, err)
	}
	return a, nil
}

// ListBySong returns a song's assets newest first, with the total count.
func (r *AssetDB) ListBySong(ctx context.Context, songID int64, opts repository.ListOptions) ([]model.SongAsset, int, error) {
	var total int
	if err := r.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM song_assets WHERE song_id = ?`, songID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting assets: %w", err)
	}

	limit, limitArgs := limitClause(opts)
	rows, err := r.conn.QueryContext(ctx,
		`SELECT `+assetColumns+` FROM song_assets WHERE song_id = ?
		 ORDER BY created_at DESC, id DESC`+limit,
		append([]any{songID}, limitArgs...)...)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing assets: %w", err)
	}
	defer rows.Close()

	assets := make([]model.SongAsset, 0)
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("sqlite: scanning asset row: %w", err)
		}
		assets = append(assets, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: iterating asset rows: %w", err)
	}
	return assets, total, nil
}

// Update writes name, type, path and active. Moving an asset to another song
// is allowed.
func (r *AssetDB) Update(ctx context.Context, a *model.SongAsset) error {
	a.UpdatedAt = time.Now().UTC()
	res, err := r.conn.ExecContext(ctx,
		`UPDATE song_assets SET song_id = ?, name = ?, type = ?, path = ?, active = ?, updated_at = ?
		 WHERE uuid = ?`,
		a.SongID, a.Name, string(a.Type), a.Path, a.Active, a.UpdatedAt, a.UUID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating asset %s: %w", a.UUID, err)
	}
	return requireOneRow(res, "song asset", a.UUID)
}

// Delete removes an asset row. The stored file is the caller's job.
func (r *AssetDB) Delete(ctx context.Context, id string) error {
	res, err := r.conn.ExecContext(ctx, `DELETE FROM song_assets WHERE uuid = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting asset %s: %w", id, err)
	}
	return requireOneRow(res, "song asset", id)
}
