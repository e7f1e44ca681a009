package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/choirhub/internal/apperror"
	"github.com/sakif/choirhub/internal/model"
	"github.com/sakif/choirhub/internal/repository"
)

var _ repository.SongRepository = (*SongDB)(nil)

// SongDB is the songs table. Every read also loads the song's assets.
type SongDB struct {
	conn *sql.DB
}

const songColumns = `id, uuid, name, category, description, active, created_at, updated_at`

func scanSong(row scanner) (*model.Song, error) {
	var (
		s        model.Song
		category sql.NullString
	)
	err := row.Scan(
		&s.ID,
		&s.UUID,
		&s.Name,
		&category,
		&s.Description,
		&s.Active,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Category = stringPtr(category)
	s.Assets = []model.SongAsset{}
	return &s, nil
}

// Create inserts a song and assigns its UUID and timestamps.
func (r *SongDB) Create(ctx context.Context, s *model.Song) error {
	s.UUID = uuid.NewString()
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now

	res, err := r.conn.ExecContext(ctx,
		`INSERT INTO songs (uuid, name, category, description, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.UUID, s.Name, nullString(s.Category), s.Description, s.Active, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating song: %w", err)
	}
	if s.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("sqlite: reading song id: %w", err)
	}
	if s.Assets == nil {
		s.Assets = []model.SongAsset{}
	}
	return nil
}

// GetByUUID returns a song with all of its assets.
func (r *SongDB) GetByUUID(ctx context.Context, id string) (*model.Song, error) {
	s, err := scanSong(r.conn.QueryRowContext(ctx,
		`SELECT `+songColumns+` FROM songs WHERE uuid = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("song", id)
		}
		return nil, fmt.Errorf("sqlite: getting song %s: %w", id, err)
	}

	songs := []model.Song{*s}
	if err := loadAssets(ctx, r.conn, songs, false); err != nil {
		return nil, err
	}
	return &songs[0], nil
}

// List returns songs newest first, filtered, with their assets, plus the
// number of songs matching the filter.
func (r *SongDB) List(ctx context.Context, filter repository.SongFilter, opts repository.ListOptions) ([]model.Song, int, error) {
	where, args := songWhere(filter)

	var total int
	if err := r.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM songs`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting songs: %w", err)
	}

	limit, limitArgs := limitClause(opts)
	songs, err := r.query(ctx,
		`SELECT `+songColumns+` FROM songs`+where+` ORDER BY created_at DESC, id DESC`+limit,
		append(args, limitArgs...)...)
	if err != nil {
		return nil, 0, err
	}

	if err := loadAssets(ctx, r.conn, songs, false); err != nil {
		return nil, 0, err
	}
	return songs, total, nil
}

// songWhere renders the WHERE clause for filter. The free-text query is an
// unanchored LIKE on name, description and category.
func songWhere(filter repository.SongFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.Query != "" {
		like := "%" + filter.Query + "%"
		conds = append(conds, "(name LIKE ? OR description LIKE ? OR category LIKE ?)")
		args = append(args, like, like, like)
	}
	if filter.Category != nil {
		conds = append(conds, "category = ?")
		args = append(args, *filter.Category)
	}
	if filter.Active != nil {
		conds = append(conds, "active = ?")
		args = append(args, *filter.Active)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Update writes the editable fields of s.
func (r *SongDB) Update(ctx context.Context, s *model.Song) error {
	s.UpdatedAt = time.Now().UTC()
	res, err := r.conn.ExecContext(ctx,
		`UPDATE songs SET name = ?, category = ?, description = ?, active = ?, updated_at = ?
		 WHERE uuid = ?`,
		s.Name, nullString(s.Category), s.Description, s.Active, s.UpdatedAt, s.UUID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating song %s: %w", s.UUID, err)
	}
	return requireOneRow(res, "song", s.UUID)
}

// Delete removes a song. Its asset rows go with it (ON DELETE CASCADE); the
// stored files are the caller's job.
func (r *SongDB) Delete(ctx context.Context, id string) error {
	res, err := r.conn.ExecContext(ctx, `DELETE FROM songs WHERE uuid = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting song %s: %w", id, err)
	}
	return requireOneRow(res, "song", id)
}

// ListPublished returns every active song with its active assets, newest
// first. This backs the dashboard.
func (r *SongDB) ListPublished(ctx context.Context) ([]model.Song, error) {
	songs, err := r.query(ctx,
		`SELECT `+songColumns+` FROM songs WHERE active = 1 ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	if err := loadAssets(ctx, r.conn, songs, true); err != nil {
		return nil, err
	}
	return songs, nil
}

// Stats computes the dashboard counters in one round trip.
func (r *SongDB) Stats(ctx context.Context) (model.Stats, error) {
	var st model.Stats
	err := r.conn.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM choirs),
			(SELECT COUNT(*) FROM songs WHERE active = 1),
			(SELECT COUNT(*) FROM song_assets WHERE type = 'mp3' AND active = 1),
			(SELECT COUNT(*) FROM song_assets WHERE active = 1)`,
	).Scan(&st.TotalChoirs, &st.TotalSongs, &st.TotalMp3s, &st.TotalAssets)
	if err != nil {
		return model.Stats{}, fmt.Errorf("sqlite: computing stats: %w", err)
	}
	return st, nil
}

// query runs a song SELECT and closes the rows before returning, which frees
// the single connection for the asset query that follows.
func (r *SongDB) query(ctx context.Context, q string, args ...any) ([]model.Song, error) {
	rows, err := r.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing songs: %w", err)
	}
	defer rows.Close()

	songs := make([]model.Song, 0)
	for rows.Next() {
		s, err := scanSong(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning song row: %w", err)
		}
		songs = append(songs, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating song rows: %w", err)
	}
	return songs, nil
}

// loadAssets fills in Assets for every song with a single IN query, oldest
// asset first. With activeOnly, inactive assets are left out.
func loadAssets(ctx context.Context, q querier, songs []model.Song, activeOnly bool) error {
	if len(songs) == 0 {
		return nil
	}

	index := make(map[int64]int, len(songs))
	args := make([]any, 0, len(songs))
	for i := range songs {
		index[songs[i].ID] = i
		args = append(args, songs[i].ID)
	}

	query := `SELECT ` + assetColumns + ` FROM song_assets WHERE song_id IN (` + placeholders(len(args)) + `)`
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY id ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sqlite: loading song assets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return fmt.Errorf("sqlite: scanning asset row: %w", err)
		}
		if i, ok := index[a.SongID]; ok {
			songs[i].Assets = append(songs[i].Assets, *a)
		}
	}
	return rows.Err()
}
