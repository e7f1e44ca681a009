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

// compile-time check that *ChoirDB implements repository.ChoirRepository
var _ repository.ChoirRepository = (*ChoirDB)(nil)

// ChoirDB is the choirs table.
type ChoirDB struct {
	conn *sql.DB
}

const choirColumns = `id, uuid, name, email, level, role, voice_designation, code, token, created_at, updated_at`

func scanChoir(row scanner) (*model.Choir, error) {
	var (
		c     model.Choir
		voice sql.NullString
		token sql.NullString
	)
	err := row.Scan(
		&c.ID,
		&c.UUID,
		&c.Name,
		&c.Email,
		&c.Level,
		&c.Role,
		&voice,
		&c.Code,
		&token,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.VoiceDesignation = stringPtr(voice)
	c.Token = stringPtr(token)
	return &c, nil
}

// uniqueChoirError translates a UNIQUE failure into a Conflict naming the
// offending field, or returns nil if err is something else.
func uniqueChoirError(err error, c *model.Choir) error {
	switch {
	case isUniqueViolation(err, "choirs", "email"):
		e := apperror.Conflict("choir", c.Email)
		e.Field = "email"
		e.Message = "The email has already been taken."
		return e
	case isUniqueViolation(err, "choirs", "code"):
		e := apperror.Conflict("choir", c.Code)
		e.Field = "code"
		return e
	}
	return nil
}

// Create inserts a new member. UUID and timestamps are assigned here; Code
// must already be set. Role falls back to model.DefaultRole.
func (r *ChoirDB) Create(ctx context.Context, c *model.Choir) error {
	c.UUID = uuid.NewString()
	if c.Role == "" {
		c.Role = model.DefaultRole
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	res, err := r.conn.ExecContext(ctx,
		`INSERT INTO choirs (uuid, name, email, level, role, voice_designation, code, token, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.UUID,
		c.Name,
		c.Email,
		c.Level,
		c.Role,
		nullString(c.VoiceDesignation),
		c.Code,
		nullString(c.Token),
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if conflict := uniqueChoirError(err, c); conflict != nil {
			return conflict
		}
		return fmt.Errorf("sqlite: creating choir: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading choir id: %w", err)
	}
	c.ID = id
	return nil
}

// GetByUUID returns the member with the given public id.
func (r *ChoirDB) GetByUUID(ctx context.Context, id string) (*model.Choir, error) {
	c, err := scanChoir(r.conn.QueryRowContext(ctx,
		`SELECT `+choirColumns+` FROM choirs WHERE uuid = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("choir", id)
		}
		return nil, fmt.Errorf("sqlite: getting choir %s: %w", id, err)
	}
	return c, nil
}

// GetByToken returns the member currently holding token.
//
// The comparison is an exact match in SQL. An empty token never matches
// because logged-out members store NULL, not "".
func (r *ChoirDB) GetByToken(ctx context.Context, token string) (*model.Choir, error) {
	if token == "" {
		return nil, apperror.NotFound("choir", "token")
	}
	c, err := scanChoir(r.conn.QueryRowContext(ctx,
		`SELECT `+choirColumns+` FROM choirs WHERE token = ?`, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Never echo the token into an error message.
			return nil, apperror.NotFound("choir", "token")
		}
		return nil, fmt.Errorf("sqlite: getting choir by token: %w", err)
	}
	return c, nil
}

// List returns members newest first along with the total count.
func (r *ChoirDB) List(ctx context.Context, opts repository.ListOptions) ([]model.Choir, int, error) {
	total, err := r.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	limit, args := limitClause(opts)
	rows, err := r.conn.QueryContext(ctx,
		`SELECT `+choirColumns+` FROM choirs ORDER BY created_at DESC, id DESC`+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing choirs: %w", err)
	}
	defer rows.Close()

	choirs := make([]model.Choir, 0)
	for rows.Next() {
		c, err := scanChoir(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("sqlite: scanning choir row: %w", err)
		}
		choirs = append(choirs, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: iterating choir rows: %w", err)
	}

	return choirs, total, nil
}

// Update writes the profile fields of c. Code and token are not touched;
// they change only through Create, RotateToken and ClearToken.
func (r *ChoirDB) Update(ctx context.Context, c *model.Choir) error {
	c.UpdatedAt = time.Now().UTC()

	res, err := r.conn.ExecContext(ctx,
		`UPDATE choirs
		 SET name = ?, email = ?, level = ?, role = ?, voice_designation = ?, updated_at = ?
		 WHERE uuid = ?`,
		c.Name,
		c.Email,
		c.Level,
		c.Role,
		nullString(c.VoiceDesignation),
		c.UpdatedAt,
		c.UUID,
	)
	if err != nil {
		if conflict := uniqueChoirError(err, c); conflict != nil {
			return conflict
		}
		return fmt.Errorf("sqlite: updating choir %s: %w", c.UUID, err)
	}

	return requireOneRow(res, "choir", c.UUID)
}

// Delete removes the member with the given public id.
func (r *ChoirDB) Delete(ctx context.Context, id string) error {
	res, err := r.conn.ExecContext(ctx, `DELETE FROM choirs WHERE uuid = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting choir %s: %w", id, err)
	}
	return requireOneRow(res, "choir", id)
}

// Count returns the number of members.
func (r *ChoirDB) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM choirs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting choirs: %w", err)
	}
	return n, nil
}

// RotateToken is the persistence half of login.
//
// READ-CHECK-WRITE IN ONE TRANSACTION:
// The code lookup and the token overwrite run in the same transaction, so the
// row we write is the row we matched. Two concurrent logins for one member
// both succeed and the later commit wins; only its token stays valid.
func (r *ChoirDB) RotateToken(ctx context.Context, code, token string) (*model.Choir, error) {
	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: beginning login: %w", err)
	}
	defer tx.Rollback()

	current, err := scanChoir(tx.QueryRowContext(ctx,
		`SELECT `+choirColumns+` FROM choirs WHERE code = ?`, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("choir", "code")
		}
		return nil, fmt.Errorf("sqlite: looking up login code: %w", err)
	}

	next := current.WithToken(token, time.Now().UTC())
	if _, err := tx.ExecContext(ctx,
		`UPDATE choirs SET token = ?, updated_at = ? WHERE id = ?`,
		nullString(next.Token), next.UpdatedAt, next.ID,
	); err != nil {
		return nil, fmt.Errorf("sqlite: storing token for choir %s: %w", next.UUID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: committing login: %w", err)
	}
	return &next, nil
}

// ClearToken is the persistence half of logout.
func (r *ChoirDB) ClearToken(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("sqlite: beginning logout: %w", err)
	}
	defer tx.Rollback()

	current, err := scanChoir(tx.QueryRowContext(ctx,
		`SELECT `+choirColumns+` FROM choirs WHERE token = ?`, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("sqlite: looking up token: %w", err)
	}

	next := current.WithoutToken(time.Now().UTC())
	if _, err := tx.ExecContext(ctx,
		`UPDATE choirs SET token = ?, updated_at = ? WHERE id = ?`,
		nullString(next.Token), next.UpdatedAt, next.ID,
	); err != nil {
		return false, fmt.Errorf("sqlite: clearing token for choir %s: %w", next.UUID, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("sqlite: committing logout: %w", err)
	}
	return true, nil
}

// requireOneRow turns "0 rows affected" into NotFound.
func requireOneRow(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
