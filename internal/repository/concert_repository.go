package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/concert-ticketing/internal/model"
)

// ConcertRepo reads concerts. Concert management lives in the admin tooling.
type ConcertRepo struct {
	db *sql.DB
}

// NewConcertRepo returns a new ConcertRepo bound to the given database.
func NewConcertRepo(db *sql.DB) *ConcertRepo { return &ConcertRepo{db: db} }

const concertColumns = `id, title, description, date, image_url, created_at`

// GetByID returns the concert or ErrConcertNotFound.
func (r *ConcertRepo) GetByID(ctx context.Context, id uint64) (model.Concert, error) {
	const q = `SELECT ` + concertColumns + ` FROM concerts WHERE id = ?`
	c, err := scanConcert(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Concert{}, ErrConcertNotFound
	}
	if err != nil {
		return model.Concert{}, err
	}
	return c, nil
}

// List returns every concert ordered by date. It returns an empty slice
// when there are none.
func (r *ConcertRepo) List(ctx context.Context) ([]model.Concert, error) {
	const q = `SELECT ` + concertColumns + ` FROM concerts ORDER BY date, id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Concert{}
	for rows.Next() {
		c, err := scanConcert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConcert(row rowScanner) (model.Concert, error) {
	var c model.Concert
	var desc, img sql.NullString
	if err := row.Scan(&c.ID, &c.Title, &desc, &c.Date, &img, &c.CreatedAt); err != nil {
		return model.Concert{}, err
	}
	if desc.Valid {
		d := desc.String
		c.Description = &d
	}
	if img.Valid {
		u := img.String
		c.ImageURL = &u
	}
	return c, nil
}
