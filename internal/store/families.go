package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/tartampluch/onefam/internal/engine"
)

// CreateFamily inserts a new family with a fresh identifier.
func (s *Store) CreateFamily(ctx context.Context, name string) (engine.Family, error) {
	ctx, cancel := bounded(ctx)
	defer cancel()

	f := engine.Family{ID: uuid.NewString(), Name: name, CreatedAt: s.now()}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO families (id, name, created_at) VALUES (?, ?, ?)`,
		f.ID, f.Name, formatTime(f.CreatedAt))
	if err != nil {
		return engine.Family{}, queryErr(err)
	}
	return f, nil
}

// ListFamilies returns every family in creation order.
func (s *Store) ListFamilies(ctx context.Context) ([]engine.Family, error) {
	ctx, cancel := bounded(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM families ORDER BY rowid`)
	if err != nil {
		return nil, queryErr(err)
	}
	defer func() { _ = rows.Close() }()

	families := make([]engine.Family, 0)
	for rows.Next() {
		var f engine.Family
		var created string
		if err := rows.Scan(&f.ID, &f.Name, &created); err != nil {
			return nil, queryErr(err)
		}
		f.CreatedAt = parseTime(created)
		families = append(families, f)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr(err)
	}
	return families, nil
}

// GetFamily returns one family or ErrNotFound.
func (s *Store) GetFamily(ctx context.Context, id string) (engine.Family, error) {
	ctx, cancel := bounded(ctx)
	defer cancel()

	var f engine.Family
	var created string
	err := s.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM families WHERE id = ?`, id).
		Scan(&f.ID, &f.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Family{}, ErrNotFound
	}
	if err != nil {
		return engine.Family{}, queryErr(err)
	}
	f.CreatedAt = parseTime(created)
	return f, nil
}

// DeleteFamily removes a family together with its members and events.
func (s *Store) DeleteFamily(ctx context.Context, id string) error {
	ctx, cancel := bounded(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return queryErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		`DELETE FROM people WHERE family_id = ?`,
		`DELETE FROM events WHERE family_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return queryErr(err)
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM families WHERE id = ?`, id)
	if err != nil {
		return queryErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return queryErr(err)
	}
	return nil
}
