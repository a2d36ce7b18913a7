package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/tartampluch/onefam/internal/engine"
)

// CreateEvent stores ev under familyID, or returns ErrNotFound if the
// family does not exist.
func (s *Store) CreateEvent(ctx context.Context, familyID string, ev engine.CustomEvent) (engine.CustomEvent, error) {
	ctx, cancel := bounded(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return engine.CustomEvent{}, queryErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := familyExists(ctx, tx, familyID); err != nil {
		return engine.CustomEvent{}, err
	}

	ev.ID = uuid.NewString()
	ev.FamilyID = familyID
	ev.CreatedAt = s.now()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (id, family_id, member_id, event_name, event_date, recurring, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.FamilyID, nullString(ev.MemberID), ev.EventName, ev.EventDate, ev.Recurring, formatTime(ev.CreatedAt))
	if err != nil {
		return engine.CustomEvent{}, queryErr(err)
	}
	if err := tx.Commit(); err != nil {
		return engine.CustomEvent{}, queryErr(err)
	}
	return ev, nil
}

// ListEvents returns a family's custom events in insertion order.
func (s *Store) ListEvents(ctx context.Context, familyID string) ([]engine.CustomEvent, error) {
	ctx, cancel := bounded(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, family_id, member_id, event_name, event_date, recurring, created_at FROM events WHERE family_id = ? ORDER BY rowid`,
		familyID)
	if err != nil {
		return nil, queryErr(err)
	}
	defer func() { _ = rows.Close() }()

	events := make([]engine.CustomEvent, 0)
	for rows.Next() {
		var ev engine.CustomEvent
		var member sql.NullString
		var created string
		if err := rows.Scan(&ev.ID, &ev.FamilyID, &member, &ev.EventName, &ev.EventDate, &ev.Recurring, &created); err != nil {
			return nil, queryErr(err)
		}
		ev.MemberID = nullable(member)
		ev.CreatedAt = parseTime(created)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr(err)
	}
	return events, nil
}

// DeleteEvent removes one custom event of the family or returns ErrNotFound.
func (s *Store) DeleteEvent(ctx context.Context, familyID, id string) error {
	ctx, cancel := bounded(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ? AND family_id = ?`, id, familyID)
	if err != nil {
		return queryErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
