package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/tartampluch/onefam/internal/engine"
)

const personColumns = `id, family_id, first_name, last_name, address, photo_base64, birthday, anniversary, comments, parent_id, created_at`

// PersonPatch carries a partial member update. Nil fields are left as they are.
type PersonPatch struct {
	FirstName   *string
	LastName    *string
	Address     *string
	PhotoBase64 *string
	Birthday    *string
	Anniversary *string
	Comments    *string
	ParentID    *string
}

// columns lists the non-nil fields as column/value pairs, in a fixed order.
func (p PersonPatch) columns() ([]string, []any) {
	var cols []string
	var vals []any
	add := func(col string, v *string) {
		if v != nil {
			cols = append(cols, col+" = ?")
			vals = append(vals, *v)
		}
	}
	add("first_name", p.FirstName)
	add("last_name", p.LastName)
	add("address", p.Address)
	add("photo_base64", p.PhotoBase64)
	add("birthday", p.Birthday)
	add("anniversary", p.Anniversary)
	add("comments", p.Comments)
	add("parent_id", p.ParentID)
	return cols, vals
}

// CreatePerson stores p under familyID. ID and CreatedAt are assigned here.
// It returns ErrNotFound if the family does not exist.
func (s *Store) CreatePerson(ctx context.Context, familyID string, p engine.Person) (engine.Person, error) {
	created, err := s.CreatePeople(ctx, familyID, []engine.Person{p})
	if err != nil {
		return engine.Person{}, err
	}
	return created[0], nil
}

// CreatePeople stores a batch of members in a single transaction.
func (s *Store) CreatePeople(ctx context.Context, familyID string, people []engine.Person) ([]engine.Person, error) {
	ctx, cancel := bounded(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, queryErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := familyExists(ctx, tx, familyID); err != nil {
		return nil, err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO people (`+personColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, queryErr(err)
	}
	defer func() { _ = stmt.Close() }()

	now := s.now()
	out := make([]engine.Person, 0, len(people))
	for _, p := range people {
		p.ID = uuid.NewString()
		p.FamilyID = familyID
		p.CreatedAt = now

		_, err := stmt.ExecContext(ctx,
			p.ID, p.FamilyID, p.FirstName, p.LastName,
			nullString(p.Address), nullString(p.PhotoBase64),
			nullString(p.Birthday), nullString(p.Anniversary),
			nullString(p.Comments), nullString(p.ParentID),
			formatTime(p.CreatedAt))
		if err != nil {
			return nil, queryErr(err)
		}
		out = append(out, p)
	}

	if err := tx.Commit(); err != nil {
		return nil, queryErr(err)
	}
	return out, nil
}

// ListPeople returns a family's members in insertion order. An unknown
// family yields an empty list.
func (s *Store) ListPeople(ctx context.Context, familyID string) ([]engine.Person, error) {
	ctx, cancel := bounded(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+personColumns+` FROM people WHERE family_id = ? ORDER BY rowid`, familyID)
	if err != nil {
		return nil, queryErr(err)
	}
	defer func() { _ = rows.Close() }()

	people := make([]engine.Person, 0)
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, queryErr(err)
		}
		people = append(people, p)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr(err)
	}
	return people, nil
}

// GetPerson returns one member of the family or ErrNotFound.
func (s *Store) GetPerson(ctx context.Context, familyID, id string) (engine.Person, error) {
	ctx, cancel := bounded(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+personColumns+` FROM people WHERE id = ? AND family_id = ?`, id, familyID)
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Person{}, ErrNotFound
	}
	if err != nil {
		return engine.Person{}, queryErr(err)
	}
	return p, nil
}

// UpdatePerson applies the non-nil fields of patch and returns the result.
func (s *Store) UpdatePerson(ctx context.Context, familyID, id string, patch PersonPatch) (engine.Person, error) {
	if _, err := s.GetPerson(ctx, familyID, id); err != nil {
		return engine.Person{}, err
	}

	if cols, vals := patch.columns(); len(cols) > 0 {
		ctx, cancel := bounded(ctx)
		defer cancel()

		vals = append(vals, id, familyID)
		_, err := s.db.ExecContext(ctx,
			`UPDATE people SET `+strings.Join(cols, ", ")+` WHERE id = ? AND family_id = ?`, vals...)
		if err != nil {
			return engine.Person{}, queryErr(err)
		}
	}
	return s.GetPerson(ctx, familyID, id)
}

// DeletePerson removes one member of the family or returns ErrNotFound.
func (s *Store) DeletePerson(ctx context.Context, familyID, id string) error {
	ctx, cancel := bounded(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM people WHERE id = ? AND family_id = ?`, id, familyID)
	if err != nil {
		return queryErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPerson(row rowScanner) (engine.Person, error) {
	var p engine.Person
	var address, photo, birthday, anniversary, comments, parent sql.NullString
	var created string

	err := row.Scan(&p.ID, &p.FamilyID, &p.FirstName, &p.LastName,
		&address, &photo, &birthday, &anniversary, &comments, &parent, &created)
	if err != nil {
		return engine.Person{}, err
	}

	p.Address = nullable(address)
	p.PhotoBase64 = nullable(photo)
	p.Birthday = nullable(birthday)
	p.Anniversary = nullable(anniversary)
	p.Comments = nullable(comments)
	p.ParentID = nullable(parent)
	p.CreatedAt = parseTime(created)
	return p, nil
}
