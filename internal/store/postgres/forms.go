package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sa1dev/regeester/internal/forms"
)

// FormStore implements forms.Store on PostgreSQL.
type FormStore struct {
	db   DBTX
	conn *sql.DB
}

// NewFormStore creates a FormStore over an open connection pool.
func NewFormStore(conn *sql.DB) *FormStore {
	return &FormStore{db: conn, conn: conn}
}

const formColumns = `id, owner_id, title, description, event_date, location, published, accept_responses_until, max_responses, created_at, updated_at`

func (s *FormStore) CreateForm(ctx context.Context, form *forms.Form) error {
	return withTx(ctx, s.conn, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO forms (`+formColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			form.ID, form.OwnerID, form.Title, form.Description, form.EventDate,
			form.Location, form.Published, form.AcceptResponsesUntil, form.MaxResponses,
			form.CreatedAt, form.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert form: %w", err)
		}
		return insertFields(ctx, tx, form)
	})
}

func (s *FormStore) UpdateForm(ctx context.Context, form *forms.Form) error {
	return withTx(ctx, s.conn, func(ctx context.Context, tx DBTX) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE forms
			 SET title = $2, description = $3, event_date = $4, location = $5,
			     accept_responses_until = $6, max_responses = $7, updated_at = $8
			 WHERE id = $1`,
			form.ID, form.Title, form.Description, form.EventDate, form.Location,
			form.AcceptResponsesUntil, form.MaxResponses, form.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update form: %w", err)
		}
		if err := requireRow(res, forms.ErrFormNotFound); err != nil {
			return err
		}

		// Field replacement: answers cascade away with the old fields.
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM form_fields WHERE form_id = $1`, form.ID); err != nil {
			return fmt.Errorf("delete fields: %w", err)
		}
		return insertFields(ctx, tx, form)
	})
}

func (s *FormStore) DeleteForm(ctx context.Context, formID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM forms WHERE id = $1`, formID)
	if err != nil {
		return fmt.Errorf("delete form: %w", err)
	}
	return requireRow(res, forms.ErrFormNotFound)
}

func (s *FormStore) FormByID(ctx context.Context, formID uuid.UUID) (*forms.Form, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+formColumns+` FROM forms WHERE id = $1`, formID)
	form, err := scanForm(row)
	if err != nil {
		return nil, err
	}
	fields, err := s.fieldsByForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	form.Fields = fields
	return form, nil
}

func (s *FormStore) FormsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*forms.Form, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT f.id, f.owner_id, f.title, f.description, f.event_date, f.location,
		        f.published, f.accept_responses_until, f.max_responses, f.created_at, f.updated_at,
		        count(s.id)
		 FROM forms f
		 LEFT JOIN submissions s ON s.form_id = f.id
		 WHERE f.owner_id = $1
		 GROUP BY f.id
		 ORDER BY f.created_at DESC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("query forms: %w", err)
	}
	defer rows.Close()

	var out []*forms.Form
	for rows.Next() {
		form, err := scanFormWithCount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, form)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query forms: %w", err)
	}

	for _, form := range out {
		fields, err := s.fieldsByForm(ctx, form.ID)
		if err != nil {
			return nil, err
		}
		form.Fields = fields
	}
	return out, nil
}

func (s *FormStore) SetPublished(ctx context.Context, formID uuid.UUID, published bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE forms SET published = $2, updated_at = now() WHERE id = $1`,
		formID, published)
	if err != nil {
		return fmt.Errorf("set published: %w", err)
	}
	return requireRow(res, forms.ErrFormNotFound)
}

func (s *FormStore) StatsByOwner(ctx context.Context, ownerID uuid.UUID) (*forms.Stats, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT count(DISTINCT f.id),
		        count(DISTINCT f.id) FILTER (WHERE f.published),
		        count(s.id)
		 FROM forms f
		 LEFT JOIN submissions s ON s.form_id = f.id
		 WHERE f.owner_id = $1`,
		ownerID)

	stats := &forms.Stats{}
	if err := row.Scan(&stats.Forms, &stats.Published, &stats.Submissions); err != nil {
		return nil, fmt.Errorf("scan stats: %w", err)
	}
	return stats, nil
}

func (s *FormStore) fieldsByForm(ctx context.Context, formID uuid.UUID) ([]forms.Field, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, form_id, label, type, required, options, position
		 FROM form_fields WHERE form_id = $1 ORDER BY position`,
		formID)
	if err != nil {
		return nil, fmt.Errorf("query fields: %w", err)
	}
	defer rows.Close()

	var fields []forms.Field
	for rows.Next() {
		var (
			f       forms.Field
			options []byte
		)
		if err := rows.Scan(&f.ID, &f.FormID, &f.Label, &f.Type, &f.Required, &options, &f.Position); err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		if len(options) > 0 {
			if err := json.Unmarshal(options, &f.Options); err != nil {
				return nil, fmt.Errorf("decode options: %w", err)
			}
		}
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query fields: %w", err)
	}
	return fields, nil
}

func insertFields(ctx context.Context, tx DBTX, form *forms.Form) error {
	for _, f := range form.Fields {
		options, err := json.Marshal(f.Options)
		if err != nil {
			return fmt.Errorf("encode options: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO form_fields (id, form_id, label, type, required, options, position)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			f.ID, form.ID, f.Label, string(f.Type), f.Required, options, f.Position); err != nil {
			return fmt.Errorf("insert field: %w", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFormInto(sc rowScanner, form *forms.Form, extra ...any) error {
	dest := []any{
		&form.ID, &form.OwnerID, &form.Title, &form.Description, &form.EventDate,
		&form.Location, &form.Published, &form.AcceptResponsesUntil, &form.MaxResponses,
		&form.CreatedAt, &form.UpdatedAt,
	}
	dest = append(dest, extra...)
	return sc.Scan(dest...)
}

func scanForm(row *sql.Row) (*forms.Form, error) {
	form := &forms.Form{}
	err := scanFormInto(row, form)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, forms.ErrFormNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan form: %w", err)
	}
	return form, nil
}

func scanFormWithCount(rows *sql.Rows) (*forms.Form, error) {
	form := &forms.Form{}
	if err := scanFormInto(rows, form, &form.ResponseCount); err != nil {
		return nil, fmt.Errorf("scan form: %w", err)
	}
	return form, nil
}
