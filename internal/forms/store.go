package forms

import (
	"context"

	"github.com/google/uuid"
)

// Store is the persistence contract for forms and submissions.
type Store interface {
	// CreateForm inserts the form and its fields atomically.
	CreateForm(ctx context.Context, form *Form) error

	// UpdateForm rewrites the form row and replaces its field set
	// atomically. Fields keep their IDs when present, otherwise get new
	// ones assigned by the caller.
	UpdateForm(ctx context.Context, form *Form) error

	// DeleteForm removes the form and, via cascade, its fields,
	// submissions, and answers. Returns ErrFormNotFound when absent.
	DeleteForm(ctx context.Context, formID uuid.UUID) error

	// FormByID loads a form with its fields ordered by position.
	FormByID(ctx context.Context, formID uuid.UUID) (*Form, error)

	// FormsByOwner lists an owner's forms, newest first, with
	// ResponseCount populated.
	FormsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Form, error)

	// SetPublished toggles a form's publication state.
	SetPublished(ctx context.Context, formID uuid.UUID, published bool) error

	// CreateSubmission inserts the submission and its answers atomically.
	CreateSubmission(ctx context.Context, sub *Submission) error

	// SubmissionsByForm lists submissions oldest first, answers included.
	SubmissionsByForm(ctx context.Context, formID uuid.UUID) ([]*Submission, error)

	// CountSubmissions returns the number of submissions for a form.
	CountSubmissions(ctx context.Context, formID uuid.UUID) (int, error)

	// StatsByOwner aggregates dashboard counts across an owner's forms.
	StatsByOwner(ctx context.Context, ownerID uuid.UUID) (*Stats, error)
}
