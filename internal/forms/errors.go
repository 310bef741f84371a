package forms

import "errors"

var (
	// ErrFormNotFound is returned when no form matches, or when the caller
	// does not own the form it asked for.
	ErrFormNotFound = errors.New("form not found")

	// ErrFormUnpublished is returned for public reads of an unpublished form.
	ErrFormUnpublished = errors.New("form is not published")

	// ErrFormClosed is returned when a submission arrives after the response
	// window closed or the response cap was reached.
	ErrFormClosed = errors.New("form is no longer accepting responses")

	// ErrInvalidSubmission is returned when a submission is missing required
	// answers or answers fields the form does not have.
	ErrInvalidSubmission = errors.New("invalid submission")

	// ErrInvalidForm is returned when a form definition fails validation.
	ErrInvalidForm = errors.New("invalid form definition")
)
