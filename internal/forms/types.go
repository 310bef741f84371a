// Package forms implements event registration forms: form and field
// management for owners, public submission intake, and response export.
package forms

import (
	"time"

	"github.com/google/uuid"
)

// FieldType enumerates the input kinds a form field can take.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldEmail    FieldType = "email"
	FieldPhone    FieldType = "phone"
	FieldNumber   FieldType = "number"
	FieldDate     FieldType = "date"
	FieldSelect   FieldType = "select"
	FieldCheckbox FieldType = "checkbox"
)

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldTextarea, FieldEmail, FieldPhone, FieldNumber,
		FieldDate, FieldSelect, FieldCheckbox:
		return true
	}
	return false
}

// needsOptions reports whether the type requires a choice list.
func (t FieldType) needsOptions() bool {
	return t == FieldSelect || t == FieldCheckbox
}

// Field is one input on a form. Options is only meaningful for select and
// checkbox fields. Position orders fields on the rendered form.
type Field struct {
	ID       uuid.UUID `json:"id"`
	FormID   uuid.UUID `json:"-"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Options  []string  `json:"options,omitempty"`
	Position int       `json:"position"`
}

// Form is an event registration form. A form accepts public submissions only
// while Published and, when set, before AcceptResponsesUntil and below
// MaxResponses.
type Form struct {
	ID          uuid.UUID  `json:"id"`
	OwnerID     uuid.UUID  `json:"-"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	EventDate   *time.Time `json:"event_date,omitempty"`
	Location    string     `json:"location,omitempty"`
	Published   bool       `json:"published"`

	AcceptResponsesUntil *time.Time `json:"accept_responses_until,omitempty"`
	MaxResponses         *int       `json:"max_responses,omitempty"`

	Fields []Field `json:"fields"`

	// ResponseCount is populated on owner-facing reads.
	ResponseCount int `json:"response_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Answer is one field's value within a submission. Checkbox answers carry
// the selected options joined by ", ".
type Answer struct {
	ID           uuid.UUID `json:"-"`
	SubmissionID uuid.UUID `json:"-"`
	FieldID      uuid.UUID `json:"field_id"`
	Value        string    `json:"value"`
}

// Submission is one completed response to a form. SubmitterIP and UserAgent
// record where the response came from; they appear in owner-facing listings
// but are never rendered publicly.
type Submission struct {
	ID          uuid.UUID `json:"id"`
	FormID      uuid.UUID `json:"-"`
	SubmittedAt time.Time `json:"submitted_at"`
	SubmitterIP string    `json:"submitter_ip,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	Answers     []Answer  `json:"answers"`
}

// Stats summarizes an owner's dashboard.
type Stats struct {
	Forms       int `json:"forms"`
	Published   int `json:"published"`
	Submissions int `json:"submissions"`
}
