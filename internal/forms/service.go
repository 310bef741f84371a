package forms

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Service enforces ownership, form validation, and submission intake rules
// on top of a Store.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a Service. A nil logger falls back to slog.Default.
func NewService(store Store, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger, now: time.Now}, nil
}

// FieldInput describes one field of a form being created or updated.
type FieldInput struct {
	ID       uuid.UUID `json:"id,omitempty"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Options  []string  `json:"options,omitempty"`
}

// FormInput describes a form being created or updated.
type FormInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	EventDate   *time.Time `json:"event_date"`
	Location    string     `json:"location"`

	AcceptResponsesUntil *time.Time `json:"accept_responses_until"`
	MaxResponses         *int       `json:"max_responses"`

	Fields []FieldInput `json:"fields"`
}

func (in *FormInput) validate() error {
	if in.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidForm)
	}
	if len(in.Fields) == 0 {
		return fmt.Errorf("%w: at least one field is required", ErrInvalidForm)
	}
	if in.MaxResponses != nil && *in.MaxResponses <= 0 {
		return fmt.Errorf("%w: max responses must be positive", ErrInvalidForm)
	}
	for i, f := range in.Fields {
		if f.Label == "" {
			return fmt.Errorf("%w: field %d has no label", ErrInvalidForm, i)
		}
		if !f.Type.Valid() {
			return fmt.Errorf("%w: field %q has unknown type %q", ErrInvalidForm, f.Label, f.Type)
		}
		if f.Type.needsOptions() && len(f.Options) == 0 {
			return fmt.Errorf("%w: field %q needs options", ErrInvalidForm, f.Label)
		}
	}
	return nil
}

// Create validates and stores a new form for owner.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, in FormInput) (*Form, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	form := &Form{
		ID:                   uuid.New(),
		OwnerID:              ownerID,
		Title:                in.Title,
		Description:          in.Description,
		EventDate:            in.EventDate,
		Location:             in.Location,
		AcceptResponsesUntil: in.AcceptResponsesUntil,
		MaxResponses:         in.MaxResponses,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	form.Fields = buildFields(form.ID, in.Fields)

	if err := s.store.CreateForm(ctx, form); err != nil {
		return nil, fmt.Errorf("create form: %w", err)
	}
	s.logger.Info("form created", "form", form.ID, "owner", ownerID)
	return form, nil
}

// Update validates and rewrites an owned form, replacing its field set.
func (s *Service) Update(ctx context.Context, ownerID, formID uuid.UUID, in FormInput) (*Form, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	form, err := s.ownedForm(ctx, ownerID, formID)
	if err != nil {
		return nil, err
	}

	form.Title = in.Title
	form.Description = in.Description
	form.EventDate = in.EventDate
	form.Location = in.Location
	form.AcceptResponsesUntil = in.AcceptResponsesUntil
	form.MaxResponses = in.MaxResponses
	form.UpdatedAt = s.now().UTC()
	form.Fields = buildFields(form.ID, in.Fields)

	if err := s.store.UpdateForm(ctx, form); err != nil {
		return nil, fmt.Errorf("update form: %w", err)
	}
	return form, nil
}

// Delete removes an owned form with everything attached to it.
func (s *Service) Delete(ctx context.Context, ownerID, formID uuid.UUID) error {
	if _, err := s.ownedForm(ctx, ownerID, formID); err != nil {
		return err
	}
	if err := s.store.DeleteForm(ctx, formID); err != nil {
		return fmt.Errorf("delete form: %w", err)
	}
	s.logger.Info("form deleted", "form", formID, "owner", ownerID)
	return nil
}

// Get loads an owned form with its response count.
func (s *Service) Get(ctx context.Context, ownerID, formID uuid.UUID) (*Form, error) {
	form, err := s.ownedForm(ctx, ownerID, formID)
	if err != nil {
		return nil, err
	}
	count, err := s.store.CountSubmissions(ctx, formID)
	if err != nil {
		return nil, fmt.Errorf("count submissions: %w", err)
	}
	form.ResponseCount = count
	return form, nil
}

// List returns the owner's forms, newest first.
func (s *Service) List(ctx context.Context, ownerID uuid.UUID) ([]*Form, error) {
	return s.store.FormsByOwner(ctx, ownerID)
}

// SetPublished toggles publication of an owned form.
func (s *Service) SetPublished(ctx context.Context, ownerID, formID uuid.UUID, published bool) error {
	if _, err := s.ownedForm(ctx, ownerID, formID); err != nil {
		return err
	}
	if err := s.store.SetPublished(ctx, formID, published); err != nil {
		return fmt.Errorf("set published: %w", err)
	}
	return nil
}

// PublicForm loads a form for public rendering. Unpublished forms read as
// ErrFormUnpublished regardless of whether they exist, so the endpoint does
// not reveal drafts.
func (s *Service) PublicForm(ctx context.Context, formID uuid.UUID) (*Form, error) {
	form, err := s.store.FormByID(ctx, formID)
	if err != nil {
		return nil, err
	}
	if !form.Published {
		return nil, ErrFormUnpublished
	}
	return form, nil
}

// AnswerInput is one submitted field value.
type AnswerInput struct {
	FieldID uuid.UUID `json:"field_id"`
	Value   string    `json:"value"`
}

// SubmissionMeta records where a submission came from.
type SubmissionMeta struct {
	IP        string
	UserAgent string
}

// Submit validates and records a public submission. The form must be
// published, inside its response window, and under its response cap.
func (s *Service) Submit(ctx context.Context, formID uuid.UUID, answers []AnswerInput, meta SubmissionMeta) (*Submission, error) {
	form, err := s.PublicForm(ctx, formID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if form.AcceptResponsesUntil != nil && now.After(*form.AcceptResponsesUntil) {
		return nil, ErrFormClosed
	}
	if form.MaxResponses != nil {
		count, err := s.store.CountSubmissions(ctx, formID)
		if err != nil {
			return nil, fmt.Errorf("count submissions: %w", err)
		}
		if count >= *form.MaxResponses {
			return nil, ErrFormClosed
		}
	}

	if err := validateAnswers(form, answers); err != nil {
		return nil, err
	}

	sub := &Submission{
		ID:          uuid.New(),
		FormID:      formID,
		SubmittedAt: now,
		SubmitterIP: meta.IP,
		UserAgent:   meta.UserAgent,
	}
	for _, a := range answers {
		sub.Answers = append(sub.Answers, Answer{
			ID:           uuid.New(),
			SubmissionID: sub.ID,
			FieldID:      a.FieldID,
			Value:        a.Value,
		})
	}

	if err := s.store.CreateSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("create submission: %w", err)
	}
	s.logger.Info("submission recorded", "form", formID, "submission", sub.ID)
	return sub, nil
}

// Responses lists an owned form's submissions, oldest first.
func (s *Service) Responses(ctx context.Context, ownerID, formID uuid.UUID) ([]*Submission, error) {
	if _, err := s.ownedForm(ctx, ownerID, formID); err != nil {
		return nil, err
	}
	return s.store.SubmissionsByForm(ctx, formID)
}

// ExportCSV writes an owned form's responses as CSV: one header row with
// field labels, one row per submission with the submission time first.
func (s *Service) ExportCSV(ctx context.Context, ownerID, formID uuid.UUID, w io.Writer) error {
	form, err := s.ownedForm(ctx, ownerID, formID)
	if err != nil {
		return err
	}
	subs, err := s.store.SubmissionsByForm(ctx, formID)
	if err != nil {
		return fmt.Errorf("load submissions: %w", err)
	}
	return writeCSV(w, form, subs)
}

// Dashboard aggregates counts across the owner's forms.
func (s *Service) Dashboard(ctx context.Context, ownerID uuid.UUID) (*Stats, error) {
	return s.store.StatsByOwner(ctx, ownerID)
}

// ownedForm loads formID and checks ownership. Forms owned by someone else
// read as not found.
func (s *Service) ownedForm(ctx context.Context, ownerID, formID uuid.UUID) (*Form, error) {
	form, err := s.store.FormByID(ctx, formID)
	if err != nil {
		return nil, err
	}
	if form.OwnerID != ownerID {
		return nil, ErrFormNotFound
	}
	return form, nil
}

func buildFields(formID uuid.UUID, inputs []FieldInput) []Field {
	fields := make([]Field, len(inputs))
	for i, in := range inputs {
		id := in.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		fields[i] = Field{
			ID:       id,
			FormID:   formID,
			Label:    in.Label,
			Type:     in.Type,
			Required: in.Required,
			Options:  in.Options,
			Position: i,
		}
	}
	return fields
}

func validateAnswers(form *Form, answers []AnswerInput) error {
	byField := make(map[uuid.UUID]string, len(answers))
	for _, a := range answers {
		byField[a.FieldID] = a.Value
	}

	known := make(map[uuid.UUID]bool, len(form.Fields))
	for _, f := range form.Fields {
		known[f.ID] = true

		value, ok := byField[f.ID]
		if f.Required && (!ok || value == "") {
			return fmt.Errorf("%w: %q is required", ErrInvalidSubmission, f.Label)
		}
		if !ok || value == "" {
			continue
		}

		switch f.Type {
		case FieldEmail:
			if _, err := mail.ParseAddress(value); err != nil {
				return fmt.Errorf("%w: %q is not a valid email", ErrInvalidSubmission, f.Label)
			}
		case FieldSelect:
			if !slices.Contains(f.Options, value) {
				return fmt.Errorf("%w: %q is not an option for %q", ErrInvalidSubmission, value, f.Label)
			}
		}
	}

	for id := range byField {
		if !known[id] {
			return fmt.Errorf("%w: unknown field %s", ErrInvalidSubmission, id)
		}
	}
	return nil
}
