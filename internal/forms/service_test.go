package forms

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	svc, err := NewService(store, nil)
	require.NoError(t, err)
	return svc, store
}

func sampleInput() FormInput {
	return FormInput{
		Title:       "Company Offsite",
		Description: "Annual offsite registration",
		Location:    "Lisbon",
		Fields: []FieldInput{
			{Label: "Full name", Type: FieldText, Required: true},
			{Label: "Email", Type: FieldEmail, Required: true},
			{Label: "Shirt size", Type: FieldSelect, Options: []string{"S", "M", "L"}},
		},
	}
}

// answersFor fills the sample form's fields in order.
func answersFor(form *Form, values ...string) []AnswerInput {
	answers := make([]AnswerInput, 0, len(values))
	for i, v := range values {
		answers = append(answers, AnswerInput{FieldID: form.Fields[i].ID, Value: v})
	}
	return answers
}

func TestCreateForm(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	owner := uuid.New()

	form, err := svc.Create(ctx, owner, sampleInput())
	require.NoError(t, err)
	assert.Equal(t, owner, form.OwnerID)
	assert.False(t, form.Published)
	require.Len(t, form.Fields, 3)
	for i, f := range form.Fields {
		assert.Equal(t, i, f.Position)
		assert.NotEqual(t, uuid.Nil, f.ID)
	}
}

func TestCreateForm_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	owner := uuid.New()

	tests := []struct {
		name   string
		mutate func(*FormInput)
	}{
		{"no title", func(in *FormInput) { in.Title = "" }},
		{"no fields", func(in *FormInput) { in.Fields = nil }},
		{"unlabeled field", func(in *FormInput) { in.Fields[0].Label = "" }},
		{"unknown type", func(in *FormInput) { in.Fields[0].Type = "dropdown" }},
		{"select without options", func(in *FormInput) { in.Fields[2].Options = nil }},
		{"zero cap", func(in *FormInput) { n := 0; in.MaxResponses = &n }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := sampleInput()
			tt.mutate(&in)
			_, err := svc.Create(ctx, owner, in)
			assert.ErrorIs(t, err, ErrInvalidForm)
		})
	}
}

func TestUpdateForm_ReplacesFields(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	owner := uuid.New()

	form, err := svc.Create(ctx, owner, sampleInput())
	require.NoError(t, err)

	in := sampleInput()
	in.Title = "Company Offsite 2026"
	in.Fields = []FieldInput{
		{ID: form.Fields[0].ID, Label: "Name", Type: FieldText, Required: true},
		{Label: "Dietary needs", Type: FieldTextarea},
	}

	updated, err := svc.Update(ctx, owner, form.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Company Offsite 2026", updated.Title)
	require.Len(t, updated.Fields, 2)
	assert.Equal(t, form.Fields[0].ID, updated.Fields[0].ID)
	assert.NotEqual(t, uuid.Nil, updated.Fields[1].ID)
}

func TestOwnership(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	owner, stranger := uuid.New(), uuid.New()

	form, err := svc.Create(ctx, owner, sampleInput())
	require.NoError(t, err)

	_, err = svc.Get(ctx, stranger, form.ID)
	assert.ErrorIs(t, err, ErrFormNotFound)
	_, err = svc.Update(ctx, stranger, form.ID, sampleInput())
	assert.ErrorIs(t, err, ErrFormNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, stranger, form.ID), ErrFormNotFound)
	assert.ErrorIs(t, svc.SetPublished(ctx, stranger, form.ID, true), ErrFormNotFound)
	_, err = svc.Responses(ctx, stranger, form.ID)
	assert.ErrorIs(t, err, ErrFormNotFound)

	// The owner still can.
	_, err = svc.Get(ctx, owner, form.ID)
	assert.NoError(t, err)
}

func TestPublicForm(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	owner := uuid.New()

	form, err := svc.Create(ctx, owner, sampleInput())
	require.NoError(t, err)

	// Drafts are not publicly visible.
	_, err = svc.PublicForm(ctx, form.ID)
	assert.ErrorIs(t, err, ErrFormUnpublished)

	require.NoError(t, svc.SetPublished(ctx, owner, form.ID, true))
	public, err := svc.PublicForm(ctx, form.ID)
	require.NoError(t, err)
	assert.Equal(t, form.ID, public.ID)

	_, err = svc.PublicForm(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrFormNotFound)
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	owner := uuid.New()

	form, err := svc.Create(ctx, owner, sampleInput())
	require.NoError(t, err)
	require.NoError(t, svc.SetPublished(ctx, owner, form.ID, true))

	meta := SubmissionMeta{IP: "203.0.113.7", UserAgent: "integration-test"}
	sub, err := svc.Submit(ctx, form.ID, answersFor(form, "Alice", "alice@example.com", "M"), meta)
	require.NoError(t, err)
	require.Len(t, sub.Answers, 3)

	subs, err := svc.Responses(ctx, owner, form.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, sub.ID, subs[0].ID)
	assert.Equal(t, "203.0.113.7", subs[0].SubmitterIP)
	assert.Equal(t, "integration-test", subs[0].UserAgent)
}

func TestSubmit_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	owner := uuid.New()

	form, err := svc.Create(ctx, owner, sampleInput())
	require.NoError(t, err)
	require.NoError(t, svc.SetPublished(ctx, owner, form.ID, true))

	tests := []struct {
		name    string
		answers []AnswerInput
	}{
		{"missing required", answersFor(form, "Alice")},
		{"empty required", answersFor(form, "Alice", "")},
		{"bad email", answersFor(form, "Alice", "not-an-email")},
		{"bad select option", answersFor(form, "Alice", "alice@example.com", "XXL")},
		{"unknown field", []AnswerInput{
			{FieldID: form.Fields[0].ID, Value: "Alice"},
			{FieldID: form.Fields[1].ID, Value: "alice@example.com"},
			{FieldID: uuid.New(), Value: "stray"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(ctx, form.ID, tt.answers, SubmissionMeta{})
			assert.ErrorIs(t, err, ErrInvalidSubmission)
		})
	}

	// Optional select may be left empty.
	_, err = svc.Submit(ctx, form.ID, answersFor(form, "Alice", "alice@example.com"), SubmissionMeta{})
	assert.NoError(t, err)
}

func TestSubmit_Unpublished(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	owner := uuid.New()

	form, err := svc.Create(ctx, owner, sampleInput())
	require.NoError(t, err)

	_, err = svc.Submit(ctx, form.ID, answersFor(form, "Alice", "alice@example.com"), SubmissionMeta{})
	assert.ErrorIs(t, err, ErrFormUnpublished)
}

func TestSubmit_WindowClosed(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	owner := uuid.New()

	deadline := time.Now().Add(time.Hour)
	in := sampleInput()
	in.AcceptResponsesUntil = &deadline

	form, err := svc.Create(ctx, owner, in)
	require.NoError(t, err)
	require.NoError(t, svc.SetPublished(ctx, owner, form.ID, true))

	_, err = svc.Submit(ctx, form.ID, answersFor(form, "Alice", "alice@example.com"), SubmissionMeta{})
	require.NoError(t, err)

	svc.now = func() time.Time { return deadline.Add(time.Minute) }
	_, err = svc.Submit(ctx, form.ID, answersFor(form, "Bob", "bob@example.com"), SubmissionMeta{})
	assert.ErrorIs(t, err, ErrFormClosed)
}

func TestSubmit_CapReached(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	owner := uuid.New()

	cap := 1
	in := sampleInput()
	in.MaxResponses = &cap

	form, err := svc.Create(ctx, owner, in)
	require.NoError(t, err)
	require.NoError(t, svc.SetPublished(ctx, owner, form.ID, true))

	_, err = svc.Submit(ctx, form.ID, answersFor(form, "Alice", "alice@example.com"), SubmissionMeta{})
	require.NoError(t, err)

	_, err = svc.Submit(ctx, form.ID, answersFor(form, "Bob", "bob@example.com"), SubmissionMeta{})
	assert.ErrorIs(t, err, ErrFormClosed)
}

func TestExportCSV(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	owner := uuid.New()

	form, err := svc.Create(ctx, owner, sampleInput())
	require.NoError(t, err)
	require.NoError(t, svc.SetPublished(ctx, owner, form.ID, true))

	_, err = svc.Submit(ctx, form.ID, answersFor(form, "Alice", "alice@example.com", "M"), SubmissionMeta{})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, form.ID, answersFor(form, "Bob", "bob@example.com"), SubmissionMeta{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(ctx, owner, form.ID, &buf))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[0]), "Response ID,Submitted At,Full name,Email,Shirt size")
	assert.Contains(t, string(lines[1]), "Alice,alice@example.com,M")
	assert.Contains(t, string(lines[2]), "Bob,bob@example.com,")
}

func TestDashboard(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	owner, other := uuid.New(), uuid.New()

	published, err := svc.Create(ctx, owner, sampleInput())
	require.NoError(t, err)
	require.NoError(t, svc.SetPublished(ctx, owner, published.ID, true))
	_, err = svc.Create(ctx, owner, sampleInput())
	require.NoError(t, err)
	_, err = svc.Create(ctx, other, sampleInput())
	require.NoError(t, err)

	_, err = svc.Submit(ctx, published.ID, answersFor(published, "Alice", "alice@example.com"), SubmissionMeta{})
	require.NoError(t, err)

	stats, err := svc.Dashboard(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, &Stats{Forms: 2, Published: 1, Submissions: 1}, stats)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	owner := uuid.New()

	first, err := svc.Create(ctx, owner, sampleInput())
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Now().Add(time.Minute) }
	second, err := svc.Create(ctx, owner, sampleInput())
	require.NoError(t, err)

	forms, err := svc.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, forms, 2)
	assert.Equal(t, second.ID, forms[0].ID)
	assert.Equal(t, first.ID, forms[1].ID)
}
