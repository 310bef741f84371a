package forms

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for development and testing.
type MemoryStore struct {
	mu    sync.RWMutex
	forms map[uuid.UUID]*Form
	subs  map[uuid.UUID][]*Submission // form ID -> submissions, oldest first
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		forms: make(map[uuid.UUID]*Form),
		subs:  make(map[uuid.UUID][]*Submission),
	}
}

func (s *MemoryStore) CreateForm(ctx context.Context, form *Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forms[form.ID] = cloneForm(form)
	return nil
}

func (s *MemoryStore) UpdateForm(ctx context.Context, form *Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.forms[form.ID]; !ok {
		return ErrFormNotFound
	}
	s.forms[form.ID] = cloneForm(form)
	return nil
}

func (s *MemoryStore) DeleteForm(ctx context.Context, formID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.forms[formID]; !ok {
		return ErrFormNotFound
	}
	delete(s.forms, formID)
	delete(s.subs, formID)
	return nil
}

func (s *MemoryStore) FormByID(ctx context.Context, formID uuid.UUID) (*Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	form, ok := s.forms[formID]
	if !ok {
		return nil, ErrFormNotFound
	}
	return cloneForm(form), nil
}

func (s *MemoryStore) FormsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Form
	for _, form := range s.forms {
		if form.OwnerID != ownerID {
			continue
		}
		cc := cloneForm(form)
		cc.ResponseCount = len(s.subs[form.ID])
		out = append(out, cc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) SetPublished(ctx context.Context, formID uuid.UUID, published bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	form, ok := s.forms[formID]
	if !ok {
		return ErrFormNotFound
	}
	form.Published = published
	return nil
}

func (s *MemoryStore) CreateSubmission(ctx context.Context, sub *Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.forms[sub.FormID]; !ok {
		return ErrFormNotFound
	}
	cc := *sub
	cc.Answers = append([]Answer(nil), sub.Answers...)
	s.subs[sub.FormID] = append(s.subs[sub.FormID], &cc)
	return nil
}

func (s *MemoryStore) SubmissionsByForm(ctx context.Context, formID uuid.UUID) ([]*Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Submission, 0, len(s.subs[formID]))
	for _, sub := range s.subs[formID] {
		cc := *sub
		cc.Answers = append([]Answer(nil), sub.Answers...)
		out = append(out, &cc)
	}
	return out, nil
}

func (s *MemoryStore) CountSubmissions(ctx context.Context, formID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs[formID]), nil
}

func (s *MemoryStore) StatsByOwner(ctx context.Context, ownerID uuid.UUID) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{}
	for _, form := range s.forms {
		if form.OwnerID != ownerID {
			continue
		}
		stats.Forms++
		if form.Published {
			stats.Published++
		}
		stats.Submissions += len(s.subs[form.ID])
	}
	return stats, nil
}

func cloneForm(f *Form) *Form {
	cc := *f
	cc.Fields = append([]Field(nil), f.Fields...)
	return &cc
}
