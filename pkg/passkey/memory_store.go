package passkey

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for development and testing. WithinTx
// serializes callers but does not roll back partial mutations.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*User
	byEmail map[string]uuid.UUID
	creds   map[string]*Credential // hex credential ID -> credential
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[uuid.UUID]*User),
		byEmail: make(map[string]uuid.UUID),
		creds:   make(map[string]*Credential),
	}
}

func (s *MemoryStore) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneUser(s.byID[id]), nil
}

func (s *MemoryStore) FindUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneUser(user), nil
}

func (s *MemoryStore) CreateUser(ctx context.Context, email, name, phone string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[email]; ok {
		return nil, ErrUserExists
	}

	now := time.Now().UTC()
	user := &User{
		ID:        uuid.New(),
		Email:     email,
		Name:      name,
		Phone:     phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.byID[user.ID] = user
	s.byEmail[email] = user.ID
	return cloneUser(user), nil
}

func (s *MemoryStore) SetChallenge(ctx context.Context, userID uuid.UUID, c *Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[userID]
	if !ok {
		return ErrUserNotFound
	}
	cc := *c
	user.Challenge = &cc
	user.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) ClearChallenge(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.Challenge = nil
	user.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) UpdateUserProfile(ctx context.Context, userID uuid.UUID, name, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[userID]
	if !ok {
		return ErrUserNotFound
	}
	if name != "" {
		user.Name = name
	}
	if phone != "" {
		user.Phone = phone
	}
	user.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) CredentialsByUser(ctx context.Context, userID uuid.UUID) ([]*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Credential
	for _, cred := range s.creds {
		if cred.UserID == userID {
			cc := *cred
			out = append(out, &cc)
		}
	}
	return out, nil
}

func (s *MemoryStore) FindCredentialByID(ctx context.Context, credentialID []byte) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.creds[hex.EncodeToString(credentialID)]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	cc := *cred
	return &cc, nil
}

func (s *MemoryStore) CreateCredential(ctx context.Context, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := hex.EncodeToString(cred.ID)
	if _, ok := s.creds[key]; ok {
		return ErrDuplicateCredential
	}
	cc := *cred
	s.creds[key] = &cc
	return nil
}

func (s *MemoryStore) UpdateCredentialCounter(ctx context.Context, credentialID []byte, signCount uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.creds[hex.EncodeToString(credentialID)]
	if !ok {
		return ErrCredentialNotFound
	}
	cred.SignCount = signCount
	cred.LastUsedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return fn(ctx, s)
}

func cloneUser(u *User) *User {
	cc := *u
	if u.Challenge != nil {
		ch := *u.Challenge
		cc.Challenge = &ch
	}
	cc.credentials = nil
	return &cc
}
