package passkey

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
)

// Service orchestrates the passkey ceremonies: challenge issuance,
// registration and authentication verification, and session issuance.
type Service struct {
	store    Store
	verifier CeremonyVerifier
	tokens   *TokenAuthority
	logger   *slog.Logger
}

// ServiceParams contains the dependencies for a Service.
type ServiceParams struct {
	Store    Store
	Verifier CeremonyVerifier
	Tokens   *TokenAuthority

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// NewService creates a Service, validating that all required dependencies
// are present.
func NewService(params ServiceParams) (*Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if params.Verifier == nil {
		return nil, fmt.Errorf("ceremony verifier is required")
	}
	if params.Tokens == nil {
		return nil, fmt.Errorf("token authority is required")
	}
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    params.Store,
		verifier: params.Verifier,
		tokens:   params.Tokens,
		logger:   logger,
	}, nil
}

// BeginRegistration resolves or lazily creates the user for email, issues a
// fresh registration challenge, and returns the creation options. Any
// previously pending challenge for the user is overwritten.
func (s *Service) BeginRegistration(ctx context.Context, email, name, phone string) (*protocol.CredentialCreation, error) {
	email = normalizeEmail(email)
	user, err := s.store.FindUserByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrUserNotFound):
		user, err = s.store.CreateUser(ctx, email, name, phone)
		if err != nil {
			return nil, wrap("create user", err)
		}
	case err != nil:
		return nil, wrap("find user", err)
	default:
		if name != "" && name != user.Name {
			if err := s.store.UpdateUserProfile(ctx, user.ID, name, phone); err != nil {
				return nil, wrap("update profile", err)
			}
			user.Name = name
		}
	}

	creds, err := s.store.CredentialsByUser(ctx, user.ID)
	if err != nil {
		return nil, wrap("load credentials", err)
	}
	user.SetCredentials(creds)

	exclusions := make([]protocol.CredentialDescriptor, len(creds))
	for i, cred := range creds {
		exclusions[i] = protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: cred.ID,
			Transport:    cred.Transports,
		}
	}

	options, challenge, err := s.verifier.RegistrationOptions(user, exclusions)
	if err != nil {
		return nil, wrap("registration options", err)
	}

	if err := s.store.SetChallenge(ctx, user.ID, &Challenge{
		Kind:     CeremonyRegistration,
		Value:    challenge,
		IssuedAt: time.Now().UTC(),
	}); err != nil {
		return nil, wrap("store challenge", err)
	}

	s.logger.Debug("registration challenge issued", "user", user.ID)
	return options, nil
}

// FinishRegistration verifies the attestation response against the pending
// challenge, stores the new credential, and issues a session token. The
// credential insert, challenge clear, profile update, and token mint happen
// atomically.
func (s *Service) FinishRegistration(ctx context.Context, email, name string, response *protocol.ParsedCredentialCreationData) (string, *User, error) {
	user, err := s.store.FindUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", nil, ErrInvalidCeremony
		}
		return "", nil, wrap("find user", err)
	}
	if user.Challenge == nil || user.Challenge.Kind != CeremonyRegistration {
		return "", nil, ErrInvalidCeremony
	}

	wcred, err := s.verifier.VerifyAttestation(user, user.Challenge.Value, response)
	if err != nil {
		s.failCeremony(ctx, user, "attestation rejected", err)
		return "", nil, ErrVerificationFailed
	}

	// Global uniqueness: a credential ID registered under any user blocks
	// re-registration; the first record is never overwritten.
	if _, err := s.store.FindCredentialByID(ctx, wcred.ID); err == nil {
		s.failCeremony(ctx, user, "duplicate credential", nil)
		return "", nil, ErrDuplicateCredential
	} else if !errors.Is(err, ErrCredentialNotFound) {
		return "", nil, wrap("check credential", err)
	}

	cred := newCredential(user.ID, wcred)
	if name != "" {
		user.Name = name
	}

	var token string
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Store) error {
		if err := tx.CreateCredential(ctx, cred); err != nil {
			return err
		}
		if err := tx.ClearChallenge(ctx, user.ID); err != nil {
			return err
		}
		if name != "" {
			if err := tx.UpdateUserProfile(ctx, user.ID, name, user.Phone); err != nil {
				return err
			}
		}
		token, err = s.tokens.Issue(user)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateCredential) {
			return "", nil, ErrDuplicateCredential
		}
		return "", nil, wrap("persist registration", err)
	}

	user.Challenge = nil
	s.logger.Info("passkey registered", "user", user.ID)
	return token, user, nil
}

// BeginLogin issues a fresh authentication challenge for email. An unknown
// email and a known email with zero registered passkeys both fail with
// ErrNoCredentials, without touching any challenge state.
func (s *Service) BeginLogin(ctx context.Context, email string) (*protocol.CredentialAssertion, error) {
	user, err := s.store.FindUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrNoCredentials
		}
		return nil, wrap("find user", err)
	}

	creds, err := s.store.CredentialsByUser(ctx, user.ID)
	if err != nil {
		return nil, wrap("load credentials", err)
	}
	if len(creds) == 0 {
		return nil, ErrNoCredentials
	}
	user.SetCredentials(creds)

	options, challenge, err := s.verifier.LoginOptions(user)
	if err != nil {
		return nil, wrap("login options", err)
	}

	if err := s.store.SetChallenge(ctx, user.ID, &Challenge{
		Kind:     CeremonyAuthentication,
		Value:    challenge,
		IssuedAt: time.Now().UTC(),
	}); err != nil {
		return nil, wrap("store challenge", err)
	}

	s.logger.Debug("authentication challenge issued", "user", user.ID)
	return options, nil
}

// FinishLogin verifies the assertion response against the pending challenge
// and a credential owned by the user, persists the new signature counter,
// and issues a session token. The counter update, challenge clear, and token
// mint happen atomically.
func (s *Service) FinishLogin(ctx context.Context, email string, response *protocol.ParsedCredentialAssertionData) (string, *User, error) {
	user, err := s.store.FindUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", nil, ErrInvalidCeremony
		}
		return "", nil, wrap("find user", err)
	}
	if user.Challenge == nil || user.Challenge.Kind != CeremonyAuthentication {
		return "", nil, ErrInvalidCeremony
	}

	creds, err := s.store.CredentialsByUser(ctx, user.ID)
	if err != nil {
		return "", nil, wrap("load credentials", err)
	}
	user.SetCredentials(creds)

	// The asserted credential must belong to this user; a structurally valid
	// credential registered to someone else is rejected.
	var owned bool
	for _, cred := range creds {
		if bytes.Equal(cred.ID, response.RawID) {
			owned = true
			break
		}
	}
	if !owned {
		s.failCeremony(ctx, user, "credential not owned by user", nil)
		return "", nil, ErrCredentialNotFound
	}

	wcred, err := s.verifier.VerifyAssertion(user, user.Challenge.Value, response)
	if err != nil {
		s.failCeremony(ctx, user, "assertion rejected", err)
		return "", nil, ErrVerificationFailed
	}

	// The primitive flags counter regression instead of erroring; treat a
	// clone warning as a failed ceremony and persist nothing.
	if wcred.Authenticator.CloneWarning {
		s.failCeremony(ctx, user, "signature counter regression", nil)
		return "", nil, ErrVerificationFailed
	}

	var token string
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Store) error {
		if err := tx.UpdateCredentialCounter(ctx, wcred.ID, wcred.Authenticator.SignCount); err != nil {
			return err
		}
		if err := tx.ClearChallenge(ctx, user.ID); err != nil {
			return err
		}
		token, err = s.tokens.Issue(user)
		return err
	})
	if err != nil {
		return "", nil, wrap("persist authentication", err)
	}

	user.Challenge = nil
	s.logger.Info("passkey authenticated", "user", user.ID)
	return token, user, nil
}

// CurrentUser resolves the user behind a presented session token.
func (s *Service) CurrentUser(ctx context.Context, token string) (*User, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}
	id, err := claims.UUID()
	if err != nil {
		return nil, ErrInvalidToken
	}
	user, err := s.store.FindUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, wrap("find user", err)
	}
	return user, nil
}

// Tokens exposes the token authority for transport-layer concerns such as
// cookie lifetimes.
func (s *Service) Tokens() *TokenAuthority { return s.tokens }

// normalizeEmail canonicalizes the login identifier so "Alice@Example.com"
// and "alice@example.com" resolve to the same account.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// failCeremony clears the pending challenge after a terminal failure so a
// stale challenge can never be verified twice. Clearing is best-effort; the
// ceremony error is what the caller reports.
func (s *Service) failCeremony(ctx context.Context, user *User, reason string, cause error) {
	s.logger.Warn("ceremony failed", "user", user.ID, "reason", reason, "error", cause)
	if err := s.store.ClearChallenge(ctx, user.ID); err != nil {
		s.logger.Error("clear challenge after failure", "user", user.ID, "error", err)
	}
}
