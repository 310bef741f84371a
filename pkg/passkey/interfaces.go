package passkey

import (
	"context"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

// Store persists users, their single-slot challenges, and credentials.
// Single operations are atomic at the record level; the service wraps
// multi-record mutations in WithinTx.
type Store interface {
	// FindUserByEmail returns ErrUserNotFound when no user matches.
	FindUserByEmail(ctx context.Context, email string) (*User, error)

	// FindUserByID returns ErrUserNotFound when no user matches.
	FindUserByID(ctx context.Context, id uuid.UUID) (*User, error)

	// CreateUser creates a user keyed by email.
	CreateUser(ctx context.Context, email, name, phone string) (*User, error)

	// SetChallenge overwrites any pending challenge for the user.
	SetChallenge(ctx context.Context, userID uuid.UUID, c *Challenge) error

	// ClearChallenge resets the user to the no-ceremony state.
	ClearChallenge(ctx context.Context, userID uuid.UUID) error

	// UpdateUserProfile updates the display name and phone when non-empty.
	UpdateUserProfile(ctx context.Context, userID uuid.UUID, name, phone string) error

	// CredentialsByUser returns all credentials registered to the user,
	// oldest first. The slice is empty when the user has none.
	CredentialsByUser(ctx context.Context, userID uuid.UUID) ([]*Credential, error)

	// FindCredentialByID looks a credential up across all users.
	// Returns ErrCredentialNotFound when absent.
	FindCredentialByID(ctx context.Context, credentialID []byte) (*Credential, error)

	// CreateCredential stores a new credential. Returns
	// ErrDuplicateCredential if the credential ID already exists, for any
	// user; the existing record is never overwritten.
	CreateCredential(ctx context.Context, cred *Credential) error

	// UpdateCredentialCounter persists the signature counter returned by a
	// successful assertion and stamps last use.
	UpdateCredentialCounter(ctx context.Context, credentialID []byte, signCount uint32) error

	// WithinTx runs fn against a transactional view of the store. All
	// mutations made through tx commit together or roll back together.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// CeremonyVerifier is the WebAuthn verification primitive. Implementations
// perform the cryptographic attestation/assertion validation; the service
// never reimplements it.
type CeremonyVerifier interface {
	// RegistrationOptions produces creation options carrying a fresh
	// challenge, instructing the authenticator to refuse the excluded
	// (already registered) credentials. Returns the options and the
	// challenge to persist.
	RegistrationOptions(user *User, exclusions []protocol.CredentialDescriptor) (*protocol.CredentialCreation, string, error)

	// LoginOptions produces request options carrying a fresh challenge and
	// an allow-list built from the user's attached credentials.
	LoginOptions(user *User) (*protocol.CredentialAssertion, string, error)

	// VerifyAttestation checks the attestation response against the stored
	// challenge and the configured origin/RP ID, returning the extracted
	// credential on success.
	VerifyAttestation(user *User, challenge string, response *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error)

	// VerifyAssertion checks the assertion response against the stored
	// challenge, origin/RP ID, and the user's attached credentials. The
	// returned credential carries the new signature counter and the
	// primitive's clone-detection verdict.
	VerifyAssertion(user *User, challenge string, response *protocol.ParsedCredentialAssertionData) (*webauthn.Credential, error)
}
