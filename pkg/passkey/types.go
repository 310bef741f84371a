package passkey

import (
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

// ChallengeKind names the ceremony a pending challenge was issued for.
type ChallengeKind string

const (
	CeremonyRegistration   ChallengeKind = "registration"
	CeremonyAuthentication ChallengeKind = "authentication"
)

// Challenge is the single-slot pending-ceremony state stored on a user.
// It is durable: the server may restart between challenge issuance and
// verification without losing the ceremony.
type Challenge struct {
	Kind     ChallengeKind
	Value    string
	IssuedAt time.Time
}

// User is an organizer identity. Email is the canonical login identifier.
type User struct {
	ID    uuid.UUID
	Email string
	Name  string
	Phone string

	// Challenge is nil when no ceremony is in flight.
	Challenge *Challenge

	CreatedAt time.Time
	UpdatedAt time.Time

	credentials []*Credential
}

// WebAuthnID returns the user handle presented to authenticators.
func (u *User) WebAuthnID() []byte { return u.ID[:] }

// WebAuthnName returns the account identifier shown by authenticators.
func (u *User) WebAuthnName() string { return u.Email }

// WebAuthnDisplayName returns the human-readable name shown by authenticators.
func (u *User) WebAuthnDisplayName() string {
	if u.Name == "" {
		return u.Email
	}
	return u.Name
}

// WebAuthnCredentials returns the registered credentials in the form the
// verification primitive expects. Credentials must have been attached with
// SetCredentials first.
func (u *User) WebAuthnCredentials() []webauthn.Credential {
	creds := make([]webauthn.Credential, len(u.credentials))
	for i, c := range u.credentials {
		creds[i] = c.ToWebAuthn()
	}
	return creds
}

// SetCredentials attaches the user's registered credentials for a ceremony.
func (u *User) SetCredentials(creds []*Credential) { u.credentials = creds }

// Credentials returns the credentials attached with SetCredentials.
func (u *User) Credentials() []*Credential { return u.credentials }

// Credential is one registered authenticator bound to a user. The ID is
// globally unique across all users.
type Credential struct {
	ID              []byte
	UserID          uuid.UUID
	PublicKey       []byte
	AttestationType string
	Transports      []protocol.AuthenticatorTransport
	AAGUID          []byte

	// SignCount is the authenticator's signature counter, persisted after
	// every successful assertion to detect cloned authenticators.
	SignCount uint32

	BackupEligible bool
	BackupState    bool

	CreatedAt  time.Time
	LastUsedAt time.Time
}

// ToWebAuthn converts the credential to the verification primitive's type.
func (c *Credential) ToWebAuthn() webauthn.Credential {
	return webauthn.Credential{
		ID:              c.ID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Transport:       c.Transports,
		Flags: webauthn.CredentialFlags{
			BackupEligible: c.BackupEligible,
			BackupState:    c.BackupState,
		},
		Authenticator: webauthn.Authenticator{
			AAGUID:    c.AAGUID,
			SignCount: c.SignCount,
		},
	}
}

// newCredential builds a Credential from a freshly verified attestation.
func newCredential(userID uuid.UUID, wc *webauthn.Credential) *Credential {
	return &Credential{
		ID:              wc.ID,
		UserID:          userID,
		PublicKey:       wc.PublicKey,
		AttestationType: wc.AttestationType,
		Transports:      wc.Transport,
		AAGUID:          wc.Authenticator.AAGUID,
		SignCount:       wc.Authenticator.SignCount,
		BackupEligible:  wc.Flags.BackupEligible,
		BackupState:     wc.Flags.BackupState,
		CreatedAt:       time.Now().UTC(),
	}
}
