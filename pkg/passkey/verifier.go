package passkey

import (
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// webauthnVerifier implements CeremonyVerifier on top of go-webauthn.
type webauthnVerifier struct {
	wa  *webauthn.WebAuthn
	cfg *Config
}

// NewVerifier builds the production CeremonyVerifier for the relying party
// described by cfg.
func NewVerifier(cfg *Config) (CeremonyVerifier, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid relying party config: %w", err)
	}

	wa, err := webauthn.New(cfg.toWebAuthnConfig())
	if err != nil {
		return nil, fmt.Errorf("create webauthn instance: %w", err)
	}

	return &webauthnVerifier{wa: wa, cfg: cfg}, nil
}

func (v *webauthnVerifier) RegistrationOptions(user *User, exclusions []protocol.CredentialDescriptor) (*protocol.CredentialCreation, string, error) {
	options, session, err := v.wa.BeginRegistration(user, webauthn.WithExclusions(exclusions))
	if err != nil {
		return nil, "", err
	}
	return options, session.Challenge, nil
}

func (v *webauthnVerifier) LoginOptions(user *User) (*protocol.CredentialAssertion, string, error) {
	options, session, err := v.wa.BeginLogin(user)
	if err != nil {
		return nil, "", err
	}
	return options, session.Challenge, nil
}

func (v *webauthnVerifier) VerifyAttestation(user *User, challenge string, response *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error) {
	// Ceremony state is durable on the user row, so the library session is
	// rebuilt from the stored challenge rather than held in memory.
	return v.wa.CreateCredential(user, v.session(user, challenge, nil), response)
}

func (v *webauthnVerifier) VerifyAssertion(user *User, challenge string, response *protocol.ParsedCredentialAssertionData) (*webauthn.Credential, error) {
	allowed := make([][]byte, len(user.Credentials()))
	for i, cred := range user.Credentials() {
		allowed[i] = cred.ID
	}
	return v.wa.ValidateLogin(user, v.session(user, challenge, allowed), response)
}

func (v *webauthnVerifier) session(user *User, challenge string, allowed [][]byte) webauthn.SessionData {
	return webauthn.SessionData{
		Challenge:            challenge,
		RelyingPartyID:       v.cfg.RPID,
		UserID:               user.WebAuthnID(),
		AllowedCredentialIDs: allowed,
		UserVerification:     protocol.UserVerificationRequirement(v.cfg.UserVerification),
	}
}
