package passkey

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/descope/virtualwebauthn"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		RPID:          "example.com",
		RPDisplayName: "Regeester",
		RPOrigins:     []string{"https://example.com"},
	}
}

func newTestService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()

	verifier, err := NewVerifier(testConfig())
	require.NoError(t, err)

	tokens, err := NewTokenAuthority([]byte("test-signing-secret"), time.Hour)
	require.NoError(t, err)

	store := NewMemoryStore()
	svc, err := NewService(ServiceParams{Store: store, Verifier: verifier, Tokens: tokens})
	require.NoError(t, err)
	return svc, store
}

func testRelyingParty() virtualwebauthn.RelyingParty {
	cfg := testConfig()
	return virtualwebauthn.RelyingParty{
		Name:   cfg.RPDisplayName,
		ID:     cfg.RPID,
		Origin: cfg.RPOrigins[0],
	}
}

func parseAttestation(t *testing.T, attestation string) *protocol.ParsedCredentialCreationData {
	t.Helper()
	var ccr protocol.CredentialCreationResponse
	require.NoError(t, json.Unmarshal([]byte(attestation), &ccr))
	parsed, err := ccr.Parse()
	require.NoError(t, err)
	return parsed
}

func parseAssertion(t *testing.T, assertion string) *protocol.ParsedCredentialAssertionData {
	t.Helper()
	var car protocol.CredentialAssertionResponse
	require.NoError(t, json.Unmarshal([]byte(assertion), &car))
	parsed, err := car.Parse()
	require.NoError(t, err)
	return parsed
}

// attest runs the client half of a registration ceremony against options.
func attest(t *testing.T, auth virtualwebauthn.Authenticator, cred virtualwebauthn.Credential, options *protocol.CredentialCreation) *protocol.ParsedCredentialCreationData {
	t.Helper()
	optionsJSON, err := json.Marshal(options.Response)
	require.NoError(t, err)
	parsedOptions, err := virtualwebauthn.ParseAttestationOptions(string(optionsJSON))
	require.NoError(t, err)
	attestation := virtualwebauthn.CreateAttestationResponse(testRelyingParty(), auth, cred, *parsedOptions)
	return parseAttestation(t, attestation)
}

// assertTo runs the client half of an authentication ceremony against options.
func assertTo(t *testing.T, auth virtualwebauthn.Authenticator, cred virtualwebauthn.Credential, options *protocol.CredentialAssertion) *protocol.ParsedCredentialAssertionData {
	t.Helper()
	optionsJSON, err := json.Marshal(options.Response)
	require.NoError(t, err)
	parsedOptions, err := virtualwebauthn.ParseAssertionOptions(string(optionsJSON))
	require.NoError(t, err)
	assertion := virtualwebauthn.CreateAssertionResponse(testRelyingParty(), auth, cred, *parsedOptions)
	return parseAssertion(t, assertion)
}

// register walks a full registration ceremony for email and returns the
// issued token and user.
func register(t *testing.T, svc *Service, email, name string, auth *virtualwebauthn.Authenticator, cred virtualwebauthn.Credential) (string, *User) {
	t.Helper()
	ctx := context.Background()

	options, err := svc.BeginRegistration(ctx, email, name, "")
	require.NoError(t, err)

	token, user, err := svc.FinishRegistration(ctx, email, name, attest(t, *auth, cred, options))
	require.NoError(t, err)
	auth.AddCredential(cred)
	return token, user
}

func TestNewService(t *testing.T) {
	verifier, err := NewVerifier(testConfig())
	require.NoError(t, err)
	tokens, err := NewTokenAuthority([]byte("secret"), time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name    string
		params  ServiceParams
		wantErr string
	}{
		{"missing store", ServiceParams{Verifier: verifier, Tokens: tokens}, "store is required"},
		{"missing verifier", ServiceParams{Store: NewMemoryStore(), Tokens: tokens}, "ceremony verifier is required"},
		{"missing tokens", ServiceParams{Store: NewMemoryStore(), Verifier: verifier}, "token authority is required"},
		{"complete", ServiceParams{Store: NewMemoryStore(), Verifier: verifier, Tokens: tokens}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewService(tt.params)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, svc)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func TestRegistrationCeremony(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	options, err := svc.BeginRegistration(ctx, "alice@example.com", "Alice", "")
	require.NoError(t, err)
	assert.Equal(t, "example.com", options.Response.RelyingParty.ID)
	assert.Equal(t, "alice@example.com", options.Response.User.Name)
	assert.Equal(t, "Alice", options.Response.User.DisplayName)
	assert.NotEmpty(t, options.Response.Challenge)

	// The challenge is pending on the user row.
	user, err := store.FindUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, user.Challenge)
	assert.Equal(t, CeremonyRegistration, user.Challenge.Kind)

	token, registered, err := svc.FinishRegistration(ctx, "alice@example.com", "Alice", attest(t, auth, cred, options))
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, "alice@example.com", registered.Email)

	// Terminal success: challenge cleared, credential stored at counter 0.
	user, err = store.FindUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Nil(t, user.Challenge)

	creds, err := store.CredentialsByUser(ctx, registered.ID)
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, uint32(0), creds[0].SignCount)

	// The issued token names alice.
	claims, err := svc.Tokens().Validate(token)
	require.NoError(t, err)
	assert.Equal(t, registered.ID.String(), claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
}

func TestFinishRegistration_ReplayFails(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	options, err := svc.BeginRegistration(ctx, "alice@example.com", "Alice", "")
	require.NoError(t, err)
	response := attest(t, auth, cred, options)

	_, _, err = svc.FinishRegistration(ctx, "alice@example.com", "Alice", response)
	require.NoError(t, err)

	// The challenge was consumed; the same attestation cannot verify again.
	_, _, err = svc.FinishRegistration(ctx, "alice@example.com", "Alice", response)
	assert.ErrorIs(t, err, ErrInvalidCeremony)
}

func TestFinishRegistration_NoCeremony(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	options, err := svc.BeginRegistration(ctx, "alice@example.com", "Alice", "")
	require.NoError(t, err)
	response := attest(t, auth, cred, options)

	// Unknown user.
	_, _, err = svc.FinishRegistration(ctx, "nobody@example.com", "Nobody", response)
	assert.ErrorIs(t, err, ErrInvalidCeremony)

	// Known user, challenge already cleared.
	user, err := store.FindUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NoError(t, store.ClearChallenge(ctx, user.ID))

	_, _, err = svc.FinishRegistration(ctx, "alice@example.com", "Alice", response)
	assert.ErrorIs(t, err, ErrInvalidCeremony)
}

func TestFinishRegistration_StaleChallengeInvalidated(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	first, err := svc.BeginRegistration(ctx, "alice@example.com", "Alice", "")
	require.NoError(t, err)

	// A second issuance overwrites the first challenge (last write wins).
	_, err = svc.BeginRegistration(ctx, "alice@example.com", "Alice", "")
	require.NoError(t, err)

	_, _, err = svc.FinishRegistration(ctx, "alice@example.com", "Alice", attest(t, auth, cred, first))
	assert.ErrorIs(t, err, ErrVerificationFailed)

	// Terminal failure clears the slot so nothing stale remains.
	user, err := store.FindUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Nil(t, user.Challenge)
}

func TestFinishRegistration_DuplicateCredential(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	_, alice := register(t, svc, "alice@example.com", "Alice", &auth, cred)

	// Bob tries to register alice's credential.
	options, err := svc.BeginRegistration(ctx, "bob@example.com", "Bob", "")
	require.NoError(t, err)

	bobAuth := virtualwebauthn.NewAuthenticator()
	_, _, err = svc.FinishRegistration(ctx, "bob@example.com", "Bob", attest(t, bobAuth, cred, options))
	assert.ErrorIs(t, err, ErrDuplicateCredential)

	// Bob has no credentials; alice's record is untouched.
	bob, err := store.FindUserByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	bobCreds, err := store.CredentialsByUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, bobCreds)

	aliceCreds, err := store.CredentialsByUser(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, aliceCreds, 1)
	assert.Equal(t, alice.ID, aliceCreds[0].UserID)
}

func TestBeginRegistration_ExcludesRegisteredCredentials(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	register(t, svc, "alice@example.com", "Alice", &auth, cred)

	options, err := svc.BeginRegistration(ctx, "alice@example.com", "Alice", "")
	require.NoError(t, err)
	require.Len(t, options.Response.CredentialExcludeList, 1)
	assert.Equal(t, protocol.URLEncodedBase64(cred.ID), options.Response.CredentialExcludeList[0].CredentialID)
}

func TestEmailNormalization(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	register(t, svc, "alice@example.com", "Alice", &auth, cred)

	// Case and whitespace variants resolve to the same account.
	_, err := svc.BeginLogin(ctx, "  Alice@Example.COM ")
	require.NoError(t, err)

	// A variant spelling does not create a second user.
	_, err = svc.BeginRegistration(ctx, "ALICE@example.com", "Alice", "")
	require.NoError(t, err)
	_, err = store.FindUserByEmail(ctx, "ALICE@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestBeginLogin_NoCredentials(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	// Unknown email: same failure, nothing created.
	_, err := svc.BeginLogin(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, ErrNoCredentials)
	_, err = store.FindUserByEmail(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)

	// Known email with zero passkeys: same failure, no challenge mutation.
	_, err = store.CreateUser(ctx, "new@example.com", "New", "")
	require.NoError(t, err)
	_, err = svc.BeginLogin(ctx, "new@example.com")
	assert.ErrorIs(t, err, ErrNoCredentials)

	user, err := store.FindUserByEmail(ctx, "new@example.com")
	require.NoError(t, err)
	assert.Nil(t, user.Challenge)
}

func TestAuthenticationCeremony(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	_, alice := register(t, svc, "alice@example.com", "Alice", &auth, cred)

	options, err := svc.BeginLogin(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, options.Response.Challenge)
	require.Len(t, options.Response.AllowedCredentials, 1)

	// Counter advances 0 -> 1 on the authenticator.
	cred.Counter++
	token, user, err := svc.FinishLogin(ctx, "alice@example.com", assertTo(t, auth, cred, options))
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, alice.ID, user.ID)

	creds, err := store.CredentialsByUser(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, uint32(1), creds[0].SignCount)
	assert.False(t, creds[0].LastUsedAt.IsZero())

	stored, err := store.FindUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Nil(t, stored.Challenge)
}

func TestFinishLogin_ReplayFails(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	_, alice := register(t, svc, "alice@example.com", "Alice", &auth, cred)

	options, err := svc.BeginLogin(ctx, "alice@example.com")
	require.NoError(t, err)

	cred.Counter++
	response := assertTo(t, auth, cred, options)
	_, _, err = svc.FinishLogin(ctx, "alice@example.com", response)
	require.NoError(t, err)

	// Challenge consumed: the identical assertion is rejected and the
	// stored counter does not move.
	_, _, err = svc.FinishLogin(ctx, "alice@example.com", response)
	assert.ErrorIs(t, err, ErrInvalidCeremony)

	creds, err := store.CredentialsByUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), creds[0].SignCount)
}

func TestFinishLogin_CounterRegression(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	_, alice := register(t, svc, "alice@example.com", "Alice", &auth, cred)

	options, err := svc.BeginLogin(ctx, "alice@example.com")
	require.NoError(t, err)
	cred.Counter++
	_, _, err = svc.FinishLogin(ctx, "alice@example.com", assertTo(t, auth, cred, options))
	require.NoError(t, err)

	// A cloned authenticator would present a counter that has not advanced
	// past the stored value.
	options, err = svc.BeginLogin(ctx, "alice@example.com")
	require.NoError(t, err)
	_, _, err = svc.FinishLogin(ctx, "alice@example.com", assertTo(t, auth, cred, options))
	assert.ErrorIs(t, err, ErrVerificationFailed)

	creds, err := store.CredentialsByUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), creds[0].SignCount)
}

func TestFinishLogin_ForeignCredentialRejected(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	aliceAuth := virtualwebauthn.NewAuthenticator()
	aliceCred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	register(t, svc, "alice@example.com", "Alice", &aliceAuth, aliceCred)

	bobAuth := virtualwebauthn.NewAuthenticator()
	bobCred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	register(t, svc, "bob@example.com", "Bob", &bobAuth, bobCred)

	// Bob's assertion presented for alice's ceremony references a
	// credential alice does not own.
	options, err := svc.BeginLogin(ctx, "alice@example.com")
	require.NoError(t, err)
	bobCred.Counter++
	_, _, err = svc.FinishLogin(ctx, "alice@example.com", assertTo(t, bobAuth, bobCred, options))
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestCurrentUser(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	token, alice := register(t, svc, "alice@example.com", "Alice", &auth, cred)

	user, err := svc.CurrentUser(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, user.ID)
	assert.Equal(t, "alice@example.com", user.Email)

	_, err = svc.CurrentUser(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
