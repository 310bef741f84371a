// Package passkey implements passwordless authentication for Regeester
// organizers: WebAuthn challenge issuance, registration and authentication
// ceremony verification, credential bookkeeping with signature-counter replay
// defense, and stateless session token issuance.
//
// The cryptographic validation of attestation and assertion responses is
// delegated to github.com/go-webauthn/webauthn behind the CeremonyVerifier
// interface; this package owns the protocol state machine around it:
//
//	NoChallenge -> ChallengePending(kind) -> verified (credential stored /
//	counter updated, session issued) -> NoChallenge
//
// A user has at most one pending challenge at a time. Issuing a new challenge
// overwrites the previous one, and every terminal verification outcome -
// success or failure - clears the slot so a challenge can never be checked
// twice.
package passkey
