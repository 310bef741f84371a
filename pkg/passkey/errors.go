package passkey

import (
	"errors"
	"fmt"
)

// Sentinel errors for ceremony and store operations.
var (
	// ErrUserNotFound is returned by stores when no user matches.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists is returned by stores when creating a user whose email
	// is already taken.
	ErrUserExists = errors.New("user already exists")

	// ErrInvalidCeremony is returned when verification is attempted for a
	// user that does not exist or has no pending challenge of the right kind.
	ErrInvalidCeremony = errors.New("no ceremony in progress")

	// ErrNoCredentials is returned when authentication options are requested
	// for an identity with no registered passkeys. Unknown identities get the
	// same error so the endpoint does not reveal which emails exist.
	ErrNoCredentials = errors.New("no passkeys registered")

	// ErrVerificationFailed is returned when the cryptographic check of an
	// attestation or assertion did not pass.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrDuplicateCredential is returned when a registration carries a
	// credential ID that is already stored, for any user.
	ErrDuplicateCredential = errors.New("credential already registered")

	// ErrCredentialNotFound is returned when an assertion references a
	// credential ID that is not owned by the resolved user.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrInvalidToken is returned when a session token fails signature,
	// format, or expiry validation.
	ErrInvalidToken = errors.New("invalid session token")
)

// Error wraps a sentinel with the operation that produced it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return errors.Is(e.Err, target) }

// wrap annotates err with op, passing nil through unchanged.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}
