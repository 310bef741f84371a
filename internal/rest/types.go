package rest

import (
	"github.com/sa1dev/regeester/internal/forms"
)

// SessionCookie is the name of the session token cookie.
const SessionCookie = "token"

// CeremonyOptionsRequest is the request body for both options endpoints.
// Name and Phone are only honored by the registration endpoint.
type CeremonyOptionsRequest struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// UserResponse describes the authenticated user.
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// VerifyResponse is returned by both verify endpoints.
type VerifyResponse struct {
	Success bool          `json:"success"`
	User    *UserResponse `json:"user,omitempty"`
}

// PublishRequest toggles a form's publication state.
type PublishRequest struct {
	Published bool `json:"published"`
}

// SubmitRequest is a public form submission.
type SubmitRequest struct {
	Answers []forms.AnswerInput `json:"answers"`
}

// SubmitResponse acknowledges an accepted submission.
type SubmitResponse struct {
	Success      bool   `json:"success"`
	SubmissionID string `json:"submission_id"`
}

// ErrorResponse is the response format for errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}
