package rest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/sa1dev/regeester/pkg/metrics"
	"github.com/sa1dev/regeester/pkg/passkey"
)

// VerifyRegistrationRequest carries the attestation response for a pending
// registration ceremony.
type VerifyRegistrationRequest struct {
	Email      string          `json:"email"`
	Name       string          `json:"name,omitempty"`
	Credential json.RawMessage `json:"credential"`
}

// VerifyAuthenticationRequest carries the assertion response for a pending
// authentication ceremony.
type VerifyAuthenticationRequest struct {
	Email      string          `json:"email"`
	Credential json.RawMessage `json:"credential"`
}

// RegistrationOptions handles POST /api/auth/registration/options
//
// Request body: {"email": "...", "name": "...", "phone": "..."}
// Response: WebAuthn PublicKeyCredentialCreationOptions
func (s *Server) RegistrationOptions(w http.ResponseWriter, r *http.Request) {
	var req CeremonyOptionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorWithMessage(w, ErrInvalidRequest, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" {
		writeErrorWithMessage(w, ErrInvalidRequest, "email is required", http.StatusBadRequest)
		return
	}

	options, err := s.passkeys.BeginRegistration(r.Context(), req.Email, req.Name, req.Phone)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, options, http.StatusOK)
}

// RegistrationVerify handles POST /api/auth/registration/verify
//
// Request body: {"email": "...", "name": "...", "credential": {...}}
// On success, sets the session cookie and returns the user.
func (s *Server) RegistrationVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorWithMessage(w, ErrInvalidRequest, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" || len(req.Credential) == 0 {
		writeErrorWithMessage(w, ErrInvalidRequest, "email and credential are required", http.StatusBadRequest)
		return
	}

	response, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(req.Credential))
	if err != nil {
		writeErrorWithMessage(w, ErrInvalidRequest, "invalid attestation response", http.StatusBadRequest)
		return
	}

	start := time.Now()
	token, user, err := s.passkeys.FinishRegistration(r.Context(), req.Email, req.Name, response)
	metrics.RecordCeremony(metrics.CeremonyRegistration, err == nil, time.Since(start).Seconds())
	if err != nil {
		handleError(w, err)
		return
	}

	s.setSessionCookie(w, token)
	writeJSON(w, VerifyResponse{Success: true, User: userResponse(user)}, http.StatusOK)
}

// AuthenticationOptions handles POST /api/auth/authentication/options
//
// Request body: {"email": "..."}
// Response: WebAuthn PublicKeyCredentialRequestOptions
func (s *Server) AuthenticationOptions(w http.ResponseWriter, r *http.Request) {
	var req CeremonyOptionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorWithMessage(w, ErrInvalidRequest, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" {
		writeErrorWithMessage(w, ErrInvalidRequest, "email is required", http.StatusBadRequest)
		return
	}

	options, err := s.passkeys.BeginLogin(r.Context(), req.Email)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, options, http.StatusOK)
}

// AuthenticationVerify handles POST /api/auth/authentication/verify
//
// Request body: {"email": "...", "credential": {...}}
// On success, sets the session cookie and returns the user.
func (s *Server) AuthenticationVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyAuthenticationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorWithMessage(w, ErrInvalidRequest, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" || len(req.Credential) == 0 {
		writeErrorWithMessage(w, ErrInvalidRequest, "email and credential are required", http.StatusBadRequest)
		return
	}

	response, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(req.Credential))
	if err != nil {
		writeErrorWithMessage(w, ErrInvalidRequest, "invalid assertion response", http.StatusBadRequest)
		return
	}

	start := time.Now()
	token, user, err := s.passkeys.FinishLogin(r.Context(), req.Email, response)
	metrics.RecordCeremony(metrics.CeremonyAuthentication, err == nil, time.Since(start).Seconds())
	if err != nil {
		handleError(w, err)
		return
	}

	s.setSessionCookie(w, token)
	writeJSON(w, VerifyResponse{Success: true, User: userResponse(user)}, http.StatusOK)
}

// Me handles GET /api/auth/me and returns the authenticated user.
func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if user == nil {
		writeError(w, ErrUnauthorized, http.StatusUnauthorized)
		return
	}
	writeJSON(w, userResponse(user), http.StatusOK)
}

// Logout handles POST /api/auth/logout and expires the session cookie.
// Tokens are stateless, so logout is purely a client-side affair.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, VerifyResponse{Success: true}, http.StatusOK)
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.passkeys.Tokens().TTL().Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func userResponse(user *passkey.User) *UserResponse {
	return &UserResponse{
		ID:    user.ID.String(),
		Email: user.Email,
		Name:  user.Name,
		Phone: user.Phone,
	}
}
