package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sa1dev/regeester/internal/forms"
	"github.com/sa1dev/regeester/pkg/metrics"
)

// formID extracts and parses the {formID} URL parameter.
func formID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "formID"))
	if err != nil {
		return uuid.Nil, ErrInvalidRequest
	}
	return id, nil
}

// clientIP resolves the submitting client's address, honoring proxy headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.IndexByte(xff, ','); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return xff
	}
	return r.RemoteAddr
}

// ListForms handles GET /api/forms
func (s *Server) ListForms(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	out, err := s.forms.List(r.Context(), user.ID)
	if err != nil {
		handleError(w, err)
		return
	}
	if out == nil {
		out = []*forms.Form{}
	}
	writeJSON(w, out, http.StatusOK)
}

// CreateForm handles POST /api/forms
func (s *Server) CreateForm(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var in forms.FormInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErrorWithMessage(w, ErrInvalidRequest, "invalid request body", http.StatusBadRequest)
		return
	}

	form, err := s.forms.Create(r.Context(), user.ID, in)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, form, http.StatusCreated)
}

// GetForm handles GET /api/forms/{formID}
func (s *Server) GetForm(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	id, err := formID(r)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}

	form, err := s.forms.Get(r.Context(), user.ID, id)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, form, http.StatusOK)
}

// UpdateForm handles PUT /api/forms/{formID}
func (s *Server) UpdateForm(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	id, err := formID(r)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}

	var in forms.FormInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErrorWithMessage(w, ErrInvalidRequest, "invalid request body", http.StatusBadRequest)
		return
	}

	form, err := s.forms.Update(r.Context(), user.ID, id, in)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, form, http.StatusOK)
}

// DeleteForm handles DELETE /api/forms/{formID}
func (s *Server) DeleteForm(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	id, err := formID(r)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}

	if err := s.forms.Delete(r.Context(), user.ID, id); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PublishForm handles POST /api/forms/{formID}/publish
func (s *Server) PublishForm(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	id, err := formID(r)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}

	var req PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorWithMessage(w, ErrInvalidRequest, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.forms.SetPublished(r.Context(), user.ID, id, req.Published); err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, PublishRequest{Published: req.Published}, http.StatusOK)
}

// FormResponses handles GET /api/forms/{formID}/responses
func (s *Server) FormResponses(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	id, err := formID(r)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}

	subs, err := s.forms.Responses(r.Context(), user.ID, id)
	if err != nil {
		handleError(w, err)
		return
	}
	if subs == nil {
		subs = []*forms.Submission{}
	}
	writeJSON(w, subs, http.StatusOK)
}

// ExportResponses handles GET /api/forms/{formID}/export and streams CSV.
func (s *Server) ExportResponses(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	id, err := formID(r)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "responses-"+id.String()+".csv"))

	if err := s.forms.ExportCSV(r.Context(), user.ID, id, w); err != nil {
		// Headers may already be out; log and drop the connection state.
		s.logger.Error("csv export failed", "form", id, "error", err)
	}
}

// Dashboard handles GET /api/dashboard
func (s *Server) Dashboard(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	stats, err := s.forms.Dashboard(r.Context(), user.ID)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, stats, http.StatusOK)
}

// PublicForm handles GET /api/public/forms/{formID}
func (s *Server) PublicForm(w http.ResponseWriter, r *http.Request) {
	id, err := formID(r)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}

	form, err := s.forms.PublicForm(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, form, http.StatusOK)
}

// SubmitForm handles POST /api/public/forms/{formID}/submissions
func (s *Server) SubmitForm(w http.ResponseWriter, r *http.Request) {
	id, err := formID(r)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorWithMessage(w, ErrInvalidRequest, "invalid request body", http.StatusBadRequest)
		return
	}

	sub, err := s.forms.Submit(r.Context(), id, req.Answers, forms.SubmissionMeta{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		handleError(w, err)
		return
	}

	metrics.RecordSubmission()
	writeJSON(w, SubmitResponse{Success: true, SubmissionID: sub.ID.String()}, http.StatusCreated)
}
