package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/query"
)

type (
	dataResponse struct {
		Success bool `json:"success"`
		Data    any  `json:"data"`
	}

	listResponse struct {
		Success    bool             `json:"success"`
		Data       any              `json:"data"`
		Pagination query.Pagination `json:"pagination"`
	}

	messageResponse struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}

	sessionResponse struct {
		Success bool      `json:"success"`
		Token   string    `json:"token,omitempty"`
		User    core.User `json:"user"`
	}

	errorResponse struct {
		Success bool              `json:"success"`
		Error   string            `json:"error"`
		Errors  []core.FieldError `json:"errors,omitempty"`
	}
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, dataResponse{Success: true, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeError maps err onto the API's status codes. Anything unrecognised is
// a 500 whose detail stays in the server log.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Validation failed", Errors: ve.Fields})
	case errors.Is(err, core.ErrNotFound):
		writeFailure(w, http.StatusNotFound, "Transaction not found")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeFailure(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, auth.ErrInvalidToken):
		writeFailure(w, http.StatusUnauthorized, "Not authorized, token failed")
	case errors.Is(err, core.ErrEmailTaken):
		writeFailure(w, http.StatusConflict, "User already exists")
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.NewFields().
				WithOperation(op).
				WithError(err).
				ToSlice()...)
		writeFailure(w, http.StatusInternalServerError, "Server error")
	}
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	writeFailure(w, http.StatusTooManyRequests, "Too many requests, please try again later")
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeFailure(w, http.StatusNotFound, "Route not found")
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeFailure(w, http.StatusMethodNotAllowed, "Method not allowed")
}
