package http

import (
	"net/http"
	"strings"

	"fintrack/internal/auth"
	"fintrack/internal/log"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in auth.Registration
	if err := decodeJSON(w, r, &in); err != nil {
		s.badBody(w, err)
		return
	}
	sess, err := s.auth.Register(r.Context(), in)
	if err != nil {
		s.writeError(w, r, "register", err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{Success: true, Token: sess.Token, User: sess.User})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in auth.Credentials
	if err := decodeJSON(w, r, &in); err != nil {
		s.badBody(w, err)
		return
	}
	sess, err := s.auth.Login(r.Context(), in)
	if err != nil {
		s.writeError(w, r, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Success: true, Token: sess.Token, User: sess.User})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())
	writeJSON(w, http.StatusOK, sessionResponse{Success: true, User: user})
}

// requireAuth resolves the bearer token to a user and stores it in the
// request context. A missing or bad token is a 401.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeFailure(w, http.StatusUnauthorized, "Not authorized, no token")
			return
		}

		user, err := s.auth.Authenticate(r.Context(), token)
		if err != nil {
			// writeError turns ErrInvalidToken into a 401; a store outage
			// stays a 500.
			s.writeError(w, r, "authenticate", err)
			return
		}

		ctx := auth.WithUser(r.Context(), user)
		logger := log.FromContext(ctx).With(log.FieldOwner, user.ID)
		next.ServeHTTP(w, r.WithContext(log.NewContext(ctx, logger)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
