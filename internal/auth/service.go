package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

const (
	MaxNameLength     = 50
	MinPasswordLength = 6
)

type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is what a successful register or login hands back.
type Session struct {
	Token string
	User  core.User
}

type Service struct {
	users  storage.UserStore
	tokens *Tokens
	cost   int
	now    func() time.Time
	logger *log.Logger
}

func NewService(users storage.UserStore, tokens *Tokens, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Discard()
	}
	return &Service{
		users:  users,
		tokens: tokens,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
		logger: logger.WithComponent(log.ComponentAuth),
	}
}

func (r Registration) normalize() (Registration, error) {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = normalizeEmail(r.Email)

	ve := &core.ValidationError{}
	switch n := utf8.RuneCountInString(r.Name); {
	case n == 0:
		ve.Add("name", "name is required")
	case n > MaxNameLength:
		ve.Add("name", "name cannot exceed 50 characters")
	}
	if !validEmail(r.Email) {
		ve.Add("email", "please provide a valid email")
	}
	if len(r.Password) < MinPasswordLength {
		ve.Add("password", "password must be at least 6 characters")
	}
	return r, ve.Err()
}

func (s *Service) Register(ctx context.Context, in Registration) (Session, error) {
	in, err := in.normalize()
	if err != nil {
		return Session{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, core.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		return Session{}, err
	}

	s.logger.InfoContext(ctx, "User registered", log.FieldOwner, user.ID)
	return s.session(user)
}

func (s *Service) Login(ctx context.Context, in Credentials) (Session, error) {
	email := normalizeEmail(in.Email)
	ve := &core.ValidationError{}
	if !validEmail(email) {
		ve.Add("email", "please provide a valid email")
	}
	if in.Password == "" {
		ve.Add("password", "password is required")
	}
	if err := ve.Err(); err != nil {
		return Session{}, err
	}

	user, err := s.users.UserByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)) != nil {
		s.logger.WarnContext(ctx, "Failed login attempt", log.FieldOwner, user.ID)
		return Session{}, ErrInvalidCredentials
	}
	return s.session(user)
}

// Authenticate resolves a bearer token to its user. Tokens of deleted users
// are rejected like any other invalid token.
func (s *Service) Authenticate(ctx context.Context, token string) (core.User, error) {
	id, err := s.tokens.Verify(token)
	if err != nil {
		return core.User{}, err
	}
	user, err := s.users.UserByID(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, ErrInvalidToken
	}
	return user, err
}

func (s *Service) session(u core.User) (Session, error) {
	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, User: u}, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
