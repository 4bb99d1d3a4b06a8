package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"regulaite-backend/models"
	"regulaite-backend/repository"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// UserStore persists pilot accounts
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// AuthService checks credentials against fixed accounts and the user store
type AuthService struct {
	users       UserStore
	fixed       map[string]string
	allowSignup bool
	logger      *zap.Logger
}

// AuthServiceOption is a functional option for AuthService
type AuthServiceOption func(*AuthService)

// AuthWithUserStore sets the database-backed account store
func AuthWithUserStore(users UserStore) AuthServiceOption {
	return func(s *AuthService) {
		s.users = users
	}
}

// AuthWithFixedUsers sets plain-text username/password pairs that are checked first
func AuthWithFixedUsers(fixed map[string]string) AuthServiceOption {
	return func(s *AuthService) {
		s.fixed = fixed
	}
}

// AuthWithSignup enables self-service sign-up
func AuthWithSignup(allow bool) AuthServiceOption {
	return func(s *AuthService) {
		s.allowSignup = allow
	}
}

// AuthWithLogger sets the logger
func AuthWithLogger(logger *zap.Logger) AuthServiceOption {
	return func(s *AuthService) {
		s.logger = logger
	}
}

// NewAuthService creates a new auth service
func NewAuthService(opts ...AuthServiceOption) *AuthService {
	s := &AuthService{
		fixed:  map[string]string{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignupAllowed reports whether sign-up is enabled
func (s *AuthService) SignupAllowed() bool {
	return s.allowSignup && s.users != nil
}

// Authenticate returns the account for valid credentials, or ErrInvalidLogin
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidLogin
	}

	if expected, ok := s.fixed[username]; ok {
		if subtle.ConstantTimeCompare([]byte(expected), []byte(password)) != 1 {
			return nil, ErrInvalidLogin
		}
		return &models.User{Username: username}, nil
	}

	if s.users == nil {
		return nil, ErrInvalidLogin
	}

	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrInvalidLogin
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidLogin
	}
	return user, nil
}

// SignupRequest represents a request to create an account
type SignupRequest struct {
	Username    string
	Password    string
	DisplayName string
}

// Signup creates a database account with a bcrypt-hashed password
func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (*models.User, error) {
	if !s.allowSignup {
		return nil, ErrSignupDisabled
	}
	if s.users == nil {
		return nil, fmt.Errorf("user store: %w", ErrNotConfigured)
	}

	username := strings.TrimSpace(req.Username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(req.Password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	if _, ok := s.fixed[username]; ok {
		return nil, ErrUserExists
	}
	_, err := s.users.GetByUsername(ctx, username)
	if err == nil {
		return nil, ErrUserExists
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: string(hash),
	}
	if name := strings.TrimSpace(req.DisplayName); name != "" {
		user.DisplayName = &name
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.logger.Info("User signed up", zap.String("username", username))
	return user, nil
}

func validateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < 3 || n > 64 || strings.ContainsAny(username, " \t\n:/\\") {
		return ErrInvalidUsername
	}
	return nil
}
