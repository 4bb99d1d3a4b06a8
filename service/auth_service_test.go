package service

import (
	"context"
	"errors"
	"testing"

	"regulaite-backend/models"
	"regulaite-backend/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memoryUserStore struct {
	users map[string]*models.User
	err   error
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{users: map[string]*models.User{}}
}

func (m *memoryUserStore) Create(_ context.Context, user *models.User) error {
	if m.err != nil {
		return m.err
	}
	m.users[user.Username] = user
	return nil
}

func (m *memoryUserStore) GetByUsername(_ context.Context, username string) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[username]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

func TestAuthenticateFixedUsers(t *testing.T) {
	store := newMemoryUserStore()
	hash, err := bcrypt.GenerateFromPassword([]byte("database-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	store.users["analyst"] = &models.User{Username: "analyst", PasswordHash: string(hash)}

	svc := NewAuthService(
		AuthWithFixedUsers(map[string]string{"analyst": "fixed-pass"}),
		AuthWithUserStore(store),
	)
	ctx := context.Background()

	user, err := svc.Authenticate(ctx, " analyst ", "fixed-pass")
	require.NoError(t, err)
	assert.Equal(t, "analyst", user.Username)

	_, err = svc.Authenticate(ctx, "analyst", "database-pass")
	assert.ErrorIs(t, err, ErrInvalidLogin)
}

func TestAuthenticateUserStore(t *testing.T) {
	store := newMemoryUserStore()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	store.users["risk"] = &models.User{Username: "risk", PasswordHash: string(hash)}
	svc := NewAuthService(AuthWithUserStore(store))
	ctx := context.Background()

	user, err := svc.Authenticate(ctx, "risk", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, "risk", user.Username)

	_, err = svc.Authenticate(ctx, "risk", "wrong")
	assert.ErrorIs(t, err, ErrInvalidLogin)
	_, err = svc.Authenticate(ctx, "ghost", "whatever")
	assert.ErrorIs(t, err, ErrInvalidLogin)
	_, err = svc.Authenticate(ctx, "", "")
	assert.ErrorIs(t, err, ErrInvalidLogin)

	store.err = errors.New("connection refused")
	_, err = svc.Authenticate(ctx, "risk", "s3cret-pass")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidLogin)
}

func TestAuthenticateWithoutStore(t *testing.T) {
	svc := NewAuthService()
	_, err := svc.Authenticate(context.Background(), "anyone", "password1")
	assert.ErrorIs(t, err, ErrInvalidLogin)
}

func TestSignup(t *testing.T) {
	store := newMemoryUserStore()
	svc := NewAuthService(
		AuthWithUserStore(store),
		AuthWithSignup(true),
		AuthWithFixedUsers(map[string]string{"admin": "x"}),
	)
	ctx := context.Background()
	assert.True(t, svc.SignupAllowed())

	user, err := svc.Signup(ctx, SignupRequest{Username: "new.user", Password: "long-enough", DisplayName: " New User "})
	require.NoError(t, err)
	require.NotNil(t, user.DisplayName)
	assert.Equal(t, "New User", *user.DisplayName)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("long-enough")))

	_, err = svc.Authenticate(ctx, "new.user", "long-enough")
	assert.NoError(t, err)

	_, err = svc.Signup(ctx, SignupRequest{Username: "new.user", Password: "long-enough"})
	assert.ErrorIs(t, err, ErrUserExists)
	_, err = svc.Signup(ctx, SignupRequest{Username: "admin", Password: "long-enough"})
	assert.ErrorIs(t, err, ErrUserExists)
	_, err = svc.Signup(ctx, SignupRequest{Username: "a b", Password: "long-enough"})
	assert.ErrorIs(t, err, ErrInvalidUsername)
	_, err = svc.Signup(ctx, SignupRequest{Username: "ab", Password: "long-enough"})
	assert.ErrorIs(t, err, ErrInvalidUsername)
	_, err = svc.Signup(ctx, SignupRequest{Username: "valid", Password: "short"})
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestSignupDisabled(t *testing.T) {
	svc := NewAuthService(AuthWithUserStore(newMemoryUserStore()))
	assert.False(t, svc.SignupAllowed())

	_, err := svc.Signup(context.Background(), SignupRequest{Username: "valid", Password: "long-enough"})
	assert.ErrorIs(t, err, ErrSignupDisabled)

	noStore := NewAuthService(AuthWithSignup(true))
	_, err = noStore.Signup(context.Background(), SignupRequest{Username: "valid", Password: "long-enough"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
