package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mzaid0/Nestora/internal/auth"
	"github.com/mzaid0/Nestora/internal/logging"
	"github.com/mzaid0/Nestora/internal/store"
	"github.com/mzaid0/Nestora/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_Authenticate(t *testing.T) {
	repo := store.NewMemoryUserRepository()
	user, err := repo.Create(context.Background(), types.User{Username: "alice", Email: "alice@x.com"})
	require.NoError(t, err)

	svc := NewUserService(repo, stubTokens{}, logging.Nop())

	got, err := svc.Authenticate(context.Background(), "token-"+user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestUserService_AuthenticateRejections(t *testing.T) {
	repo := store.NewMemoryUserRepository()
	ctx := context.Background()

	tests := []struct {
		name    string
		tokens  stubTokens
		token   string
		message string
	}{
		{name: "missing", token: "", message: "Authentication token is required, Please login first"},
		{name: "invalid", tokens: stubTokens{verifyErr: auth.ErrInvalidToken}, token: "x", message: "Invalid or expired token"},
		{name: "expired", tokens: stubTokens{verifyErr: errors.Join(auth.ErrExpiredToken, errors.New("exp"))}, token: "x", message: "Invalid or expired token"},
		{name: "deleted user", token: "token-gone", message: "Authentication failed"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewUserService(repo, tc.tokens, logging.Nop())

			_, err := svc.Authenticate(ctx, tc.token)
			require.ErrorIs(t, err, ErrUnauthorized)
			assert.Equal(t, tc.message, Message(err))
		})
	}
}

type brokenRepo struct{ UserRepository }

func (brokenRepo) GetByID(context.Context, string) (types.User, error) {
	return types.User{}, fmt.Errorf("get user: %w", errors.New("db down"))
}

func TestUserService_AuthenticateStoreFailure(t *testing.T) {
	svc := NewUserService(brokenRepo{}, stubTokens{}, logging.Nop())

	_, err := svc.Authenticate(context.Background(), "token-abc")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnauthorized))
}
