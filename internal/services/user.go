package services

import (
	"context"
	"errors"

	"github.com/mzaid0/Nestora/internal/auth"
	"github.com/mzaid0/Nestora/internal/logging"
	"github.com/mzaid0/Nestora/internal/store"
	"github.com/mzaid0/Nestora/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByUsernameOrEmail(ctx context.Context, username, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, id string, update types.UserUpdate) (types.User, error)
}

// TokenVerifier resolves a session token to the user id it was issued for.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// UserService resolves sessions and reads users.
type UserService struct {
	repo   UserRepository
	tokens TokenVerifier
	log    logging.Logger
}

func NewUserService(repo UserRepository, tokens TokenVerifier, log logging.Logger) *UserService {
	return &UserService{repo: repo, tokens: tokens, log: log.With("component", "user_service")}
}

// Authenticate verifies a session token and loads its user. Every rejection
// is ErrUnauthorized; the reason is only logged.
func (s *UserService) Authenticate(ctx context.Context, token string) (types.User, error) {
	if token == "" {
		return types.User{}, newError(ErrUnauthorized, "Authentication token is required, Please login first")
	}

	userID, err := s.tokens.Verify(token)
	if err != nil {
		reason := "invalid"
		if errors.Is(err, auth.ErrExpiredToken) {
			reason = "expired"
		}
		s.log.Info(ctx, "session token rejected", "reason", reason)
		return types.User{}, newError(ErrUnauthorized, "Invalid or expired token")
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.log.Info(ctx, "session user no longer exists", "user_id", userID)
			return types.User{}, newError(ErrUnauthorized, "Authentication failed")
		}
		return types.User{}, err
	}
	return user, nil
}
