package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mzaid0/Nestora/internal/events"
	"github.com/mzaid0/Nestora/internal/logging"
	"github.com/mzaid0/Nestora/internal/store"
	"github.com/mzaid0/Nestora/types"
)

const (
	minUsernameLen = 3
	minPasswordLen = 6

	// bcrypt rejects longer input.
	maxPasswordBytes = 72

	// MaxAvatarSize is the largest accepted avatar upload in bytes.
	MaxAvatarSize = 5 << 20

	provisionAttempts = 5
)

const (
	msgUserExists         = "User already exists"
	msgInvalidCredentials = "Invalid credentials"
	msgUsernameTaken      = "Username already taken"
	msgUserNotFound       = "User not found"
	msgForbiddenUpdate    = "You can only update your own account"
	msgUploadFailed       = "Avatar upload failed"
)

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// Hasher hashes and verifies passwords.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hashed string) bool
}

// TokenIssuer mints session tokens for a user id.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// AvatarStore keeps avatar images in object storage.
type AvatarStore interface {
	Upload(ctx context.Context, file types.AvatarFile) (string, error)
	Delete(ctx context.Context, publicID string) error
	PublicID(avatarURL string) (string, bool)
}

// AuthService implements signup, signin, OAuth provisioning and profile
// updates. It holds no per-request state.
type AuthService struct {
	users   UserRepository
	hasher  Hasher
	tokens  TokenIssuer
	avatars AvatarStore
	events  events.Publisher
	log     logging.Logger

	suffix   func() (string, error)
	password func() (string, error)
}

func NewAuthService(
	users UserRepository,
	hasher Hasher,
	tokens TokenIssuer,
	avatars AvatarStore,
	publisher events.Publisher,
	log logging.Logger,
) *AuthService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &AuthService{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		avatars:  avatars,
		events:   publisher,
		log:      log.With("component", "auth_service"),
		suffix:   randomSuffix,
		password: randomPassword,
	}
}

type SignupInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
}

// Session is a signed-in user together with its session token.
type Session struct {
	User  types.User
	Token string
}

// OAuthProfile is the identity asserted by the OAuth provider.
type OAuthProfile struct {
	Name      string
	Email     string
	AvatarURL string
}

// ProfileUpdate carries the fields a user asked to change. Nil fields are
// left untouched.
type ProfileUpdate struct {
	Username *string
	Password *string
	Avatar   *types.AvatarFile
}

func (s *AuthService) Signup(ctx context.Context, in SignupInput) (types.User, error) {
	username := store.Normalize(in.Username)
	email := store.Normalize(in.Email)
	if err := validateUsername(username); err != nil {
		return types.User{}, err
	}
	if !emailPattern.MatchString(email) {
		return types.User{}, newError(ErrValidation, "A valid email is required")
	}
	if err := validatePassword(in.Password); err != nil {
		return types.User{}, err
	}
	if in.Password != in.ConfirmPassword {
		return types.User{}, newError(ErrValidation, "Passwords do not match")
	}

	_, err := s.users.GetByUsernameOrEmail(ctx, username, email)
	switch {
	case err == nil:
		return types.User{}, newError(ErrConflict, msgUserExists)
	case !errors.Is(err, store.ErrNotFound):
		return types.User{}, fmt.Errorf("check existing user: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, types.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		AvatarURL:    types.DefaultAvatarURL,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return types.User{}, newError(ErrConflict, msgUserExists)
		}
		return types.User{}, err
	}

	s.log.Info(ctx, "user signed up", "user_id", user.ID, "username", user.Username)
	s.publish(ctx, events.UserSignedUp, user)
	return user, nil
}

func (s *AuthService) Signin(ctx context.Context, username, password string) (Session, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return Session{}, newError(ErrValidation, "Username and password are required")
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, newError(ErrUnauthorized, msgInvalidCredentials)
		}
		return Session{}, err
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		s.log.Info(ctx, "signin rejected", "user_id", user.ID)
		return Session{}, newError(ErrUnauthorized, msgInvalidCredentials)
	}

	return s.session(user)
}

// OAuthSignin signs in the user owning profile.Email, creating the account
// on first use. Existing accounts are returned unchanged.
func (s *AuthService) OAuthSignin(ctx context.Context, profile OAuthProfile) (Session, error) {
	email := store.Normalize(profile.Email)
	if !emailPattern.MatchString(email) {
		return Session{}, newError(ErrValidation, "A valid email is required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return s.session(user)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return Session{}, err
	}

	user, err = s.provision(ctx, profile, email)
	if err != nil {
		return Session{}, err
	}
	return s.session(user)
}

func (s *AuthService) provision(ctx context.Context, profile OAuthProfile, email string) (types.User, error) {
	plain, err := s.password()
	if err != nil {
		return types.User{}, fmt.Errorf("generate password: %w", err)
	}
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	avatarURL := strings.TrimSpace(profile.AvatarURL)
	if avatarURL == "" {
		avatarURL = types.DefaultAvatarURL
	}
	base := usernameBase(profile.Name, email)

	for attempt := 1; attempt <= provisionAttempts; attempt++ {
		suffix, err := s.suffix()
		if err != nil {
			return types.User{}, fmt.Errorf("generate username suffix: %w", err)
		}

		user, err := s.users.Create(ctx, types.User{
			Username:     base + suffix,
			Email:        email,
			PasswordHash: hash,
			AvatarURL:    avatarURL,
		})
		switch {
		case err == nil:
			s.log.Info(ctx, "user provisioned from oauth", "user_id", user.ID, "username", user.Username)
			s.publish(ctx, events.UserProvisioned, user)
			return user, nil
		case errors.Is(err, store.ErrDuplicateEmail):
			// Another request provisioned the same email first.
			return s.users.GetByEmail(ctx, email)
		case errors.Is(err, store.ErrDuplicateKey):
			s.log.Warn(ctx, "generated username taken", "username", base+suffix, "attempt", attempt)
		default:
			return types.User{}, err
		}
	}
	return types.User{}, newError(ErrConflict, msgUsernameTaken)
}

// UpdateProfile applies update to targetID on behalf of actorID. A new avatar
// is uploaded before anything is persisted; the previous avatar is removed
// only once the record points at the new one.
func (s *AuthService) UpdateProfile(ctx context.Context, actorID, targetID string, update ProfileUpdate) (types.User, error) {
	if actorID == "" {
		return types.User{}, newError(ErrUnauthorized, "Authentication failed")
	}
	if actorID != targetID {
		return types.User{}, newError(ErrForbidden, msgForbiddenUpdate)
	}

	current, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, newError(ErrNotFound, msgUserNotFound)
		}
		return types.User{}, err
	}

	var fields types.UserUpdate
	if update.Username != nil {
		username := store.Normalize(*update.Username)
		if err := validateUsername(username); err != nil {
			return types.User{}, err
		}
		fields.Username = &username
	}
	if update.Password != nil {
		if err := validatePassword(*update.Password); err != nil {
			return types.User{}, err
		}
		hash, err := s.hasher.Hash(*update.Password)
		if err != nil {
			return types.User{}, fmt.Errorf("hash password: %w", err)
		}
		fields.PasswordHash = &hash
	}
	if update.Avatar != nil {
		if err := validateAvatar(*update.Avatar); err != nil {
			return types.User{}, err
		}
		avatarURL, err := s.avatars.Upload(ctx, *update.Avatar)
		if err != nil {
			s.log.Error(ctx, "avatar upload failed", "user_id", current.ID, "error", err)
			return types.User{}, newError(ErrUploadFailed, msgUploadFailed)
		}
		fields.AvatarURL = &avatarURL
	}

	updated, err := s.users.Update(ctx, current.ID, fields)
	if err != nil {
		if fields.AvatarURL != nil {
			s.discardAvatar(ctx, *fields.AvatarURL)
		}
		switch {
		case errors.Is(err, store.ErrDuplicateKey):
			return types.User{}, newError(ErrConflict, msgUsernameTaken)
		case errors.Is(err, store.ErrNotFound):
			return types.User{}, newError(ErrNotFound, msgUserNotFound)
		}
		return types.User{}, err
	}

	if fields.AvatarURL != nil && current.AvatarURL != updated.AvatarURL {
		s.discardAvatar(ctx, current.AvatarURL)
	}

	s.log.Info(ctx, "profile updated", "user_id", updated.ID,
		"username_changed", fields.Username != nil,
		"password_changed", fields.PasswordHash != nil,
		"avatar_changed", fields.AvatarURL != nil)
	s.publish(ctx, events.UserUpdated, updated)
	return updated, nil
}

func (s *AuthService) session(user types.User) (Session, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{User: user, Token: token}, nil
}

// discardAvatar deletes an avatar owned by the store. Failures are logged.
func (s *AuthService) discardAvatar(ctx context.Context, avatarURL string) {
	publicID, ok := s.avatars.PublicID(avatarURL)
	if !ok {
		return
	}
	if err := s.avatars.Delete(ctx, publicID); err != nil {
		s.log.Warn(ctx, "avatar delete failed", "public_id", publicID, "error", err)
	}
}

func (s *AuthService) publish(ctx context.Context, eventType events.Type, user types.User) {
	if err := s.events.Publish(ctx, events.NewUserEvent(eventType, user)); err != nil {
		s.log.Warn(ctx, "event publish failed", "type", string(eventType), "user_id", user.ID, "error", err)
	}
}

func validateUsername(username string) error {
	if utf8.RuneCountInString(username) < minUsernameLen {
		return newError(ErrValidation, fmt.Sprintf("Username must be at least %d characters", minUsernameLen))
	}
	return nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLen {
		return newError(ErrValidation, fmt.Sprintf("Password must be at least %d characters", minPasswordLen))
	}
	if len(password) > maxPasswordBytes {
		return newError(ErrValidation, fmt.Sprintf("Password must be at most %d bytes", maxPasswordBytes))
	}
	return nil
}

func validateAvatar(file types.AvatarFile) error {
	if !strings.HasPrefix(file.ContentType, "image/") {
		return newError(ErrValidation, "Avatar must be an image")
	}
	if file.Size > MaxAvatarSize {
		return newError(ErrValidation, "Avatar must be 5 MB or smaller")
	}
	return nil
}
