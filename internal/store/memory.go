package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mzaid0/Nestora/types"
)

// MemoryUserRepository keeps users in process memory. Uniqueness of
// username and email is checked and committed under one lock, mirroring the
// unique indexes of the Postgres schema.
type MemoryUserRepository struct {
	mu         sync.RWMutex
	byID       map[string]types.User
	byUsername map[string]string
	byEmail    map[string]string
	now        func() time.Time
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:       make(map[string]types.User),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
		now:        time.Now,
	}
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryUserRepository) GetByUsername(_ context.Context, username string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.lookup(r.byUsername, Normalize(username))
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.lookup(r.byEmail, Normalize(email))
}

func (r *MemoryUserRepository) GetByUsernameOrEmail(_ context.Context, username, email string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if user, err := r.lookup(r.byUsername, Normalize(username)); err == nil {
		return user, nil
	}
	return r.lookup(r.byEmail, Normalize(email))
}

func (r *MemoryUserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	user.Username = Normalize(user.Username)
	user.Email = Normalize(user.Email)
	if strings.TrimSpace(user.AvatarURL) == "" {
		user.AvatarURL = types.DefaultAvatarURL
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byUsername[user.Username]; exists {
		return types.User{}, ErrDuplicateUsername
	}
	if _, exists := r.byEmail[user.Email]; exists {
		return types.User{}, ErrDuplicateEmail
	}

	now := r.now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now

	r.byID[user.ID] = user
	r.byUsername[user.Username] = user.ID
	r.byEmail[user.Email] = user.ID
	return user, nil
}

func (r *MemoryUserRepository) Update(_ context.Context, id string, update types.UserUpdate) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return types.User{}, ErrNotFound
	}

	if update.Username != nil {
		username := Normalize(*update.Username)
		if owner, exists := r.byUsername[username]; exists && owner != id {
			return types.User{}, ErrDuplicateUsername
		}
		delete(r.byUsername, user.Username)
		user.Username = username
		r.byUsername[username] = id
	}
	if update.PasswordHash != nil {
		user.PasswordHash = *update.PasswordHash
	}
	if update.AvatarURL != nil {
		user.AvatarURL = *update.AvatarURL
	}
	user.UpdatedAt = r.now().UTC()

	r.byID[id] = user
	return user, nil
}

// Count returns the number of stored users.
func (r *MemoryUserRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byID)
}

func (r *MemoryUserRepository) lookup(index map[string]string, key string) (types.User, error) {
	id, ok := index[key]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return r.byID[id], nil
}
