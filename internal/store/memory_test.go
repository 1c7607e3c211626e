package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/mzaid0/Nestora/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUserRepository_CreateAndLookup(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, types.User{Username: " Alice", Email: "Alice@X.com", PasswordHash: "h"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, types.DefaultAvatarURL, created.AvatarURL)
	assert.False(t, created.CreatedAt.IsZero())

	byName, err := repo.GetByUsername(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)

	byEmail, err := repo.GetByEmail(ctx, "alice@x.com ")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	either, err := repo.GetByUsernameOrEmail(ctx, "nobody", "alice@x.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, either.ID)

	_, err = repo.GetByID(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryUserRepository_Duplicates(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	_, err := repo.Create(ctx, types.User{Username: "alice", Email: "alice@x.com"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, types.User{Username: "ALICE", Email: "other@x.com"})
	assert.True(t, errors.Is(err, ErrDuplicateUsername))

	_, err = repo.Create(ctx, types.User{Username: "other", Email: "alice@x.com"})
	assert.True(t, errors.Is(err, ErrDuplicateEmail))
	assert.True(t, errors.Is(err, ErrDuplicateKey))
	assert.Equal(t, 1, repo.Count())
}

func TestMemoryUserRepository_ConcurrentCreateSameUsername(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Create(ctx, types.User{Username: "racer", Email: fmt.Sprintf("racer%d@x.com", i)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, ErrDuplicateKey), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, repo.Count())
}

func TestMemoryUserRepository_UpdatePartial(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	alice, err := repo.Create(ctx, types.User{Username: "alice", Email: "alice@x.com", PasswordHash: "h1"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, types.User{Username: "bob", Email: "bob@x.com", PasswordHash: "h2"})
	require.NoError(t, err)

	renamed := "Alicia"
	updated, err := repo.Update(ctx, alice.ID, types.UserUpdate{Username: &renamed})
	require.NoError(t, err)
	assert.Equal(t, "alicia", updated.Username)
	assert.Equal(t, "h1", updated.PasswordHash)
	assert.Equal(t, types.DefaultAvatarURL, updated.AvatarURL)

	_, err = repo.GetByUsername(ctx, "alice")
	assert.True(t, errors.Is(err, ErrNotFound))

	taken := "bob"
	_, err = repo.Update(ctx, alice.ID, types.UserUpdate{Username: &taken})
	assert.True(t, errors.Is(err, ErrDuplicateUsername))

	same := "alicia"
	_, err = repo.Update(ctx, alice.ID, types.UserUpdate{Username: &same})
	assert.NoError(t, err)

	_, err = repo.Update(ctx, "missing", types.UserUpdate{})
	assert.True(t, errors.Is(err, ErrNotFound))
}
