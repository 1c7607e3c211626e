package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/mzaid0/Nestora/internal/events"
	"github.com/mzaid0/Nestora/internal/logging"
	"github.com/mzaid0/Nestora/internal/store"
	"github.com/mzaid0/Nestora/types"
)

type plainHasher struct{}

func (plainHasher) Hash(plaintext string) (string, error) { return "hashed:" + plaintext, nil }
func (plainHasher) Verify(plaintext, hashed string) bool  { return hashed == "hashed:"+plaintext }

type stubTokens struct {
	verifyErr error
}

func (stubTokens) Issue(userID string) (string, error) { return "token-" + userID, nil }

func (s stubTokens) Verify(token string) (string, error) {
	if s.verifyErr != nil {
		return "", s.verifyErr
	}
	id, ok := strings.CutPrefix(token, "token-")
	if !ok {
		return "", errors.New("bad token")
	}
	return id, nil
}

const avatarBase = "https://cdn.test/avatars/"

type fakeAvatars struct {
	mu        sync.Mutex
	uploadErr error
	deleteErr error
	next      int
	stored    map[string]bool
	deleted   []string
}

func newFakeAvatars() *fakeAvatars {
	return &fakeAvatars{stored: make(map[string]bool)}
}

func (f *fakeAvatars) Upload(_ context.Context, file types.AvatarFile) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.next++
	id := "obj" + strconv.Itoa(f.next)
	f.stored[id] = true
	return avatarBase + id, nil
}

func (f *fakeAvatars) Delete(_ context.Context, publicID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, publicID)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.stored, publicID)
	return nil
}

func (f *fakeAvatars) PublicID(avatarURL string) (string, bool) {
	id, ok := strings.CutPrefix(avatarURL, avatarBase)
	return id, ok && id != ""
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.UserEvent
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, event events.UserEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingPublisher) kinds() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// hookedRepo lets tests intercept Create and Update on top of the memory
// repository.
type hookedRepo struct {
	*store.MemoryUserRepository
	beforeCreate func(user types.User) error
	updateErr    error
}

func (h *hookedRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	if h.beforeCreate != nil {
		if err := h.beforeCreate(user); err != nil {
			return types.User{}, err
		}
	}
	return h.MemoryUserRepository.Create(ctx, user)
}

func (h *hookedRepo) Update(ctx context.Context, id string, update types.UserUpdate) (types.User, error) {
	if h.updateErr != nil {
		return types.User{}, h.updateErr
	}
	return h.MemoryUserRepository.Update(ctx, id, update)
}

type fixture struct {
	repo    *hookedRepo
	avatars *fakeAvatars
	events  *recordingPublisher
	auth    *AuthService
}

func newFixture() *fixture {
	repo := &hookedRepo{MemoryUserRepository: store.NewMemoryUserRepository()}
	avatars := newFakeAvatars()
	publisher := &recordingPublisher{}
	svc := NewAuthService(repo, plainHasher{}, stubTokens{}, avatars, publisher, logging.Nop())
	return &fixture{repo: repo, avatars: avatars, events: publisher, auth: svc}
}
