package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/mzaid0/Nestora/types"
)

const (
	// AvatarPrefix is the key prefix of every avatar object.
	AvatarPrefix       = "avatars/"
	avatarCacheControl = "public, max-age=31536000, immutable"
)

var errInvalidPublicID = errors.New("invalid avatar public id")

// AvatarStore uploads avatar images and maps them to public URLs.
type AvatarStore struct {
	backend ObjectStorage
	baseURL string
	newID   func() string
}

// NewAvatarStore serves objects of backend under publicBaseURL, which is the
// address the bucket is reachable at from browsers.
func NewAvatarStore(backend ObjectStorage, publicBaseURL string) *AvatarStore {
	return &AvatarStore{
		backend: backend,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		newID:   uuid.NewString,
	}
}

// Upload stores the file under a fresh key and returns its public URL.
func (s *AvatarStore) Upload(ctx context.Context, file types.AvatarFile) (string, error) {
	if file.Content == nil {
		return "", errors.New("avatar content is empty")
	}

	id := s.newID()
	if err := s.backend.Put(ctx, AvatarPrefix+id, file.Content, file.Size, file.ContentType); err != nil {
		return "", fmt.Errorf("put avatar %s: %w", id, err)
	}
	return s.baseURL + "/" + AvatarPrefix + id, nil
}

// Delete removes the avatar with the given public id.
func (s *AvatarStore) Delete(ctx context.Context, publicID string) error {
	if publicID == "" || strings.ContainsAny(publicID, "/\\") || publicID == "." || publicID == ".." {
		return errInvalidPublicID
	}
	if err := s.backend.Delete(ctx, AvatarPrefix+publicID); err != nil {
		return fmt.Errorf("delete avatar %s: %w", publicID, err)
	}
	return nil
}

// PublicID returns the public id of avatarURL and whether the URL points at
// an object owned by this store. Placeholder and third-party URLs are not.
func (s *AvatarStore) PublicID(avatarURL string) (string, bool) {
	if !strings.HasPrefix(avatarURL, s.baseURL+"/"+AvatarPrefix) {
		return "", false
	}
	id := PublicIDFromURL(avatarURL)
	return id, id != ""
}

// PublicIDFromURL is the last path segment of rawURL without its extension.
func PublicIDFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return ""
	}
	base := path.Base(u.Path)
	if base == "/" || base == "." {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}
