package types

import (
	"io"
	"time"
)

// DefaultAvatarURL is assigned to users that never uploaded an avatar.
const DefaultAvatarURL = "https://thumbs.dreamstime.com/b/default-avatar-profile-icon-vector-social-media-user-image-182145777.jpg"

// User represents an account in the system.
// It contains identity, credential, and audit metadata.
type User struct {
	// ID is the opaque identifier assigned by the user directory.
	ID string `json:"_id" db:"id"`

	// Username is the unique login name, stored trimmed and lowercased.
	Username string `json:"username" db:"username"`

	// Email is the user's unique email address, stored trimmed and lowercased.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// AvatarURL points at the user's avatar image. It falls back to
	// DefaultAvatarURL and is never empty once the user exists.
	AvatarURL string `json:"avatar" db:"avatar_url"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// UserUpdate carries a partial update. Nil fields keep their stored value.
type UserUpdate struct {
	Username     *string
	PasswordHash *string
	AvatarURL    *string
}

// AvatarFile is an uploaded avatar image waiting to be stored.
type AvatarFile struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}
