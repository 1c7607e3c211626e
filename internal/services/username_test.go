package services

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsernameBase(t *testing.T) {
	tests := []struct {
		name, display, email, want string
	}{
		{name: "spaces removed", display: "Bob Lee", email: "bob@x.com", want: "boblee"},
		{name: "accents folded", display: "José Ñúñez", email: "j@x.com", want: "josenunez"},
		{name: "punctuation dropped", display: "O'Brien-Smith Jr.", email: "o@x.com", want: "obriensmithjr"},
		{name: "falls back to email", display: "李小龙", email: "bruce.lee@x.com", want: "brucelee"},
		{name: "last resort", display: "", email: "@x.com", want: "user"},
		{name: "capped", display: "abcdefghijklmnopqrstuvwxyz0123", email: "a@x.com", want: "abcdefghijklmnopqrstuvwx"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, usernameBase(tc.display, tc.email))
		})
	}
}

func TestRandomSuffix(t *testing.T) {
	pattern := regexp.MustCompile(`^[0-9a-z]{4}$`)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		s, err := randomSuffix()
		require.NoError(t, err)
		assert.Regexp(t, pattern, s)
		seen[s] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestRandomPassword(t *testing.T) {
	a, err := randomPassword()
	require.NoError(t, err)
	b, err := randomPassword()
	require.NoError(t, err)

	assert.Regexp(t, `^[0-9a-f]{32}$`, a)
	assert.NotEqual(t, a, b)
}
