package services

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	usernameSuffixLen  = 4
	usernameBaseMaxLen = 24
	base36             = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// usernameBase turns a display name into a lowercase alphanumeric handle,
// folding accents ("José" becomes "jose"). When nothing usable remains the
// local part of email is tried, then "user".
func usernameBase(name, email string) string {
	if base := alphanumeric(name); base != "" {
		return base
	}
	local, _, _ := strings.Cut(email, "@")
	if base := alphanumeric(local); base != "" {
		return base
	}
	return "user"
}

func alphanumeric(s string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		if b.Len() >= usernameBaseMaxLen {
			break
		}
		if ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// randomSuffix returns usernameSuffixLen random base36 characters.
func randomSuffix() (string, error) {
	out := make([]byte, 0, usernameSuffixLen)
	buf := make([]byte, usernameSuffixLen*2)
	for len(out) < usernameSuffixLen {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, c := range buf {
			// 252 is the largest multiple of 36 below 256.
			if c >= 252 || len(out) == usernameSuffixLen {
				continue
			}
			out = append(out, base36[int(c)%len(base36)])
		}
	}
	return string(out), nil
}

// randomPassword returns 32 hex characters from crypto/rand.
func randomPassword() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
