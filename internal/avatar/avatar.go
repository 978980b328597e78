// Package avatar builds gravatar-style avatar URLs keyed by a content hash of
// the user's email address.
package avatar

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

const baseURL = "https://secure.gravatar.com/avatar"

// HashEmail returns the avatar hash for an email address. The hash is stored
// on the user record and recomputed whenever the address changes.
func HashEmail(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

// URL formats the avatar image URL for a stored hash.
func URL(hash string, size int, fallback, rating string) string {
	if fallback == "" {
		fallback = "identicon"
	}
	if rating == "" {
		rating = "g"
	}
	return fmt.Sprintf("%s/%s?s=%d&d=%s&r=%s", baseURL, hash, size, fallback, rating)
}
