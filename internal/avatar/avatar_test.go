package avatar

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashEmailNormalizes(t *testing.T) {
	assert.Equal(t, HashEmail("User@Example.COM"), HashEmail("user@example.com"))
	assert.Equal(t, HashEmail("  user@example.com "), HashEmail("user@example.com"))
	assert.Len(t, HashEmail("user@example.com"), 32)
}

func TestURLDefaults(t *testing.T) {
	url := URL("abc123", 100, "", "")
	assert.Equal(t, "https://secure.gravatar.com/avatar/abc123?s=100&d=identicon&r=g", url)
}
