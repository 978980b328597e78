package uploads

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowed(t *testing.T) {
	cases := []struct {
		filename string
		want     bool
	}{
		{"report.pdf", true},
		{"photo.JPG", true},
		{"archive.tar.gz", false},
		{"song.Mp3", true},
		{"clip.webm", true},
		{"script.exe", false},
		{"noextension", false},
		{"trailingdot.", false},
		{".hidden", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Allowed(tc.filename), tc.filename)
	}
}
