// Package email derives presentable defaults from an address at
// registration time.
package email

import (
	"strings"
	"unicode"
)

// separator marks a boundary inside the local part of an address.
func separator(r rune) bool {
	return r == '.' || r == '_' || r == '-' || r == '+'
}

// DeriveNameFromEmail splits the local part of an address on common
// separators and title-cases the outermost pieces into a first/last name
// pair. "ann.b.smith@x" yields ("Ann", "Smith"); a single piece or an
// empty local part falls back to "User" for the missing half.
func DeriveNameFromEmail(email string) (first, last string) {
	local := email
	if at := strings.IndexByte(email, '@'); at >= 0 {
		local = email[:at]
	}

	pieces := strings.FieldsFunc(local, separator)
	switch len(pieces) {
	case 0:
		return "User", "User"
	case 1:
		return title(pieces[0]), "User"
	default:
		return title(pieces[0]), title(pieces[len(pieces)-1])
	}
}

func title(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
