package auth

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// asciiFold strips combining marks so accented display names survive the
// character filter below ("José Álvarez" -> "Jose Alvarez").
var asciiFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// deriveUsername builds a display label for accounts created via Google
// login, which carry no user-chosen username. The provider display name is
// preferred; the local part of the email is the fallback.
func deriveUsername(name, email string) string {
	if u := sanitizeUsername(name); u != "" {
		return u
	}
	local := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		local = email[:at]
	}
	if u := sanitizeUsername(local); u != "" {
		return u
	}
	return "user"
}

func sanitizeUsername(s string) string {
	folded, _, err := transform.String(asciiFold, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	lastDot := true // no leading separator
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDot = false
		case r == ' ', r == '.', r == '_', r == '-':
			if !lastDot {
				b.WriteByte('.')
				lastDot = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), ".")
}
