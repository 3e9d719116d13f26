// Package mask redacts customer contact details before they are sent to an
// unattended device.
package mask

import (
	"strings"
	"unicode"
)

const (
	// EmailPlaceholder is returned for empty or malformed addresses.
	EmailPlaceholder = "***@***"
	// PhonePlaceholder is returned when fewer than four digits are present.
	PhonePlaceholder = "***-***-****"

	visibleLocal = 2
	phoneTail    = 4
)

// Email keeps at most the first two characters of the local part and the
// full domain, e.g. "jo***@example.com".
func Email(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return EmailPlaceholder
	}
	local, domain := email[:at], email[at+1:]
	if strings.ContainsAny(domain, "@ \t") {
		return EmailPlaceholder
	}

	runes := []rune(local)
	keep := visibleLocal
	if len(runes) <= keep {
		keep = len(runes) - 1
		if keep < 1 {
			keep = 1
		}
	}
	return string(runes[:keep]) + "***@" + domain
}

// Phone keeps only the last four digits, e.g. "***-***-4567".
func Phone(phone string) string {
	digits := make([]rune, 0, len(phone))
	for _, r := range phone {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			digits = append(digits, r)
		}
	}
	if len(digits) < phoneTail {
		return PhonePlaceholder
	}
	return "***-***-" + string(digits[len(digits)-phoneTail:])
}
