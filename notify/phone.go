// Package notify delivers best-effort WhatsApp messages on a background
// worker pool.
package notify

import (
	"errors"
	"strings"
)

// DefaultCountryCode is prefixed to ten-digit local numbers
const DefaultCountryCode = "91"

var ErrInvalidPhone = errors.New("notify: phone number has no digits")

// FormatPhoneNumber normalizes raw into "whatsapp:+<digits>", adding
// countryCode when the number is a bare ten-digit local number.
func FormatPhoneNumber(raw, countryCode string) (string, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "whatsapp:"))
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}

	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return "", ErrInvalidPhone
	}

	switch {
	case strings.HasPrefix(raw, "+"):
	case strings.HasPrefix(digits, "00"):
		digits = digits[2:]
	case len(digits) == 11 && digits[0] == '0':
		digits = countryCode + digits[1:]
	case len(digits) <= 10:
		digits = countryCode + digits
	}
	return "whatsapp:+" + digits, nil
}
