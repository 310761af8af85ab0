package notify

import (
	"strings"
	"unicode"

	"github.com/duka-erp/duka-erp/internal/shared"
)

// NormalizePhone converts a raw phone number to international form. A
// leading zero is replaced with the default country code (e.g. 0712...
// becomes +255712...); bare digit strings get a plus prepended.
func NormalizePhone(raw, countryCode string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) || r == '+' {
			b.WriteRune(r)
		}
	}
	phone := b.String()
	switch {
	case phone == "":
		return "", &shared.ValidationError{Field: "phone", Reason: "empty phone number"}
	case strings.HasPrefix(phone, "+"):
	case strings.HasPrefix(phone, "0"):
		phone = countryCode + phone[1:]
	default:
		phone = "+" + phone
	}
	if len(phone) < 10 {
		return "", &shared.ValidationError{Field: "phone", Reason: "phone number too short"}
	}
	return phone, nil
}
