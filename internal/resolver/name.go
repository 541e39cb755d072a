package resolver

import (
	"strings"
	"unicode"

	"eduops.app/relay/internal/model"
)

const (
	phoneLabelPrefix = "Cliente "
	// UnidentifiedLabel is returned when a subscriber has neither a name nor a phone.
	UnidentifiedLabel = "Cliente sem identificação"
)

// Values the platform stores when a template variable was never filled.
var namePlaceholders = map[string]struct{}{
	"null":      {},
	"undefined": {},
	"none":      {},
	"nil":       {},
	"n/a":       {},
	"-":         {},
	"sem nome":  {},
}

// ResolveName derives the display name of a subscriber. It is pure: the same
// record always yields the same label, and it never returns "".
//
// Order: full_name, "first_name last_name", first_name, a label built from
// the last four phone digits, and finally UnidentifiedLabel. The free-form
// name field is not consulted. Names are trimmed and otherwise passed through
// untouched, repeated words included.
func ResolveName(sub model.Subscriber) string {
	if full := usable(sub.FullName); full != "" {
		return full
	}

	first := usable(sub.FirstName)
	last := usable(sub.LastName)
	if first != "" && last != "" {
		return first + " " + last
	}
	if first != "" {
		return first
	}

	if digits := lastDigits(sub.Phone, 4); digits != "" {
		return phoneLabelPrefix + digits
	}
	return UnidentifiedLabel
}

func usable(s *string) string {
	if s == nil {
		return ""
	}
	v := strings.TrimSpace(*s)
	if v == "" || isPlaceholder(v) {
		return ""
	}
	return v
}

func isPlaceholder(v string) bool {
	if _, ok := namePlaceholders[strings.ToLower(v)]; ok {
		return true
	}
	// Unrendered template such as "{{first_name}}".
	return strings.HasPrefix(v, "{{") && strings.HasSuffix(v, "}}")
}

func lastDigits(phone string, n int) string {
	digits := make([]rune, 0, len(phone))
	for _, r := range phone {
		if unicode.IsDigit(r) {
			digits = append(digits, r)
		}
	}
	if len(digits) > n {
		digits = digits[len(digits)-n:]
	}
	return string(digits)
}
