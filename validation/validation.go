package validation

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Add records a violation unless the field already has one.
func (v Violations) Add(field, code string) {
	if _, exists := v[field]; !exists {
		v[field] = code
	}
}

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

// Length checks the trimmed rune count of value against [minLen, maxLen].
func Length(field, value string, minLen, maxLen int, v Violations) {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	switch {
	case n < minLen:
		v[field] = "too_short"
	case n > maxLen:
		v[field] = "too_long"
	}
}

// MaxLength flags values longer than maxLen runes; empty values pass.
func MaxLength(field, value string, maxLen int, v Violations) {
	if utf8.RuneCountInString(value) > maxLen {
		v[field] = "too_long"
	}
}

// RangeInt checks val is within [minVal, maxVal].
func RangeInt(field string, val, minVal, maxVal int, v Violations) {
	if val < minVal || val > maxVal {
		v[field] = "out_of_range"
	}
}

// PositiveDecimal flags amounts that are zero or negative.
func PositiveDecimal(field string, val decimal.Decimal, v Violations) {
	if !val.IsPositive() {
		v[field] = "must_be_positive"
	}
}

// NonNegativeDecimal flags negative amounts.
func NonNegativeDecimal(field string, val decimal.Decimal, v Violations) {
	if val.IsNegative() {
		v[field] = "must_not_be_negative"
	}
}

// OneOf checks value is one of allowed.
func OneOf(field, value string, allowed []string, v Violations) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v[field] = "invalid_choice"
}

// UUID parses value and records "invalid_uuid" on failure.
func UUID(field, value string, v Violations) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		v[field] = "invalid_uuid"
		return uuid.Nil
	}
	return id
}

// OptionalUUID parses value when present; empty input returns nil.
func OptionalUUID(field, value string, v Violations) *uuid.UUID {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	id := UUID(field, value, v)
	if id == uuid.Nil {
		return nil
	}
	return &id
}

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Email performs a light syntax check.
func Email(field, value string, v Violations) {
	if !emailRe.MatchString(strings.TrimSpace(value)) {
		v[field] = "invalid_email"
	}
}

var lastFourRe = regexp.MustCompile(`^[0-9]{4}$`)

// LastFour checks value is exactly four digits.
func LastFour(field, value string, v Violations) {
	if !lastFourRe.MatchString(value) {
		v[field] = "invalid_last_four"
	}
}

// DateLayout is the civil date format accepted by Date.
const DateLayout = "2006-01-02"

// Date parses a YYYY-MM-DD value as UTC midnight.
func Date(field, value string, v Violations) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		v.Add(field, "required")
		return time.Time{}
	}
	t, err := time.ParseInLocation(DateLayout, value, time.UTC)
	if err != nil {
		v.Add(field, "invalid_date")
		return time.Time{}
	}
	return t
}

// OptionalDate parses value when present; empty input returns nil.
func OptionalDate(field, value string, v Violations) *time.Time {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	t := Date(field, value, v)
	if t.IsZero() {
		return nil
	}
	return &t
}
