// Package recurrence evaluates recurrence rules over civil dates.
//
// Rules are RFC 5545 RRULE values ("FREQ=MONTHLY;INTERVAL=2", optionally
// prefixed with "RRULE:") or one of the aliases daily, weekly, biweekly,
// monthly, quarterly and yearly. Every rule is anchored at the template's
// start date. Monthly aliases starting after the 28th clamp to the last day
// of shorter months instead of skipping them.
package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// ErrInvalidRule is wrapped by every parse failure.
var ErrInvalidRule = errors.New("invalid recurrence rule")

// Aliases accepted in place of an RRULE.
const (
	Daily     = "daily"
	Weekly    = "weekly"
	Biweekly  = "biweekly"
	Monthly   = "monthly"
	Quarterly = "quarterly"
	Yearly    = "yearly"
)

// Date truncates t to midnight UTC of its calendar day.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD civil date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, strings.TrimSpace(s), time.UTC)
}

// Rule is a parsed rule anchored at a start date.
type Rule struct {
	raw   string
	start time.Time
	r     *rrule.RRule
}

// Parse builds a Rule from raw anchored at start.
func Parse(raw string, start time.Time) (*Rule, error) {
	start = Date(start)
	opt, err := options(raw, start)
	if err != nil {
		return nil, err
	}
	opt.Dtstart = start
	switch opt.Freq {
	case rrule.YEARLY, rrule.MONTHLY, rrule.WEEKLY, rrule.DAILY:
	default:
		return nil, fmt.Errorf("%w: frequency below one day", ErrInvalidRule)
	}
	if !opt.Until.IsZero() {
		opt.Until = Date(opt.Until)
	}
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return &Rule{raw: raw, start: start, r: r}, nil
}

// Validate reports whether raw parses, using an arbitrary anchor.
func Validate(raw string) error {
	_, err := Parse(raw, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))
	return err
}

func options(raw string, start time.Time) (*rrule.ROption, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidRule)
	}
	if rule, ok := alias(strings.ToLower(s), start); ok {
		s = rule
	}
	if len(s) >= 6 && strings.EqualFold(s[:6], "RRULE:") {
		s = s[6:]
	}
	s = strings.ToUpper(s)
	if !strings.Contains(s, "FREQ=") {
		return nil, fmt.Errorf("%w: FREQ is required", ErrInvalidRule)
	}
	opt, err := rrule.StrToROption(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return opt, nil
}

func alias(name string, start time.Time) (string, bool) {
	switch name {
	case Daily:
		return "FREQ=DAILY", true
	case Weekly:
		return "FREQ=WEEKLY", true
	case Biweekly:
		return "FREQ=WEEKLY;INTERVAL=2", true
	case Monthly:
		return "FREQ=MONTHLY" + clampMonthDay(start), true
	case Quarterly:
		return "FREQ=MONTHLY;INTERVAL=3" + clampMonthDay(start), true
	case Yearly:
		if start.Month() == time.February && start.Day() == 29 {
			return "FREQ=YEARLY;BYMONTH=2;BYMONTHDAY=29,-1;BYSETPOS=1", true
		}
		return "FREQ=YEARLY", true
	}
	return "", false
}

// clampMonthDay picks the start day, or the last day when the month is shorter.
func clampMonthDay(start time.Time) string {
	if start.Day() <= 28 {
		return ""
	}
	return fmt.Sprintf(";BYMONTHDAY=%d,-1;BYSETPOS=1", start.Day())
}

// String returns the rule as given to Parse.
func (r *Rule) String() string { return r.raw }

// Start returns the anchor date.
func (r *Rule) Start() time.Time { return r.start }

// First returns the first occurrence on or after the start date.
func (r *Rule) First() (time.Time, bool) {
	return r.OnOrAfter(r.start)
}

// OnOrAfter returns the first occurrence on or after t.
func (r *Rule) OnOrAfter(t time.Time) (time.Time, bool) {
	return found(r.r.After(Date(t), true))
}

// Next returns the first occurrence strictly after t.
func (r *Rule) Next(t time.Time) (time.Time, bool) {
	return found(r.r.After(Date(t), false))
}

// Between returns the occurrences in [from, to], at most limit of them.
func (r *Rule) Between(from, to time.Time, limit int) []time.Time {
	var out []time.Time
	t, ok := r.OnOrAfter(from)
	for ok && !t.After(Date(to)) && len(out) < limit {
		out = append(out, t)
		t, ok = r.Next(t)
	}
	return out
}

func found(t time.Time) (time.Time, bool) {
	if t.IsZero() {
		return time.Time{}, false
	}
	return Date(t), true
}

// Advance returns the occurrence of rule (anchored at start) that follows from.
// ok is false when the rule is exhausted.
func Advance(rule string, start, from time.Time) (next time.Time, ok bool, err error) {
	r, err := Parse(rule, start)
	if err != nil {
		return time.Time{}, false, err
	}
	next, ok = r.Next(from)
	return next, ok, nil
}

// Ended reports whether t falls after end. A nil end never ends.
func Ended(t time.Time, end *time.Time) bool {
	return end != nil && Date(t).After(Date(*end))
}
