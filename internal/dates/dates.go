// Package dates turns fuzzy, human date expressions ("last 7 days", "this
// month") into absolute filter predicates the remote API understands.
package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Op is a comparison operator in a date predicate.
type Op string

// Predicate operators.
const (
	After  Op = ">"
	Before Op = "<"
	On     Op = "="
)

// Predicate is a normalized (operator, absolute date) pair usable directly
// as a filter value. Constructed per request, never stored.
type Predicate struct {
	Op   Op
	Date time.Time
}

// String renders the predicate in the remote's filter syntax: ">2025-10-24",
// "<2025-08-02", or a bare date for exact-day equality.
func (p Predicate) String() string {
	if p.Op == On {
		return p.Date.Format("2006-01-02")
	}
	return string(p.Op) + p.Date.Format("2006-01-02")
}

// ParseError reports an expression the normalizer does not recognize. The
// caller decides whether to treat it as fatal or drop the filter.
type ParseError struct {
	Expr string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("dates: unrecognized date expression %q", e.Expr)
}

var (
	relativeRe = regexp.MustCompile(`^(\d+)\s+(day|week|month|year)s?$`)
	rawRe      = regexp.MustCompile(`^([<>])?\s*(\d{4}-\d{2}-\d{2})$`)
)

// Normalize converts a date expression into a predicate relative to now.
// Recognized forms, case-insensitive:
//
//	"last N days|weeks|months|years"     -> after now minus N units
//	"older than N days|weeks|months|..." -> before now minus N units
//	"today"                              -> after start of today
//	"yesterday"                          -> exact-day equality on yesterday
//	"this week" / "this month" / "this year" -> after start of period
//	">2024-01-01", "<2024-12-31", "2024-10-31" -> passed through
//
// Anything beyond a bare date, such as a full timestamp, is a ParseError
// rather than being silently truncated.
func Normalize(expr string, now time.Time) (Predicate, error) {
	s := strings.ToLower(strings.TrimSpace(expr))

	switch s {
	case "today":
		return Predicate{Op: After, Date: startOfDay(now)}, nil
	case "yesterday":
		return Predicate{Op: On, Date: startOfDay(now).AddDate(0, 0, -1)}, nil
	case "this week":
		// Weeks start on Monday.
		monday := startOfDay(now).AddDate(0, 0, -((int(now.Weekday()) + 6) % 7))
		return Predicate{Op: After, Date: monday}, nil
	case "this month":
		return Predicate{Op: After, Date: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())}, nil
	case "this year":
		return Predicate{Op: After, Date: time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())}, nil
	}

	if rest, ok := strings.CutPrefix(s, "last "); ok {
		date, err := subtractRelative(now, rest, expr)
		if err != nil {
			return Predicate{}, err
		}
		return Predicate{Op: After, Date: date}, nil
	}
	if rest, ok := strings.CutPrefix(s, "older than "); ok {
		date, err := subtractRelative(now, rest, expr)
		if err != nil {
			return Predicate{}, err
		}
		return Predicate{Op: Before, Date: date}, nil
	}

	if m := rawRe.FindStringSubmatch(strings.TrimSpace(expr)); m != nil {
		date, err := time.ParseInLocation("2006-01-02", m[2], now.Location())
		if err != nil {
			return Predicate{}, &ParseError{Expr: expr}
		}
		op := On
		switch m[1] {
		case ">":
			op = After
		case "<":
			op = Before
		}
		return Predicate{Op: op, Date: date}, nil
	}

	return Predicate{}, &ParseError{Expr: expr}
}

func subtractRelative(now time.Time, rest, original string) (time.Time, error) {
	m := relativeRe.FindStringSubmatch(strings.TrimSpace(rest))
	if m == nil {
		return time.Time{}, &ParseError{Expr: original}
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, &ParseError{Expr: original}
	}
	switch m[2] {
	case "day":
		return now.AddDate(0, 0, -n), nil
	case "week":
		return now.AddDate(0, 0, -7*n), nil
	case "month":
		return addMonthsClamped(now, -n), nil
	case "year":
		return addMonthsClamped(now, -12*n), nil
	}
	return time.Time{}, &ParseError{Expr: original}
}

// addMonthsClamped shifts t by months, clamping to the last valid day of the
// target month instead of letting day overflow roll into the next one
// (Mar 31 minus one month is Feb 28, not Mar 3).
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month := t.Year(), int(t.Month())-1+months
	year += month / 12
	month = month % 12
	if month < 0 {
		month += 12
		year--
	}
	target := time.Month(month + 1)
	day := t.Day()
	if last := daysIn(year, target); day > last {
		day = last
	}
	return time.Date(year, target, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
