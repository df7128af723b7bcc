// Package dedupe implements the remote CRM's duplicate-contact rules: two
// contacts are duplicates when they share an email address, or when they
// share a phone number and both first and last names match.
package dedupe

import (
	"strings"
	"unicode"
)

// Confidence levels attached to a match.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
)

// Match reasons.
const (
	ReasonEmail        = "email_match"
	ReasonPhoneAndName = "phone_and_name_match"
)

// Candidate is the probe being checked against existing contacts.
type Candidate struct {
	Email     string
	Phone     string
	FirstName string
	LastName  string
}

// Match pairs a duplicate contact with why it matched.
type Match struct {
	Contact    map[string]any `json:"contact"`
	Reasons    []string       `json:"matchReasons"`
	Confidence string         `json:"confidence"`
}

// Result summarizes a duplicate check.
type Result struct {
	HasDuplicates  bool    `json:"hasDuplicates"`
	DuplicateCount int     `json:"duplicateCount"`
	Duplicates     []Match `json:"duplicates"`
}

// FindDuplicates scans contacts for records matching the candidate under the
// dedup rules. Email matches alone are high confidence; phone+name matches
// are medium.
func FindDuplicates(contacts []map[string]any, c Candidate) Result {
	var matches []Match
	for _, contact := range contacts {
		var reasons []string
		if c.Email != "" && emailMatches(c.Email, contact) {
			reasons = append(reasons, ReasonEmail)
		}
		if c.Phone != "" && c.FirstName != "" && c.LastName != "" &&
			phoneAndNameMatch(c, contact) {
			reasons = append(reasons, ReasonPhoneAndName)
		}
		if len(reasons) == 0 {
			continue
		}
		confidence := ConfidenceMedium
		if len(reasons) > 1 || reasons[0] == ReasonEmail {
			confidence = ConfidenceHigh
		}
		matches = append(matches, Match{Contact: contact, Reasons: reasons, Confidence: confidence})
	}
	return Result{
		HasDuplicates:  len(matches) > 0,
		DuplicateCount: len(matches),
		Duplicates:     matches,
	}
}

func emailMatches(email string, contact map[string]any) bool {
	want := NormalizeEmail(email)
	if want == "" {
		return false
	}
	for _, value := range contactValues(contact, "emails") {
		if NormalizeEmail(value) == want {
			return true
		}
	}
	return false
}

func phoneAndNameMatch(c Candidate, contact map[string]any) bool {
	want := NormalizePhone(c.Phone)
	if want == "" {
		return false
	}
	found := false
	for _, value := range contactValues(contact, "phones") {
		if NormalizePhone(value) == want {
			found = true
			break
		}
	}
	if !found {
		return false
	}
	first, _ := contact["firstName"].(string)
	last, _ := contact["lastName"].(string)
	return NormalizeName(first) == NormalizeName(c.FirstName) &&
		NormalizeName(last) == NormalizeName(c.LastName)
}

// contactValues extracts the "value" strings from a contact's emails or
// phones list.
func contactValues(contact map[string]any, key string) []string {
	arr, ok := contact[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			if v, ok := m["value"].(string); ok {
				out = append(out, v)
			}
		}
	}
	return out
}

// NormalizePhone strips formatting and a leading US/Canada country code so
// "+1 (555) 010-2030" and "5550102030" compare equal.
func NormalizePhone(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	s := digits.String()
	if len(s) == 11 && s[0] == '1' {
		s = s[1:]
	}
	return s
}

// NormalizeEmail lowercases and trims.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeName lowercases, trims, and collapses interior whitespace.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
