// Package domain holds the lead model and the pure rules the delivery
// coordinator applies to it: normalization, exclusion and merging.
package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Source identifies where a lead in a response came from.
type Source string

const (
	SourceCache Source = "cache"
	SourceLive  Source = "live"
)

// Lead is a discovered profile with its contact emails. Two leads with the
// same ID are the same entity regardless of source.
type Lead struct {
	ID        string
	Username  string
	FullName  string
	Biography string
	Followers *int64
	Category  string
	Emails    []string
}

// EmailCount is the number of billable addresses on the lead.
func (l Lead) EmailCount() int {
	return len(l.Emails)
}

// Redacted returns a copy without contact data.
func (l Lead) Redacted() Lead {
	l.Emails = []string{}
	return l
}

// NormalizeEmails trims, lowercases and deduplicates addresses, dropping
// anything that is not shaped like local@domain. Order of first occurrence is kept.
func NormalizeEmails(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, e := range raw {
		email := strings.ToLower(strings.TrimSpace(e))
		email = strings.TrimPrefix(email, "mailto:")
		if !looksLikeEmail(email) {
			continue
		}
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		out = append(out, email)
	}
	return out
}

func looksLikeEmail(s string) bool {
	at := strings.IndexByte(s, '@')
	if at <= 0 || at != strings.LastIndexByte(s, '@') || at == len(s)-1 {
		return false
	}
	if strings.ContainsFunc(s, unicode.IsSpace) {
		return false
	}
	return strings.Contains(s[at+1:], ".")
}

// NormalizeUsername strips a leading "@" and lowercases the handle.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "@"))
}

// NormalizeQuery applies NFKC folding, trims, and collapses internal whitespace.
// Fullwidth and ligature forms then match their ASCII equivalents in the cache.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(q)), " ")
}

// NormalizeLead returns l with normalized emails and username and trimmed text fields.
func NormalizeLead(l Lead) Lead {
	l.ID = strings.TrimSpace(l.ID)
	l.Username = strings.TrimPrefix(strings.TrimSpace(l.Username), "@")
	l.FullName = strings.TrimSpace(l.FullName)
	l.Category = strings.TrimSpace(l.Category)
	l.Biography = strings.TrimSpace(l.Biography)
	l.Emails = NormalizeEmails(l.Emails)
	if l.Followers != nil && *l.Followers < 0 {
		l.Followers = nil
	}
	return l
}
