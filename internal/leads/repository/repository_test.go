package repository

import (
	"errors"
	"strings"
	"testing"
)

func TestSearchCacheQueryShape(t *testing.T) {
	query := strings.ToLower(searchCacheQuery)

	requiredFragments := []string{
		"username ilike $1",
		"category ilike $1",
		"biography ilike $1",
		"not (ig_id = any($2::text[]))",
		"not (lower(username) = any($3::text[]))",
		"order by (cardinality(emails) > 0) desc, followers desc nulls last",
		"limit $4",
	}

	for _, fragment := range requiredFragments {
		if !strings.Contains(query, fragment) {
			t.Fatalf("expected query fragment %q to be present", fragment)
		}
	}
}

func TestLikePatternEscapesWildcards(t *testing.T) {
	cases := map[string]string{
		"bakery":     "%bakery%",
		"100%":       `%100\%%`,
		"my_shop":    `%my\_shop%`,
		`back\slash`: `%back\\slash%`,
	}
	for in, want := range cases {
		if got := likePattern(in); got != want {
			t.Fatalf("likePattern(%q) = %q, want %q", in, got, want)
		}
	}
}

type fakeRows struct {
	data [][]any
	i    int
	err  error
}

func (f *fakeRows) Next() bool {
	f.i++
	return f.i <= len(f.data)
}

func (f *fakeRows) Scan(dest ...any) error {
	row := f.data[f.i-1]
	*(dest[0].(*string)) = row[0].(string)
	*(dest[1].(*string)) = row[1].(string)
	*(dest[2].(*string)) = row[2].(string)
	*(dest[3].(*string)) = row[3].(string)
	*(dest[4].(**int64)) = row[4].(*int64)
	*(dest[5].(*string)) = row[5].(string)
	*(dest[6].(*[]string)) = row[6].([]string)
	return nil
}

func (f *fakeRows) Err() error { return f.err }

func TestScanLeadsNormalizesAndSanitizes(t *testing.T) {
	followers := int64(1200)
	rows := &fakeRows{data: [][]any{
		{"1", "@Bakery", "Bakery <b>Ams</b>", "Fresh bread &amp; cake", &followers, "Food", []string{" Info@Bakery.nl ", "info@bakery.nl"}},
	}}

	leads, err := scanLeads(rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(leads) != 1 {
		t.Fatalf("expected 1 lead, got %d", len(leads))
	}
	l := leads[0]
	if l.Username != "Bakery" || l.FullName != "Bakery Ams" || l.Biography != "Fresh bread & cake" {
		t.Fatalf("unexpected sanitized lead %+v", l)
	}
	if len(l.Emails) != 1 || l.Emails[0] != "info@bakery.nl" {
		t.Fatalf("unexpected emails %v", l.Emails)
	}
	if l.Followers == nil || *l.Followers != 1200 {
		t.Fatalf("unexpected followers %v", l.Followers)
	}
}

func TestScanLeadsReturnsRowsError(t *testing.T) {
	rows := &fakeRows{err: errors.New("conn closed")}
	if _, err := scanLeads(rows); err == nil {
		t.Fatal("expected rows error")
	}
}
