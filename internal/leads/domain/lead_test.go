package domain

import (
	"reflect"
	"testing"
)

func TestNormalizeEmails(t *testing.T) {
	got := NormalizeEmails([]string{
		"  Owner@Bakery.NL ",
		"owner@bakery.nl",
		"mailto:info@shop.com",
		"not-an-email",
		"two@@ats.com",
		"",
		"spaced out@x.com",
		"nodot@localhost",
	})
	want := []string{"owner@bakery.nl", "info@shop.com"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NormalizeEmails = %v, want %v", got, want)
	}
}

func TestNormalizeQuery(t *testing.T) {
	if got := NormalizeQuery("  ｂａｋｅｒｙ \t amsterdam  "); got != "bakery amsterdam" {
		t.Fatalf("unexpected normalized query %q", got)
	}
}

func TestExclusionSetMatchesIDOrUsername(t *testing.T) {
	set := NewExclusionSet([]string{"111"})
	set.AddHint("@Some.Shop")

	cases := []struct {
		lead Lead
		want bool
	}{
		{Lead{ID: "111"}, true},
		{Lead{ID: "222", Username: "some.shop"}, true},
		{Lead{ID: "333", Username: "other"}, false},
		{Lead{ID: "444"}, false},
	}
	for _, tc := range cases {
		if got := set.Excludes(tc.lead); got != tc.want {
			t.Fatalf("Excludes(%+v) = %v, want %v", tc.lead, got, tc.want)
		}
	}
}

func TestMergeCachePrecedenceAndCap(t *testing.T) {
	cache := []Lead{
		{ID: "a", Username: "cache-a", Emails: []string{"a@x.com"}},
		{ID: "b", Username: "cache-b"},
	}
	live := []Lead{
		{ID: "a", Username: "live-a", Emails: []string{"other@x.com"}},
		{ID: "c", Username: "live-c"},
		{ID: "d", Username: "live-d"},
		{ID: "e", Username: "live-e"},
	}

	merged := Merge(cache, live, NewExclusionSet(nil), 4)

	if len(merged.Leads) != 4 {
		t.Fatalf("expected 4 leads, got %d", len(merged.Leads))
	}
	if merged.Leads[0].Username != "cache-a" {
		t.Fatalf("expected cache copy of a to win, got %q", merged.Leads[0].Username)
	}
	if merged.CacheUsed != 2 || merged.LiveUsed != 2 {
		t.Fatalf("unexpected breakdown cache=%d live=%d", merged.CacheUsed, merged.LiveUsed)
	}
	ids := []string{merged.Leads[0].ID, merged.Leads[1].ID, merged.Leads[2].ID, merged.Leads[3].ID}
	if !reflect.DeepEqual(ids, []string{"a", "b", "c", "d"}) {
		t.Fatalf("unexpected order %v", ids)
	}
}

func TestMergeDropsExcludedLiveLeads(t *testing.T) {
	exclude := NewExclusionSet([]string{"delivered"})
	exclude.AddHint("known_handle")

	live := []Lead{
		{ID: "delivered"},
		{ID: "x", Username: "Known_Handle"},
		{ID: "fresh"},
		{ID: ""},
	}

	merged := Merge(nil, live, exclude, 10)
	if len(merged.Leads) != 1 || merged.Leads[0].ID != "fresh" {
		t.Fatalf("expected only fresh lead, got %+v", merged.Leads)
	}
}

func TestRedactAllKeepsProfileFields(t *testing.T) {
	in := []Lead{{ID: "a", Username: "shop", Emails: []string{"a@x.com"}}}
	out := RedactAll(in)

	if len(out[0].Emails) != 0 || out[0].Username != "shop" {
		t.Fatalf("unexpected redaction %+v", out[0])
	}
	if len(in[0].Emails) != 1 {
		t.Fatal("input must not be modified")
	}
}
