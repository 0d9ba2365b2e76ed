package domain

import "strings"

// ExclusionSet is the set of leads a search must not return: the user's
// delivery history plus caller-supplied hints.
type ExclusionSet struct {
	ids       map[string]struct{}
	usernames map[string]struct{}
}

// NewExclusionSet builds a set from delivered lead IDs.
func NewExclusionSet(deliveredIDs []string) *ExclusionSet {
	s := &ExclusionSet{
		ids:       make(map[string]struct{}, len(deliveredIDs)),
		usernames: make(map[string]struct{}),
	}
	for _, id := range deliveredIDs {
		s.AddID(id)
	}
	return s
}

// AddID excludes a lead by identifier.
func (s *ExclusionSet) AddID(id string) {
	id = strings.TrimSpace(id)
	if id != "" {
		s.ids[id] = struct{}{}
	}
}

// AddHint excludes a caller-supplied value that may be an identifier or a
// username. It is recorded as both; hints only ever widen the set.
func (s *ExclusionSet) AddHint(hint string) {
	s.AddID(hint)
	if u := NormalizeUsername(hint); u != "" {
		s.usernames[u] = struct{}{}
	}
}

// Excludes reports whether lead is in the set by ID or username.
func (s *ExclusionSet) Excludes(lead Lead) bool {
	if _, ok := s.ids[lead.ID]; ok {
		return true
	}
	if lead.Username == "" {
		return false
	}
	_, ok := s.usernames[NormalizeUsername(lead.Username)]
	return ok
}

// IDs returns the excluded identifiers in no particular order.
func (s *ExclusionSet) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	return out
}

// Usernames returns the excluded, normalized usernames.
func (s *ExclusionSet) Usernames() []string {
	out := make([]string, 0, len(s.usernames))
	for u := range s.usernames {
		out = append(out, u)
	}
	return out
}

// Len is the number of excluded identifiers.
func (s *ExclusionSet) Len() int {
	return len(s.ids)
}
