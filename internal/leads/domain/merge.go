package domain

// Merged is a merge result with per-source counts.
type Merged struct {
	Leads     []Lead
	CacheUsed int
	LiveUsed  int
}

// Merge concatenates cache then live leads, keeps the first occurrence of
// each ID, drops live leads that hit the exclusion set (the upstream may not
// honour it) and truncates to limit.
func Merge(cache, live []Lead, exclude *ExclusionSet, limit int) Merged {
	out := Merged{Leads: make([]Lead, 0, min(limit, len(cache)+len(live)))}
	seen := make(map[string]struct{}, len(cache)+len(live))

	take := func(leads []Lead, source Source) {
		for _, l := range leads {
			if len(out.Leads) >= limit {
				return
			}
			if l.ID == "" {
				continue
			}
			if _, dup := seen[l.ID]; dup {
				continue
			}
			if exclude != nil && exclude.Excludes(l) {
				continue
			}
			seen[l.ID] = struct{}{}
			out.Leads = append(out.Leads, l)
			if source == SourceCache {
				out.CacheUsed++
			} else {
				out.LiveUsed++
			}
		}
	}

	take(cache, SourceCache)
	take(live, SourceLive)
	return out
}

// RedactAll strips contact data from every lead.
func RedactAll(leads []Lead) []Lead {
	out := make([]Lead, len(leads))
	for i, l := range leads {
		out[i] = l.Redacted()
	}
	return out
}
