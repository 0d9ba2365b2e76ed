// Package repository reads the profile cache populated by the ingestion pipeline.
package repository

import (
	"context"
	"strings"

	"leadgen_backend/internal/leads/domain"
	"leadgen_backend/internal/leads/ports"
	"leadgen_backend/platform/sanitize"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Any one field matching qualifies. Emails-first, then follower count; ig_id
// keeps the order stable between calls.
const searchCacheQuery = `
SELECT ig_id, username, full_name, biography, followers, category, emails
FROM ig_profiles
WHERE (
        username ILIKE $1 ESCAPE '\'
     OR full_name ILIKE $1 ESCAPE '\'
     OR category ILIKE $1 ESCAPE '\'
     OR biography ILIKE $1 ESCAPE '\'
  )
  AND NOT (ig_id = ANY($2::text[]))
  AND NOT (lower(username) = ANY($3::text[]))
ORDER BY (cardinality(emails) > 0) DESC, followers DESC NULLS LAST, ig_id
LIMIT $4`

// Repository is the Postgres-backed cache store.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a cache repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SearchCache implements ports.CacheStore.
func (r *Repository) SearchCache(ctx context.Context, query string, exclude *domain.ExclusionSet, limit int) ([]domain.Lead, error) {
	excludedIDs := []string{}
	excludedUsernames := []string{}
	if exclude != nil {
		excludedIDs = exclude.IDs()
		excludedUsernames = exclude.Usernames()
	}

	rows, err := r.pool.Query(ctx, searchCacheQuery, likePattern(query), excludedIDs, excludedUsernames, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLeads(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanLeads(rows rowScanner) ([]domain.Lead, error) {
	leads := make([]domain.Lead, 0)
	for rows.Next() {
		var (
			l         domain.Lead
			followers *int64
			emails    []string
		)
		if err := rows.Scan(&l.ID, &l.Username, &l.FullName, &l.Biography, &followers, &l.Category, &emails); err != nil {
			return nil, err
		}
		l.Followers = followers
		l.Emails = emails
		l.FullName = sanitize.Text(l.FullName)
		l.Biography = sanitize.Text(l.Biography)
		l.Category = sanitize.Text(l.Category)
		leads = append(leads, domain.NormalizeLead(l))
	}
	return leads, rows.Err()
}

// likePattern wraps q for a substring ILIKE match with wildcards escaped.
func likePattern(q string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(q) + "%"
}

var _ ports.CacheStore = (*Repository)(nil)
