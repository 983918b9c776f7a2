package regions

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// PostgresStore reads and loads the geo_regions reference table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed region store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Missing returns the subset of geoids absent from the reference table.
// One round trip via an unnest anti-join.
func (s *PostgresStore) Missing(ctx context.Context, geoids []string) ([]string, error) {
	if len(geoids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT candidate
		  FROM unnest($1::text[]) AS candidate
		 WHERE NOT EXISTS (SELECT 1 FROM geo_regions g WHERE g.geoid = candidate)
		 ORDER BY candidate`, pq.Array(geoids))
	if err != nil {
		return nil, fmt.Errorf("check region universe: %w", err)
	}
	defer rows.Close()

	missing := []string{}
	for rows.Next() {
		var geoid string
		if err := rows.Scan(&geoid); err != nil {
			return nil, fmt.Errorf("scan missing region: %w", err)
		}
		missing = append(missing, geoid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate missing regions: %w", err)
	}
	return missing, nil
}

// Load upserts reference rows. Used by the one-time ingestion step; re-runs
// refresh names in place.
func (s *PostgresStore) Load(ctx context.Context, rows []Region) error {
	if len(rows) == 0 {
		return nil
	}
	geoids := make([]string, len(rows))
	names := make([]string, len(rows))
	states := make([]string, len(rows))
	for i, r := range rows {
		geoids[i] = r.GEOID
		names[i] = r.Name
		states[i] = r.StateFIPS
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO geo_regions (geoid, name, state_fips)
		SELECT unnest($1::text[]), unnest($2::text[]), unnest($3::text[])
		ON CONFLICT (geoid) DO UPDATE SET
			name = EXCLUDED.name,
			state_fips = EXCLUDED.state_fips`,
		pq.Array(geoids), pq.Array(names), pq.Array(states))
	if err != nil {
		return fmt.Errorf("load regions batch: %w", err)
	}
	return nil
}

// Count reports how many reference rows are loaded.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM geo_regions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count regions: %w", err)
	}
	return n, nil
}
