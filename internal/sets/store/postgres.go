package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"geoset/internal/sets"
	"geoset/pkg/platform/sentinel"
)

// pq error code for unique constraint violations.
const pqUniqueViolation = "23505"

// Postgres persists set version chains in PostgreSQL. Every mutation runs in
// a single transaction; version-number and single-current collisions are
// detected by the primary key and the partial unique index and reported as
// sentinel.ErrConflict.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed set store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const versionColumns = `set_name, version, description, created_at, updated_at, is_current, parent_version, change_description`

func scanVersion(row interface{ Scan(...any) error }) (sets.Version, error) {
	var v sets.Version
	var parent sql.NullInt64
	err := row.Scan(&v.SetName, &v.Version, &v.Description, &v.CreatedAt, &v.UpdatedAt, &v.IsCurrent, &parent, &v.ChangeDescription)
	if err != nil {
		return sets.Version{}, err
	}
	if parent.Valid {
		p := int(parent.Int64)
		v.ParentVersion = &p
	}
	return v, nil
}

// Current returns the current version of a set, reporting absence explicitly
// rather than through an error so callers can branch on create-vs-extend.
func (s *Postgres) Current(ctx context.Context, name string) (sets.Version, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM geo_set_versions WHERE set_name = $1 AND is_current`, name)
	v, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sets.Version{}, false, nil
		}
		return sets.Version{}, false, fmt.Errorf("query current version of %q: %w", name, err)
	}
	return v, true, nil
}

// GetVersion fetches one specific version row.
func (s *Postgres) GetVersion(ctx context.Context, name string, version int) (sets.Version, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM geo_set_versions WHERE set_name = $1 AND version = $2`, name, version)
	v, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sets.Version{}, sentinel.ErrNotFound
		}
		return sets.Version{}, fmt.Errorf("query version %d of %q: %w", version, name, err)
	}
	return v, nil
}

// Members returns the full membership snapshot of one version, sorted.
func (s *Postgres) Members(ctx context.Context, name string, version int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT geoid FROM geo_set_members WHERE set_name = $1 AND version = $2 ORDER BY geoid`, name, version)
	if err != nil {
		return nil, fmt.Errorf("query members of %q v%d: %w", name, version, err)
	}
	defer rows.Close()

	members := []string{}
	for rows.Next() {
		var geoid string
		if err := rows.Scan(&geoid); err != nil {
			return nil, fmt.Errorf("scan member of %q v%d: %w", name, version, err)
		}
		members = append(members, geoid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members of %q v%d: %w", name, version, err)
	}
	return members, nil
}

// InsertVersion applies the version-creation protocol atomically: flip the
// prior current row, insert the version, its change rows, and its member
// rows. Statement order satisfies the foreign keys. Any failure rolls the
// whole version back.
func (s *Postgres) InsertVersion(ctx context.Context, nv NewVersion) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin version insert for %q: %w", nv.SetName, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`UPDATE geo_set_versions SET is_current = false, updated_at = $2 WHERE set_name = $1 AND is_current`,
		nv.SetName, nv.CreatedAt)
	if err != nil {
		return fmt.Errorf("retire current version of %q: %w", nv.SetName, err)
	}

	var parent sql.NullInt64
	if nv.ParentVersion != nil {
		parent = sql.NullInt64{Int64: int64(*nv.ParentVersion), Valid: true}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO geo_set_versions (`+versionColumns+`)
		 VALUES ($1, $2, $3, $4, $4, true, $5, $6)`,
		nv.SetName, nv.Version, nv.Description, nv.CreatedAt, parent, nv.ChangeDescription)
	if err != nil {
		return fmt.Errorf("insert version %d of %q: %w", nv.Version, nv.SetName, asConflict(err))
	}

	for _, batch := range []struct {
		changeType sets.ChangeType
		geoids     []string
	}{
		{sets.ChangeAdd, nv.Added},
		{sets.ChangeRemove, nv.Removed},
	} {
		if len(batch.geoids) == 0 {
			continue
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO geo_set_changes (set_name, version, change_type, geoid, changed_at)
			 SELECT $1, $2, $3, unnest($4::text[]), $5`,
			nv.SetName, nv.Version, string(batch.changeType), pq.Array(batch.geoids), nv.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert %s changes for %q v%d: %w", batch.changeType, nv.SetName, nv.Version, err)
		}
	}

	if len(nv.Members) > 0 {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO geo_set_members (set_name, version, geoid)
			 SELECT $1, $2, unnest($3::text[])`,
			nv.SetName, nv.Version, pq.Array(nv.Members))
		if err != nil {
			return fmt.Errorf("insert members for %q v%d: %w", nv.SetName, nv.Version, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit version %d of %q: %w", nv.Version, nv.SetName, asConflict(err))
	}
	return nil
}

// asConflict surfaces unique violations (version number or single-current
// races) as the conflict sentinel so services can signal a retryable error.
func asConflict(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return fmt.Errorf("%w: %v", sentinel.ErrConflict, err)
	}
	return err
}

// ListSets returns one summary per set, always its current version, by name.
func (s *Postgres) ListSets(ctx context.Context) ([]sets.SetSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.set_name, v.description, v.version, v.created_at, v.updated_at,
		       (SELECT count(*) FROM geo_set_members m
		         WHERE m.set_name = v.set_name AND m.version = v.version)
		  FROM geo_set_versions v
		 WHERE v.is_current
		 ORDER BY v.set_name`)
	if err != nil {
		return nil, fmt.Errorf("query set list: %w", err)
	}
	defer rows.Close()

	summaries := []sets.SetSummary{}
	for rows.Next() {
		var sum sets.SetSummary
		if err := rows.Scan(&sum.Name, &sum.Description, &sum.Version, &sum.CreatedAt, &sum.UpdatedAt, &sum.MemberCount); err != nil {
			return nil, fmt.Errorf("scan set summary: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate set list: %w", err)
	}
	return summaries, nil
}

// ListVersions returns every version of a set, newest first, with change
// counts aggregated per version. ErrNotFound when the set has no versions.
func (s *Postgres) ListVersions(ctx context.Context, name string) ([]sets.VersionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.version, v.description, v.created_at, v.is_current, v.parent_version, v.change_description,
		       (SELECT count(*) FROM geo_set_members m
		         WHERE m.set_name = v.set_name AND m.version = v.version),
		       (SELECT count(*) FROM geo_set_changes c
		         WHERE c.set_name = v.set_name AND c.version = v.version AND c.change_type = 'ADD'),
		       (SELECT count(*) FROM geo_set_changes c
		         WHERE c.set_name = v.set_name AND c.version = v.version AND c.change_type = 'REMOVE')
		  FROM geo_set_versions v
		 WHERE v.set_name = $1
		 ORDER BY v.version DESC`, name)
	if err != nil {
		return nil, fmt.Errorf("query versions of %q: %w", name, err)
	}
	defer rows.Close()

	infos := []sets.VersionInfo{}
	for rows.Next() {
		var info sets.VersionInfo
		var parent sql.NullInt64
		if err := rows.Scan(&info.Version, &info.Description, &info.CreatedAt, &info.IsCurrent, &parent,
			&info.ChangeDescription, &info.MemberCount, &info.AddedCount, &info.RemovedCount); err != nil {
			return nil, fmt.Errorf("scan version of %q: %w", name, err)
		}
		if parent.Valid {
			p := int(parent.Int64)
			info.ParentVersion = &p
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions of %q: %w", name, err)
	}
	if len(infos) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return infos, nil
}

// DeleteSet removes the whole chain atomically, changes first to satisfy
// dependency order. Reports whether anything existed.
func (s *Postgres) DeleteSet(ctx context.Context, name string) (existed bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete of %q: %w", name, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM geo_set_changes WHERE set_name = $1`, name); err != nil {
		return false, fmt.Errorf("delete changes of %q: %w", name, err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM geo_set_members WHERE set_name = $1`, name); err != nil {
		return false, fmt.Errorf("delete members of %q: %w", name, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM geo_set_versions WHERE set_name = $1`, name)
	if err != nil {
		return false, fmt.Errorf("delete versions of %q: %w", name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("count deleted versions of %q: %w", name, err)
	}
	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete of %q: %w", name, err)
	}
	return affected > 0, nil
}

// ListAllIdentifiers aggregates membership across all current versions.
func (s *Postgres) ListAllIdentifiers(ctx context.Context) ([]sets.IdentifierUsage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.geoid,
		       count(DISTINCT m.set_name),
		       array_agg(DISTINCT m.set_name ORDER BY m.set_name)
		  FROM geo_set_members m
		  JOIN geo_set_versions v
		    ON v.set_name = m.set_name AND v.version = m.version AND v.is_current
		 GROUP BY m.geoid
		 ORDER BY m.geoid`)
	if err != nil {
		return nil, fmt.Errorf("query identifier usage: %w", err)
	}
	defer rows.Close()

	usages := []sets.IdentifierUsage{}
	for rows.Next() {
		var u sets.IdentifierUsage
		if err := rows.Scan(&u.GEOID, &u.SetCount, pq.Array(&u.SetNames)); err != nil {
			return nil, fmt.Errorf("scan identifier usage: %w", err)
		}
		usages = append(usages, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identifier usage: %w", err)
	}
	return usages, nil
}

// WhichSets lists every (set, version) containing a GEOID, historical
// versions included, set name ascending then version descending.
func (s *Postgres) WhichSets(ctx context.Context, geoid string) ([]sets.SetMembership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.set_name, m.version, v.description, v.is_current
		  FROM geo_set_members m
		  JOIN geo_set_versions v
		    ON v.set_name = m.set_name AND v.version = m.version
		 WHERE m.geoid = $1
		 ORDER BY m.set_name, m.version DESC`, geoid)
	if err != nil {
		return nil, fmt.Errorf("query sets containing %q: %w", geoid, err)
	}
	defer rows.Close()

	memberships := []sets.SetMembership{}
	for rows.Next() {
		var m sets.SetMembership
		if err := rows.Scan(&m.SetName, &m.Version, &m.Description, &m.IsCurrent); err != nil {
			return nil, fmt.Errorf("scan membership of %q: %w", geoid, err)
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memberships of %q: %w", geoid, err)
	}
	return memberships, nil
}
