package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"geoset/internal/sets"
)

// Dump and restore support for the backup codec. Dumps walk every row of the
// three relations, all sets and all versions, in primary-key order so that
// backups of identical state are byte-identical.

func (s *Postgres) DumpVersions(ctx context.Context) ([]sets.Version, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+versionColumns+` FROM geo_set_versions ORDER BY set_name, version`)
	if err != nil {
		return nil, fmt.Errorf("dump versions: %w", err)
	}
	defer rows.Close()

	versions := []sets.Version{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dumped version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dumped versions: %w", err)
	}
	return versions, nil
}

func (s *Postgres) DumpMembers(ctx context.Context) ([]sets.Member, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT set_name, version, geoid FROM geo_set_members ORDER BY set_name, version, geoid`)
	if err != nil {
		return nil, fmt.Errorf("dump members: %w", err)
	}
	defer rows.Close()

	members := []sets.Member{}
	for rows.Next() {
		var m sets.Member
		if err := rows.Scan(&m.SetName, &m.Version, &m.GEOID); err != nil {
			return nil, fmt.Errorf("scan dumped member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dumped members: %w", err)
	}
	return members, nil
}

func (s *Postgres) DumpChanges(ctx context.Context) ([]sets.Change, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT set_name, version, change_type, geoid, changed_at FROM geo_set_changes ORDER BY set_name, version, geoid`)
	if err != nil {
		return nil, fmt.Errorf("dump changes: %w", err)
	}
	defer rows.Close()

	changes := []sets.Change{}
	for rows.Next() {
		var c sets.Change
		var changeType string
		if err := rows.Scan(&c.SetName, &c.Version, &changeType, &c.GEOID, &c.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan dumped change: %w", err)
		}
		c.Type = sets.ChangeType(changeType)
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dumped changes: %w", err)
	}
	return changes, nil
}

// RestoreAll reinserts dumped rows verbatim, preserving version numbers and
// change records. With overwrite the three tables are wiped first; without
// it, version pairs that already exist are skipped wholesale, member and
// change rows included, which makes re-running the same restore a no-op.
// The entire restore is one transaction.
func (s *Postgres) RestoreAll(ctx context.Context, versions []sets.Version, members []sets.Member, changes []sets.Change, overwrite bool) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin restore: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if overwrite {
		for _, table := range []string{"geo_set_changes", "geo_set_members", "geo_set_versions"} {
			if _, err = tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return fmt.Errorf("clear %s before restore: %w", table, err)
			}
		}
	}

	type pair struct {
		name    string
		version int
	}
	inserted := make(map[pair]bool, len(versions))

	for _, v := range versions {
		var parent sql.NullInt64
		if v.ParentVersion != nil {
			parent = sql.NullInt64{Int64: int64(*v.ParentVersion), Valid: true}
		}
		// A plain ON CONFLICT DO NOTHING on the primary key would still trip
		// the single-current unique index for a duplicate current row, so the
		// existence check runs inside the insert instead.
		res, execErr := tx.ExecContext(ctx,
			`INSERT INTO geo_set_versions (`+versionColumns+`)
			 SELECT $1, $2, $3, $4, $5, $6, $7, $8
			 WHERE NOT EXISTS (
			       SELECT 1 FROM geo_set_versions
			        WHERE set_name = $1 AND version = $2)`,
			v.SetName, v.Version, v.Description, v.CreatedAt, v.UpdatedAt, v.IsCurrent, parent, v.ChangeDescription)
		if execErr != nil {
			err = fmt.Errorf("restore version %d of %q: %w", v.Version, v.SetName, asConflict(execErr))
			return err
		}
		affected, affErr := res.RowsAffected()
		if affErr != nil {
			err = fmt.Errorf("restore version %d of %q: %w", v.Version, v.SetName, affErr)
			return err
		}
		inserted[pair{v.SetName, v.Version}] = affected > 0
	}

	memberSets := make(map[pair][]string)
	for _, m := range members {
		p := pair{m.SetName, m.Version}
		if inserted[p] {
			memberSets[p] = append(memberSets[p], m.GEOID)
		}
	}
	for p, geoids := range memberSets {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO geo_set_members (set_name, version, geoid)
			 SELECT $1, $2, unnest($3::text[])`,
			p.name, p.version, pq.Array(geoids)); err != nil {
			return fmt.Errorf("restore members of %q v%d: %w", p.name, p.version, err)
		}
	}

	for _, c := range changes {
		p := pair{c.SetName, c.Version}
		if !inserted[p] {
			continue
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO geo_set_changes (set_name, version, change_type, geoid, changed_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			c.SetName, c.Version, string(c.Type), c.GEOID, c.ChangedAt); err != nil {
			return fmt.Errorf("restore change %s/%s of %q v%d: %w", c.Type, c.GEOID, c.SetName, c.Version, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit restore: %w", asConflict(err))
	}
	return nil
}
