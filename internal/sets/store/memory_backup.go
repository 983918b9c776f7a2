package store

import (
	"context"
	"sort"

	"geoset/internal/sets"
	"geoset/pkg/platform/sentinel"
)

// Dump and restore support mirroring the postgres implementation, in
// primary-key order so backups of equal state compare equal.

func (s *Memory) DumpVersions(_ context.Context) ([]sets.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := []sets.Version{}
	for _, name := range s.sortedNames() {
		versions = append(versions, s.versions[name]...)
	}
	return versions, nil
}

func (s *Memory) DumpMembers(_ context.Context) ([]sets.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := []sets.Member{}
	for _, name := range s.sortedNames() {
		for _, v := range s.versions[name] {
			for _, geoid := range s.members[name][v.Version] {
				members = append(members, sets.Member{SetName: name, Version: v.Version, GEOID: geoid})
			}
		}
	}
	return members, nil
}

func (s *Memory) DumpChanges(_ context.Context) ([]sets.Change, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	changes := []sets.Change{}
	for _, name := range s.sortedNames() {
		for _, v := range s.versions[name] {
			rows := append([]sets.Change{}, s.changes[name][v.Version]...)
			sort.Slice(rows, func(i, j int) bool { return rows[i].GEOID < rows[j].GEOID })
			changes = append(changes, rows...)
		}
	}
	return changes, nil
}

func (s *Memory) RestoreAll(_ context.Context, versions []sets.Version, members []sets.Member, changes []sets.Change, overwrite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if overwrite {
		s.versions = make(map[string][]sets.Version)
		s.members = make(map[string]map[int][]string)
		s.changes = make(map[string]map[int][]sets.Change)
	}

	type pair struct {
		name    string
		version int
	}
	inserted := make(map[pair]bool, len(versions))

	// Check the single-current invariant before mutating anything, so a
	// conflicting restore leaves the store untouched like a rolled-back
	// transaction would.
	hasCurrent := make(map[string]bool)
	for name, chain := range s.versions {
		for _, v := range chain {
			if v.IsCurrent {
				hasCurrent[name] = true
			}
		}
	}
	for _, v := range versions {
		if s.pairExists(v.SetName, v.Version) || inserted[pair{v.SetName, v.Version}] {
			continue
		}
		if v.IsCurrent {
			if hasCurrent[v.SetName] {
				return sentinel.ErrConflict
			}
			hasCurrent[v.SetName] = true
		}
		inserted[pair{v.SetName, v.Version}] = true
	}

	for _, v := range versions {
		if !inserted[pair{v.SetName, v.Version}] || s.pairExists(v.SetName, v.Version) {
			continue
		}
		s.versions[v.SetName] = append(s.versions[v.SetName], v)
		if s.members[v.SetName] == nil {
			s.members[v.SetName] = make(map[int][]string)
		}
		s.members[v.SetName][v.Version] = []string{}
		if s.changes[v.SetName] == nil {
			s.changes[v.SetName] = make(map[int][]sets.Change)
		}
	}

	for name := range s.versions {
		chain := s.versions[name]
		sort.Slice(chain, func(i, j int) bool { return chain[i].Version < chain[j].Version })
		s.versions[name] = chain
	}

	for _, m := range members {
		if inserted[pair{m.SetName, m.Version}] {
			s.members[m.SetName][m.Version] = append(s.members[m.SetName][m.Version], m.GEOID)
		}
	}
	for name, byVersion := range s.members {
		for version := range byVersion {
			sort.Strings(s.members[name][version])
		}
	}

	for _, c := range changes {
		if inserted[pair{c.SetName, c.Version}] {
			s.changes[c.SetName][c.Version] = append(s.changes[c.SetName][c.Version], c)
		}
	}
	return nil
}

func (s *Memory) pairExists(name string, version int) bool {
	for _, v := range s.versions[name] {
		if v.Version == version {
			return true
		}
	}
	return false
}

func (s *Memory) sortedNames() []string {
	names := make([]string, 0, len(s.versions))
	for name := range s.versions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
