package store

import (
	"context"
	"sort"
	"sync"

	"geoset/internal/sets"
	"geoset/pkg/platform/sentinel"
)

// Memory is an in-memory store with the same contract as Postgres. It backs
// unit tests and small deployments that don't need durability. The single
// mutex makes every operation atomic, mirroring the one-transaction rule.
type Memory struct {
	mu       sync.RWMutex
	versions map[string][]sets.Version          // set name -> versions ascending
	members  map[string]map[int][]string        // set name -> version -> sorted geoids
	changes  map[string]map[int][]sets.Change   // set name -> version -> change rows
}

// NewMemory constructs an empty in-memory set store.
func NewMemory() *Memory {
	return &Memory{
		versions: make(map[string][]sets.Version),
		members:  make(map[string]map[int][]string),
		changes:  make(map[string]map[int][]sets.Change),
	}
}

func (s *Memory) Current(_ context.Context, name string) (sets.Version, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.versions[name] {
		if v.IsCurrent {
			return v, true, nil
		}
	}
	return sets.Version{}, false, nil
}

func (s *Memory) GetVersion(_ context.Context, name string, version int) (sets.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.versions[name] {
		if v.Version == version {
			return v, nil
		}
	}
	return sets.Version{}, sentinel.ErrNotFound
}

func (s *Memory) Members(_ context.Context, name string, version int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.members[name][version]...), nil
}

func (s *Memory) InsertVersion(_ context.Context, nv NewVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range s.versions[nv.SetName] {
		if v.Version == nv.Version {
			return sentinel.ErrConflict
		}
	}

	chain := s.versions[nv.SetName]
	for i := range chain {
		if chain[i].IsCurrent {
			chain[i].IsCurrent = false
			chain[i].UpdatedAt = nv.CreatedAt
		}
	}
	s.versions[nv.SetName] = append(chain, sets.Version{
		SetName:           nv.SetName,
		Version:           nv.Version,
		Description:       nv.Description,
		CreatedAt:         nv.CreatedAt,
		UpdatedAt:         nv.CreatedAt,
		IsCurrent:         true,
		ParentVersion:     nv.ParentVersion,
		ChangeDescription: nv.ChangeDescription,
	})

	if s.members[nv.SetName] == nil {
		s.members[nv.SetName] = make(map[int][]string)
	}
	snapshot := append([]string{}, nv.Members...)
	sort.Strings(snapshot)
	s.members[nv.SetName][nv.Version] = snapshot

	if s.changes[nv.SetName] == nil {
		s.changes[nv.SetName] = make(map[int][]sets.Change)
	}
	rows := []sets.Change{}
	for _, geoid := range nv.Added {
		rows = append(rows, sets.Change{SetName: nv.SetName, Version: nv.Version, Type: sets.ChangeAdd, GEOID: geoid, ChangedAt: nv.CreatedAt})
	}
	for _, geoid := range nv.Removed {
		rows = append(rows, sets.Change{SetName: nv.SetName, Version: nv.Version, Type: sets.ChangeRemove, GEOID: geoid, ChangedAt: nv.CreatedAt})
	}
	s.changes[nv.SetName][nv.Version] = rows
	return nil
}

func (s *Memory) ListSets(_ context.Context) ([]sets.SetSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := []sets.SetSummary{}
	for name, chain := range s.versions {
		for _, v := range chain {
			if v.IsCurrent {
				summaries = append(summaries, sets.SetSummary{
					Name:        name,
					Description: v.Description,
					Version:     v.Version,
					MemberCount: len(s.members[name][v.Version]),
					CreatedAt:   v.CreatedAt,
					UpdatedAt:   v.UpdatedAt,
				})
			}
		}
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Name < summaries[j].Name })
	return summaries, nil
}

func (s *Memory) ListVersions(_ context.Context, name string) ([]sets.VersionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain := s.versions[name]
	if len(chain) == 0 {
		return nil, sentinel.ErrNotFound
	}

	infos := []sets.VersionInfo{}
	for i := len(chain) - 1; i >= 0; i-- {
		v := chain[i]
		added, removed := 0, 0
		for _, c := range s.changes[name][v.Version] {
			if c.Type == sets.ChangeAdd {
				added++
			} else {
				removed++
			}
		}
		infos = append(infos, sets.VersionInfo{
			Version:           v.Version,
			Description:       v.Description,
			CreatedAt:         v.CreatedAt,
			IsCurrent:         v.IsCurrent,
			ParentVersion:     v.ParentVersion,
			ChangeDescription: v.ChangeDescription,
			MemberCount:       len(s.members[name][v.Version]),
			AddedCount:        added,
			RemovedCount:      removed,
		})
	}
	return infos, nil
}

func (s *Memory) DeleteSet(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.versions[name]
	delete(s.versions, name)
	delete(s.members, name)
	delete(s.changes, name)
	return existed, nil
}

func (s *Memory) ListAllIdentifiers(_ context.Context) ([]sets.IdentifierUsage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byGeoid := make(map[string][]string)
	for name, chain := range s.versions {
		for _, v := range chain {
			if !v.IsCurrent {
				continue
			}
			for _, geoid := range s.members[name][v.Version] {
				byGeoid[geoid] = append(byGeoid[geoid], name)
			}
		}
	}

	usages := []sets.IdentifierUsage{}
	for geoid, names := range byGeoid {
		sort.Strings(names)
		usages = append(usages, sets.IdentifierUsage{GEOID: geoid, SetCount: len(names), SetNames: names})
	}
	sort.Slice(usages, func(i, j int) bool { return usages[i].GEOID < usages[j].GEOID })
	return usages, nil
}

func (s *Memory) WhichSets(_ context.Context, geoid string) ([]sets.SetMembership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	memberships := []sets.SetMembership{}
	for name, chain := range s.versions {
		for _, v := range chain {
			for _, m := range s.members[name][v.Version] {
				if m == geoid {
					memberships = append(memberships, sets.SetMembership{
						SetName:     name,
						Version:     v.Version,
						Description: v.Description,
						IsCurrent:   v.IsCurrent,
					})
				}
			}
		}
	}
	sort.Slice(memberships, func(i, j int) bool {
		if memberships[i].SetName != memberships[j].SetName {
			return memberships[i].SetName < memberships[j].SetName
		}
		return memberships[i].Version > memberships[j].Version
	})
	return memberships, nil
}
