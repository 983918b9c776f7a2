// Package store persists versioned set chains.
//
// The postgres implementation is production storage; the memory implementation
// backs unit tests. Both return pkg/platform/sentinel errors for resource
// facts and leave domain-error translation to the service layer.
package store

import (
	"context"
	"time"

	"geoset/internal/sets"
)

// Store is the full persistence contract for versioned set chains. Postgres
// and Memory implement it; MemberCache decorates it.
type Store interface {
	Current(ctx context.Context, name string) (sets.Version, bool, error)
	GetVersion(ctx context.Context, name string, version int) (sets.Version, error)
	Members(ctx context.Context, name string, version int) ([]string, error)
	InsertVersion(ctx context.Context, nv NewVersion) error
	ListSets(ctx context.Context) ([]sets.SetSummary, error)
	ListVersions(ctx context.Context, name string) ([]sets.VersionInfo, error)
	DeleteSet(ctx context.Context, name string) (bool, error)
	ListAllIdentifiers(ctx context.Context) ([]sets.IdentifierUsage, error)
	WhichSets(ctx context.Context, geoid string) ([]sets.SetMembership, error)

	DumpVersions(ctx context.Context) ([]sets.Version, error)
	DumpMembers(ctx context.Context) ([]sets.Member, error)
	DumpChanges(ctx context.Context) ([]sets.Change, error)
	RestoreAll(ctx context.Context, versions []sets.Version, members []sets.Member, changes []sets.Change, overwrite bool) error
}

// NewVersion is the single write request of the version-creation protocol.
// The store applies it atomically: flip the previous current row, insert the
// version, insert its change rows, insert its member rows. A concurrent
// writer that already claimed the same version number surfaces as
// sentinel.ErrConflict and nothing is applied.
type NewVersion struct {
	SetName           string
	Version           int
	ParentVersion     *int
	Description       string
	ChangeDescription string
	CreatedAt         time.Time
	Members           []string
	Added             []string
	Removed           []string
}
