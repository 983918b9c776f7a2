// Package sets defines the data model for versioned GEOID sets.
//
// A set is a named, append-only chain of versions. Each version is a complete
// membership snapshot, never a delta; the change rows are denormalized audit
// records and must always equal the member-set difference against the base
// version.
package sets

import "time"

// ChangeType tags a change row as an addition or a removal relative to the
// version's base.
type ChangeType string

const (
	ChangeAdd    ChangeType = "ADD"
	ChangeRemove ChangeType = "REMOVE"
)

// Version is one immutable snapshot in a set's chain. Exactly one version per
// set has IsCurrent true at any time. ParentVersion is nil only for version 1.
type Version struct {
	SetName           string    `json:"set_name"`
	Version           int       `json:"version"`
	Description       string    `json:"description"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	IsCurrent         bool      `json:"is_current"`
	ParentVersion     *int      `json:"parent_version"`
	ChangeDescription string    `json:"change_description"`
}

// Member associates one GEOID with one version of one set.
type Member struct {
	SetName string `json:"set_name"`
	Version int    `json:"version"`
	GEOID   string `json:"identifier"`
}

// Change records one identifier whose presence differs between a version and
// its base. Version 1 of a set has no change rows.
type Change struct {
	SetName   string     `json:"set_name"`
	Version   int        `json:"version"`
	Type      ChangeType `json:"change_type"`
	GEOID     string     `json:"identifier"`
	ChangedAt time.Time  `json:"changed_at"`
}

// SetSummary describes a set through its current version.
type SetSummary struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Version     int       `json:"version"`
	MemberCount int       `json:"member_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// VersionInfo is one row of a set's history listing, with change counts
// aggregated per version.
type VersionInfo struct {
	Version           int       `json:"version"`
	Description       string    `json:"description"`
	CreatedAt         time.Time `json:"created_at"`
	IsCurrent         bool      `json:"is_current"`
	ParentVersion     *int      `json:"parent_version"`
	ChangeDescription string    `json:"change_description"`
	MemberCount       int       `json:"member_count"`
	AddedCount        int       `json:"added_count"`
	RemovedCount      int       `json:"removed_count"`
}

// VersionDiff is the pure comparison of two versions of one set.
type VersionDiff struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	Common  []string `json:"common"`
	V1Count int      `json:"v1_count"`
	V2Count int      `json:"v2_count"`
}

// IdentifierUsage reports one GEOID's presence across all current versions.
type IdentifierUsage struct {
	GEOID    string   `json:"identifier"`
	SetCount int      `json:"set_count"`
	SetNames []string `json:"set_names"`
}

// SetMembership is one (set, version) pair containing a given GEOID. Unlike
// IdentifierUsage this includes historical versions.
type SetMembership struct {
	SetName     string `json:"set_name"`
	Version     int    `json:"version"`
	Description string `json:"description"`
	IsCurrent   bool   `json:"is_current"`
}
