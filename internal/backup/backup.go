// Package backup serializes the entire version history to a portable JSON
// document and restores it. Restores are structural: rows come back verbatim
// with their original version numbers, never re-derived through the
// version-creation protocol.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"

	"geoset/internal/audit"
	"geoset/internal/sets"
	dErrors "geoset/pkg/domain-errors"
	"geoset/pkg/platform/sentinel"
	"geoset/pkg/requestcontext"
)

// FormatVersion tags the document layout.
const FormatVersion = "1.0"

// Metadata describes one backup document.
type Metadata struct {
	CreatedAt time.Time `json:"created_at"`
	Version   string    `json:"version"`
}

// Document is the portable backup shape: every version, member, and change
// row across all sets and all versions.
type Document struct {
	Metadata Metadata       `json:"metadata"`
	Sets     []sets.Version `json:"sets"`
	Members  []sets.Member  `json:"members"`
	Changes  []sets.Change  `json:"changes"`
}

// Store is the slice of the set store the codec needs.
type Store interface {
	DumpVersions(ctx context.Context) ([]sets.Version, error)
	DumpMembers(ctx context.Context) ([]sets.Member, error)
	DumpChanges(ctx context.Context) ([]sets.Change, error)
	RestoreAll(ctx context.Context, versions []sets.Version, members []sets.Member, changes []sets.Change, overwrite bool) error
}

// Service implements backup and restore over a set store.
type Service struct {
	store     Store
	publisher audit.Publisher
}

// New constructs the backup service. A nil publisher disables events.
func New(store Store, publisher audit.Publisher) *Service {
	if publisher == nil {
		publisher = audit.Noop{}
	}
	return &Service{store: store, publisher: publisher}
}

// Backup writes the whole store to w as one JSON document.
func (s *Service) Backup(ctx context.Context, w io.Writer) error {
	versions, err := s.store.DumpVersions(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "dump versions")
	}
	members, err := s.store.DumpMembers(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "dump members")
	}
	changes, err := s.store.DumpChanges(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "dump changes")
	}

	doc := Document{
		Metadata: Metadata{
			CreatedAt: requestcontext.Now(ctx).UTC(),
			Version:   FormatVersion,
		},
		Sets:    versions,
		Members: members,
		Changes: changes,
	}
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "write backup document")
	}
	return nil
}

// Restore reads a backup document from r and reinserts its rows in one
// transaction. With overwrite the store is wiped first; without it, existing
// (set, version) pairs are skipped, making re-restore idempotent.
func (s *Service) Restore(ctx context.Context, r io.Reader, overwrite bool) error {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed backup document")
	}
	if doc.Metadata.Version != FormatVersion {
		return dErrors.Newf(dErrors.CodeBadRequest, "unsupported backup format version %q", doc.Metadata.Version)
	}
	if err := validate(doc); err != nil {
		return err
	}

	if err := s.store.RestoreAll(ctx, doc.Sets, doc.Members, doc.Changes, overwrite); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.Wrap(err, dErrors.CodeConflict, "restore conflicts with existing current versions")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "restore backup document")
	}

	s.publisher.Publish(ctx, audit.Event{
		ID:        uuid.NewString(),
		Action:    audit.ActionRestored,
		RequestID: requestcontext.RequestID(ctx),
		Timestamp: requestcontext.Now(ctx).UTC(),
	})
	return nil
}

// validate rejects documents whose member or change rows reference a version
// the document does not carry; restoring them would trip foreign keys midway.
func validate(doc Document) error {
	type pair struct {
		name    string
		version int
	}
	known := make(map[pair]struct{}, len(doc.Sets))
	for _, v := range doc.Sets {
		if v.Version <= 0 {
			return dErrors.Newf(dErrors.CodeBadRequest, "set %q carries non-positive version %d", v.SetName, v.Version)
		}
		known[pair{v.SetName, v.Version}] = struct{}{}
	}
	for _, m := range doc.Members {
		if _, ok := known[pair{m.SetName, m.Version}]; !ok {
			return dErrors.Newf(dErrors.CodeBadRequest,
				"member row references missing version %d of %q", m.Version, m.SetName)
		}
	}
	for _, c := range doc.Changes {
		if _, ok := known[pair{c.SetName, c.Version}]; !ok {
			return dErrors.Newf(dErrors.CodeBadRequest,
				"change row references missing version %d of %q", c.Version, c.SetName)
		}
		if c.Type != sets.ChangeAdd && c.Type != sets.ChangeRemove {
			return dErrors.Newf(dErrors.CodeBadRequest, "unknown change type %q", c.Type)
		}
	}
	return nil
}
