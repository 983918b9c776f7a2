// Package service orchestrates the versioned set store: validation, the
// version-creation protocol, and translation of storage facts into domain
// errors. All mutation flows through createVersion; the store applies each
// resulting write atomically.
package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"geoset/internal/audit"
	"geoset/internal/sets"
	"geoset/internal/sets/metrics"
	"geoset/internal/sets/store"
	dErrors "geoset/pkg/domain-errors"
	"geoset/pkg/platform/sentinel"
	pstrings "geoset/pkg/platform/strings"
	"geoset/pkg/requestcontext"
)

// Universe reports which of the given GEOIDs are absent from the reference
// table. A nil Universe disables enforcement.
type Universe interface {
	Missing(ctx context.Context, geoids []string) ([]string, error)
}

// Service owns all writes to version chains. Reads and writes go through the
// injected store; audit events and metrics are recorded after commits.
type Service struct {
	store     store.Store
	universe  Universe
	publisher audit.Publisher
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithUniverse enables referential-integrity checks against the GEOID
// reference table.
func WithUniverse(u Universe) Option {
	return func(s *Service) { s.universe = u }
}

// WithPublisher sets the mutation event publisher.
func WithPublisher(p audit.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithMetrics sets the Prometheus instruments.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs the set service.
func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:     st,
		publisher: audit.Noop{},
		tracer:    otel.Tracer("geoset/sets"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

var setNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

func validateName(name string) error {
	if !setNameRe.MatchString(name) {
		return dErrors.Newf(dErrors.CodeBadRequest, "invalid set name %q", name)
	}
	return nil
}

// CreateVersionRequest carries the parameters of the central mutation
// primitive. BaseVersion 0 means "diff against the current version";
// Description empty means "inherit the current version's description".
type CreateVersionRequest struct {
	Name              string
	Identifiers       []string
	ChangeDescription string
	BaseVersion       int
	Description       string
}

// CreateSet creates version 1 of a brand-new set. Fails with already_exists
// when the set has a current version.
func (s *Service) CreateSet(ctx context.Context, name, description string, identifiers []string) (int, error) {
	ctx, span := s.tracer.Start(ctx, "sets.CreateSet")
	defer span.End()

	if err := validateName(name); err != nil {
		return 0, err
	}
	_, found, err := s.store.Current(ctx, name)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("look up set %q", name))
	}
	if found {
		return 0, dErrors.Newf(dErrors.CodeAlreadyExists, "set %q already exists", name)
	}
	return s.createVersion(ctx, CreateVersionRequest{
		Name:        name,
		Identifiers: identifiers,
		Description: description,
	}, "create_set")
}

// CreateVersion is the general primitive: it degrades to set creation when no
// current version exists.
func (s *Service) CreateVersion(ctx context.Context, req CreateVersionRequest) (int, error) {
	ctx, span := s.tracer.Start(ctx, "sets.CreateVersion")
	defer span.End()

	if err := validateName(req.Name); err != nil {
		return 0, err
	}
	return s.createVersion(ctx, req, "create_version")
}

// createVersion implements §"version-creation protocol": resolve base, diff,
// and hand the store one atomic write. A lost race against a concurrent
// writer on the same set surfaces as a retryable conflict.
func (s *Service) createVersion(ctx context.Context, req CreateVersionRequest, operation string) (int, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveDuration(operation, time.Since(start).Seconds())
	}()

	identifiers := pstrings.DedupeAndTrim(req.Identifiers)
	if err := s.checkUniverse(ctx, identifiers); err != nil {
		return 0, err
	}
	sort.Strings(identifiers)

	cur, found, err := s.store.Current(ctx, req.Name)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("look up set %q", req.Name))
	}

	nv := store.NewVersion{
		SetName:           req.Name,
		Description:       req.Description,
		ChangeDescription: req.ChangeDescription,
		CreatedAt:         requestcontext.Now(ctx).UTC(),
		Members:           identifiers,
	}

	if !found {
		if req.BaseVersion > 0 {
			return 0, dErrors.Newf(dErrors.CodeNotFound, "set %q has no version %d", req.Name, req.BaseVersion)
		}
		nv.Version = 1
	} else {
		base := cur.Version
		if req.BaseVersion > 0 {
			base = req.BaseVersion
			if _, err := s.store.GetVersion(ctx, req.Name, base); err != nil {
				if errors.Is(err, sentinel.ErrNotFound) {
					return 0, dErrors.Newf(dErrors.CodeNotFound, "set %q has no version %d", req.Name, base)
				}
				return 0, dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("look up version %d of %q", base, req.Name))
			}
		}
		baseMembers, err := s.store.Members(ctx, req.Name, base)
		if err != nil {
			return 0, dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("read members of %q v%d", req.Name, base))
		}
		nv.Version = cur.Version + 1
		nv.ParentVersion = &base
		nv.Added = subtract(identifiers, baseMembers)
		nv.Removed = subtract(baseMembers, identifiers)
		if nv.Description == "" {
			nv.Description = cur.Description
		}
	}

	if err := s.store.InsertVersion(ctx, nv); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.metrics.RecordConflict()
			return 0, dErrors.Wrap(err, dErrors.CodeConflict,
				fmt.Sprintf("set %q: version %d was created concurrently, retry", req.Name, nv.Version))
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("create version %d of %q", nv.Version, req.Name))
	}

	s.metrics.RecordVersionCreated(operation)
	action := audit.ActionVersionCreated
	if nv.Version == 1 {
		action = audit.ActionSetCreated
	}
	s.publisher.Publish(ctx, audit.Event{
		ID:                uuid.NewString(),
		Action:            action,
		SetName:           req.Name,
		Version:           nv.Version,
		ChangeDescription: req.ChangeDescription,
		RequestID:         requestcontext.RequestID(ctx),
		Timestamp:         nv.CreatedAt,
	})
	return nv.Version, nil
}

// GetSet returns the member GEOIDs of the current version.
func (s *Service) GetSet(ctx context.Context, name string) ([]string, error) {
	return s.GetSetVersion(ctx, name, 0)
}

// GetSetVersion returns the members of a specific version; version 0 means
// the current one.
func (s *Service) GetSetVersion(ctx context.Context, name string, version int) ([]string, error) {
	ctx, span := s.tracer.Start(ctx, "sets.GetSetVersion")
	defer span.End()

	if err := validateName(name); err != nil {
		return nil, err
	}
	resolved, err := s.resolveVersion(ctx, name, version)
	if err != nil {
		return nil, err
	}
	members, err := s.store.Members(ctx, name, resolved)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("read members of %q v%d", name, resolved))
	}
	return members, nil
}

func (s *Service) resolveVersion(ctx context.Context, name string, version int) (int, error) {
	if version == 0 {
		cur, found, err := s.store.Current(ctx, name)
		if err != nil {
			return 0, dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("look up set %q", name))
		}
		if !found {
			return 0, dErrors.Newf(dErrors.CodeNotFound, "set %q does not exist", name)
		}
		return cur.Version, nil
	}
	if _, err := s.store.GetVersion(ctx, name, version); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, dErrors.Newf(dErrors.CodeNotFound, "set %q has no version %d", name, version)
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("look up version %d of %q", version, name))
	}
	return version, nil
}

// AddToSet unions the given GEOIDs into the current version. Returns 0 with
// no new version when every identifier is already present.
func (s *Service) AddToSet(ctx context.Context, name string, identifiers []string, changeDescription string) (int, error) {
	ctx, span := s.tracer.Start(ctx, "sets.AddToSet")
	defer span.End()

	if err := validateName(name); err != nil {
		return 0, err
	}
	current, err := s.GetSet(ctx, name)
	if err != nil {
		return 0, err
	}
	identifiers = pstrings.DedupeAndTrim(identifiers)
	if err := s.checkUniverse(ctx, identifiers); err != nil {
		return 0, err
	}

	result := union(current, identifiers)
	if len(result) == len(current) {
		return 0, nil
	}
	return s.createVersion(ctx, CreateVersionRequest{
		Name:              name,
		Identifiers:       result,
		ChangeDescription: changeDescription,
	}, "add_to_set")
}

// RemoveFromSet subtracts the given GEOIDs from the current version. Returns
// 0 with no new version when none of them are present.
func (s *Service) RemoveFromSet(ctx context.Context, name string, identifiers []string, changeDescription string) (int, error) {
	ctx, span := s.tracer.Start(ctx, "sets.RemoveFromSet")
	defer span.End()

	if err := validateName(name); err != nil {
		return 0, err
	}
	current, err := s.GetSet(ctx, name)
	if err != nil {
		return 0, err
	}

	result := subtract(current, pstrings.DedupeAndTrim(identifiers))
	if len(result) == len(current) {
		return 0, nil
	}
	return s.createVersion(ctx, CreateVersionRequest{
		Name:              name,
		Identifiers:       result,
		ChangeDescription: changeDescription,
	}, "remove_from_set")
}

// ListSets lists every set through its current version, ordered by name.
func (s *Service) ListSets(ctx context.Context) ([]sets.SetSummary, error) {
	summaries, err := s.store.ListSets(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list sets")
	}
	return summaries, nil
}

// ListVersions lists a set's full history, newest first.
func (s *Service) ListVersions(ctx context.Context, name string) ([]sets.VersionInfo, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	infos, err := s.store.ListVersions(ctx, name)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "set %q does not exist", name)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("list versions of %q", name))
	}
	return infos, nil
}

// Rollback creates a new version whose content equals the target version's.
// The target itself is untouched; history never rewinds.
func (s *Service) Rollback(ctx context.Context, name string, targetVersion int) (int, error) {
	ctx, span := s.tracer.Start(ctx, "sets.Rollback")
	defer span.End()

	if err := validateName(name); err != nil {
		return 0, err
	}
	if targetVersion <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "rollback target version must be positive")
	}
	members, err := s.GetSetVersion(ctx, name, targetVersion)
	if err != nil {
		return 0, err
	}
	return s.createVersion(ctx, CreateVersionRequest{
		Name:              name,
		Identifiers:       members,
		ChangeDescription: fmt.Sprintf("Rollback to version %d", targetVersion),
	}, "rollback")
}

// CompareVersions diffs two versions of one set. Pure read.
func (s *Service) CompareVersions(ctx context.Context, name string, v1, v2 int) (sets.VersionDiff, error) {
	ctx, span := s.tracer.Start(ctx, "sets.CompareVersions")
	defer span.End()

	if err := validateName(name); err != nil {
		return sets.VersionDiff{}, err
	}
	m1, err := s.GetSetVersion(ctx, name, v1)
	if err != nil {
		return sets.VersionDiff{}, err
	}
	m2, err := s.GetSetVersion(ctx, name, v2)
	if err != nil {
		return sets.VersionDiff{}, err
	}
	return sets.VersionDiff{
		Added:   subtract(m2, m1),
		Removed: subtract(m1, m2),
		Common:  intersect(m1, m2),
		V1Count: len(m1),
		V2Count: len(m2),
	}, nil
}

// DeleteSet removes a set's entire chain atomically.
func (s *Service) DeleteSet(ctx context.Context, name string) error {
	ctx, span := s.tracer.Start(ctx, "sets.DeleteSet")
	defer span.End()

	if err := validateName(name); err != nil {
		return err
	}
	existed, err := s.store.DeleteSet(ctx, name)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("delete set %q", name))
	}
	if !existed {
		return dErrors.Newf(dErrors.CodeNotFound, "set %q does not exist", name)
	}
	s.metrics.RecordSetDeleted()
	s.publisher.Publish(ctx, audit.Event{
		ID:        uuid.NewString(),
		Action:    audit.ActionSetDeleted,
		SetName:   name,
		RequestID: requestcontext.RequestID(ctx),
		Timestamp: requestcontext.Now(ctx).UTC(),
	})
	return nil
}

// ListAllIdentifiers enumerates every GEOID in any current version, with the
// sets that contain it.
func (s *Service) ListAllIdentifiers(ctx context.Context) ([]sets.IdentifierUsage, error) {
	usages, err := s.store.ListAllIdentifiers(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list identifiers")
	}
	return usages, nil
}

// WhichSets lists every (set, version) pair containing the GEOID, historical
// versions included.
func (s *Service) WhichSets(ctx context.Context, geoid string) ([]sets.SetMembership, error) {
	if geoid == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "identifier must not be empty")
	}
	memberships, err := s.store.WhichSets(ctx, geoid)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("list sets containing %q", geoid))
	}
	return memberships, nil
}

func (s *Service) checkUniverse(ctx context.Context, geoids []string) error {
	if s.universe == nil || len(geoids) == 0 {
		return nil
	}
	missing, err := s.universe.Missing(ctx, geoids)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "check identifier universe")
	}
	if len(missing) > 0 {
		return dErrors.Newf(dErrors.CodeBadRequest, "unknown identifiers: %v", missing)
	}
	return nil
}

// subtract returns the elements of a not present in b, sorted.
func subtract(a, b []string) []string {
	inB := make(map[string]struct{}, len(b))
	for _, v := range b {
		inB[v] = struct{}{}
	}
	out := []string{}
	for _, v := range a {
		if _, ok := inB[v]; !ok {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// intersect returns the elements present in both a and b, sorted.
func intersect(a, b []string) []string {
	inB := make(map[string]struct{}, len(b))
	for _, v := range b {
		inB[v] = struct{}{}
	}
	out := []string{}
	for _, v := range a {
		if _, ok := inB[v]; ok {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// union merges a and b without duplicates, sorted.
func union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := []string{}
	for _, chunk := range [][]string{a, b} {
		for _, v := range chunk {
			if _, ok := seen[v]; !ok {
				seen[v] = struct{}{}
				out = append(out, v)
			}
		}
	}
	sort.Strings(out)
	return out
}
