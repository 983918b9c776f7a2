package algebra

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	setservice "geoset/internal/sets/service"
	dErrors "geoset/pkg/domain-errors"
)

// SetService is the slice of the set service the algebra engine needs: it
// reads current versions and persists results through the version-creation
// primitive. It never writes rows itself.
type SetService interface {
	GetSet(ctx context.Context, name string) ([]string, error)
	CreateVersion(ctx context.Context, req setservice.CreateVersionRequest) (int, error)
}

// Service applies set algebra over named sets. Each operation reads the
// current version of every input and creates the next version of the output
// set, even when the output already existed with different content.
type Service struct {
	sets SetService
}

// New constructs the algebra service.
func New(sets SetService) *Service {
	return &Service{sets: sets}
}

// Union persists the union of the named sets as a new version of output.
func (s *Service) Union(ctx context.Context, inputs []string, output string) (int, error) {
	members, err := s.readAll(ctx, inputs)
	if err != nil {
		return 0, err
	}
	desc := "Union of sets: " + strings.Join(inputs, ", ")
	return s.persist(ctx, output, Union(members...), desc)
}

// Intersect persists the intersection of the named sets as a new version of
// output. An empty input list yields the empty set.
func (s *Service) Intersect(ctx context.Context, inputs []string, output string) (int, error) {
	members, err := s.readAll(ctx, inputs)
	if err != nil {
		return 0, err
	}
	desc := "Intersection of sets: " + strings.Join(inputs, ", ")
	return s.persist(ctx, output, Intersect(members...), desc)
}

// Difference persists base minus subtract as a new version of output.
func (s *Service) Difference(ctx context.Context, base, subtract, output string) (int, error) {
	members, err := s.readAll(ctx, []string{base, subtract})
	if err != nil {
		return 0, err
	}
	desc := fmt.Sprintf("Difference: %s - %s", base, subtract)
	return s.persist(ctx, output, Difference(members[0], members[1]), desc)
}

// SymmetricDifference persists the identifiers in exactly one of the two
// sets as a new version of output.
func (s *Service) SymmetricDifference(ctx context.Context, name1, name2, output string) (int, error) {
	members, err := s.readAll(ctx, []string{name1, name2})
	if err != nil {
		return 0, err
	}
	desc := fmt.Sprintf("Symmetric difference of %s and %s", name1, name2)
	return s.persist(ctx, output, SymmetricDifference(members[0], members[1]), desc)
}

// readAll fetches the current members of every input concurrently, keeping
// input order.
func (s *Service) readAll(ctx context.Context, names []string) ([][]string, error) {
	members := make([][]string, len(names))
	g, ctx := errgroup.WithContext(ctx)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			m, err := s.sets.GetSet(ctx, name)
			if err != nil {
				return err
			}
			members[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return members, nil
}

func (s *Service) persist(ctx context.Context, output string, result []string, description string) (int, error) {
	if output == "" {
		return 0, dErrors.New(dErrors.CodeBadRequest, "output set name must not be empty")
	}
	return s.sets.CreateVersion(ctx, setservice.CreateVersionRequest{
		Name:              output,
		Identifiers:       result,
		ChangeDescription: description,
		Description:       description,
	})
}
