//go:build integration

package regions_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"geoset/internal/regions"
	"geoset/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *regions.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = regions.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "geo_regions")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestLoadAndMissing() {
	ctx := context.Background()

	err := s.store.Load(ctx, []regions.Region{
		{GEOID: "12086", Name: "Miami-Dade County", StateFIPS: "12"},
		{GEOID: "12011", Name: "Broward County", StateFIPS: "12"},
	})
	s.Require().NoError(err)

	count, err := s.store.Count(ctx)
	s.Require().NoError(err)
	s.Equal(2, count)

	missing, err := s.store.Missing(ctx, []string{"12086", "99999", "12011"})
	s.Require().NoError(err)
	s.Equal([]string{"99999"}, missing)

	missing, err = s.store.Missing(ctx, nil)
	s.Require().NoError(err)
	s.Empty(missing)
}

func (s *PostgresStoreSuite) TestLoadUpserts() {
	ctx := context.Background()

	err := s.store.Load(ctx, []regions.Region{{GEOID: "12086", Name: "Miami-Dade", StateFIPS: "12"}})
	s.Require().NoError(err)
	err = s.store.Load(ctx, []regions.Region{{GEOID: "12086", Name: "Miami-Dade County", StateFIPS: "12"}})
	s.Require().NoError(err)

	count, err := s.store.Count(ctx)
	s.Require().NoError(err)
	s.Equal(1, count)
}
