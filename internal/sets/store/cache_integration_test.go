//go:build integration

package store_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"geoset/internal/sets/store"
	"geoset/pkg/testutil/containers"
)

type MemberCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	inner *store.Memory
	cache *store.MemberCache
}

func TestMemberCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(MemberCacheSuite))
}

func (s *MemberCacheSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
}

func (s *MemberCacheSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.redis.FlushAll(ctx))
	s.inner = store.NewMemory()
	s.cache = store.NewMemberCache(s.inner, s.redis.Client,
		time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func (s *MemberCacheSuite) TestReadThrough() {
	ctx := context.Background()
	s.Require().NoError(s.inner.InsertVersion(ctx, store.NewVersion{
		SetName: "fl", Version: 1, CreatedAt: time.Now().UTC(), Members: []string{"12086", "12011"},
	}))

	// First read populates the cache.
	members, err := s.cache.Members(ctx, "fl", 1)
	s.Require().NoError(err)
	s.Equal([]string{"12011", "12086"}, members)

	// Second read is served from Redis even after the inner rows vanish.
	_, err = s.inner.DeleteSet(ctx, "fl")
	s.Require().NoError(err)

	members, err = s.cache.Members(ctx, "fl", 1)
	s.Require().NoError(err)
	s.Equal([]string{"12011", "12086"}, members)
}

func (s *MemberCacheSuite) TestDeleteSetEvicts() {
	ctx := context.Background()
	s.Require().NoError(s.inner.InsertVersion(ctx, store.NewVersion{
		SetName: "fl", Version: 1, CreatedAt: time.Now().UTC(), Members: []string{"12086"},
	}))

	_, err := s.cache.Members(ctx, "fl", 1)
	s.Require().NoError(err)

	existed, err := s.cache.DeleteSet(ctx, "fl")
	s.Require().NoError(err)
	s.True(existed)

	// A recreated set with the same name and version must not see the old
	// chain's snapshot.
	s.Require().NoError(s.inner.InsertVersion(ctx, store.NewVersion{
		SetName: "fl", Version: 1, CreatedAt: time.Now().UTC(), Members: []string{"12099"},
	}))
	members, err := s.cache.Members(ctx, "fl", 1)
	s.Require().NoError(err)
	s.Equal([]string{"12099"}, members)
}

func (s *MemberCacheSuite) TestOverwriteRestoreFlushes() {
	ctx := context.Background()
	s.Require().NoError(s.inner.InsertVersion(ctx, store.NewVersion{
		SetName: "fl", Version: 1, CreatedAt: time.Now().UTC(), Members: []string{"12086"},
	}))

	_, err := s.cache.Members(ctx, "fl", 1)
	s.Require().NoError(err)

	versions, err := s.inner.DumpVersions(ctx)
	s.Require().NoError(err)
	s.Require().NoError(s.cache.RestoreAll(ctx, versions,
		nil, nil, true))

	// The flushed cache refills from the restored store, which now carries an
	// empty member list for the pair.
	members, err := s.cache.Members(ctx, "fl", 1)
	s.Require().NoError(err)
	s.Empty(members)
}
