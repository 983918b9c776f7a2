package regions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresetByKey(t *testing.T) {
	p, ok := PresetByKey("south_florida")
	require.True(t, ok)
	assert.Equal(t, "south_florida", p.Key)
	assert.Contains(t, p.GEOIDs, "12086")

	_, ok = PresetByKey("atlantis")
	assert.False(t, ok)
}

func TestPresetGEOIDsAreDistinct(t *testing.T) {
	for _, p := range Presets {
		seen := map[string]bool{}
		for _, geoid := range p.GEOIDs {
			assert.False(t, seen[geoid], "preset %s repeats %s", p.Key, geoid)
			seen[geoid] = true
			assert.Len(t, geoid, 5, "preset %s carries non-county GEOID %s", p.Key, geoid)
		}
	}
}

func TestMemoryStoreMissing(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	require.NoError(t, st.Load(ctx, []Region{
		{GEOID: "12086", Name: "Miami-Dade County", StateFIPS: "12"},
		{GEOID: "12011", Name: "Broward County", StateFIPS: "12"},
	}))

	count, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	missing, err := st.Missing(ctx, []string{"12086", "99999", "12011", "00000"})
	require.NoError(t, err)
	assert.Equal(t, []string{"00000", "99999"}, missing)

	missing, err = st.Missing(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestMemoryStoreLoadIsUpsert(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	require.NoError(t, st.Load(ctx, []Region{{GEOID: "12086", Name: "Miami-Dade"}}))
	require.NoError(t, st.Load(ctx, []Region{{GEOID: "12086", Name: "Miami-Dade County"}}))

	count, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
