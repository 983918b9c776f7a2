package algebra

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnion(t *testing.T) {
	assert.Equal(t, []string{"12011", "12086", "13001"},
		Union([]string{"12086", "12011"}, []string{"13001", "12086"}))

	// Order of inputs never matters.
	assert.Equal(t,
		Union([]string{"12086"}, []string{"12011"}),
		Union([]string{"12011"}, []string{"12086"}))

	assert.Equal(t, []string{}, Union())
	assert.Equal(t, []string{}, Union([]string{}, nil))
}

func TestIntersect(t *testing.T) {
	assert.Equal(t, []string{"12086"},
		Intersect([]string{"12086", "12011"}, []string{"13001", "12086"}))

	// A set intersected with itself is itself.
	assert.Equal(t, []string{"12011", "12086"},
		Intersect([]string{"12086", "12011"}, []string{"12011", "12086"}))

	// No inputs means no universal set to intersect against.
	assert.Equal(t, []string{}, Intersect())
	assert.Equal(t, []string{}, Intersect([]string{"12086"}, []string{}))
}

func TestDifference(t *testing.T) {
	assert.Equal(t, []string{"12011"},
		Difference([]string{"12086", "12011"}, []string{"12086", "13001"}))
	assert.Equal(t, []string{}, Difference([]string{"12086"}, []string{"12086"}))
	assert.Equal(t, []string{"12086"}, Difference([]string{"12086"}, nil))
	assert.Equal(t, []string{}, Difference(nil, []string{"12086"}))
}

func TestSymmetricDifference(t *testing.T) {
	got := SymmetricDifference([]string{"12086", "12011"}, []string{"12011", "13001"})
	assert.Equal(t, []string{"12086", "13001"}, got)

	// Symmetric in its arguments.
	assert.Equal(t, got, SymmetricDifference([]string{"12011", "13001"}, []string{"12086", "12011"}))

	assert.Equal(t, []string{}, SymmetricDifference([]string{"12086"}, []string{"12086"}))
}
