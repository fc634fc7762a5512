package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/helixir/venue-search-service/internal/domain"
)

type mapCache map[string][]*domain.Paper

func (m mapCache) Lookup(kw string) ([]*domain.Paper, bool) {
	p, ok := m[kw]
	return p, ok
}

func TestAggregate(t *testing.T) {
	a, b, c := paper("A"), paper("B"), paper("C")
	bAgain := paper("B")
	bAgain.Status = "different provenance"

	cache := mapCache{
		"k1": {a, b},
		"k2": {bAgain, c},
		"k3": {},
	}

	got := Aggregate([]string{"k2", "missing", "k1", "k3"}, cache)

	assert.Equal(t, []*domain.Paper{bAgain, c, a}, got)
}

func TestAggregate_Empty(t *testing.T) {
	got := Aggregate([]string{"x"}, mapCache{})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
