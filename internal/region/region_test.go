package region_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/rohmanhakim/archivist/internal/region"
)

func TestConsistentRouting(t *testing.T) {
	router := region.NewRouter()

	// same domain always routes to the same region
	first := router.Route("example.com")
	second := router.Route("example.com")
	assert.Equal(t, first, second)
}

func TestDistribution(t *testing.T) {
	router := region.NewRouter()

	counts := make(map[region.Region]int)
	for i := 0; i < 1000; i++ {
		counts[router.Route(fmt.Sprintf("domain%d.com", i))]++
	}

	// uniform to within ±25% of the even share
	for r, count := range counts {
		assert.Greater(t, count, 250, "region %s underloaded: %d", r, count)
		assert.Less(t, count, 417, "region %s overloaded: %d", r, count)
	}
}

func TestShouldPrioritize(t *testing.T) {
	router := region.NewRouter()

	home := router.Route("example.com")
	assert.True(t, router.ShouldPrioritize("example.com", home))

	for _, other := range []region.Region{region.UsEast1, region.EuWest1, region.ApSouth1} {
		if other != home {
			assert.False(t, router.ShouldPrioritize("example.com", other))
		}
	}
}

func TestFromString(t *testing.T) {
	r, ok := region.FromString("eu-west-1")
	assert.True(t, ok)
	assert.Equal(t, region.EuWest1, r)

	_, ok = region.FromString("mars-north-1")
	assert.False(t, ok)
}
