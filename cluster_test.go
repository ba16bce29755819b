package ipsmap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// renderFixtures prepares the testdata dataset and renders sel.
func renderFixtures(t *testing.T, sel Selection) *Result {
	t.Helper()
	ds, err := PrepareDataset(context.Background(), DefaultSources(fixtureDir), nil)
	require.NoError(t, err)
	return ds.Render(sel, DefaultClusterPrecision)
}

func TestClusterMarkers(t *testing.T) {
	res := renderFixtures(t, Selection{Year: "2023", ElectionID: "2022-presidential"})

	clusters := ClusterMarkers(res.Facilities, 2)
	require.Len(t, clusters, 2)

	south, north := clusters[0], clusters[1]
	assert.Equal(t, "sp", south.Geohash)
	assert.Equal(t, 3, south.Count)
	assert.Equal(t, 80.5, south.MinIPS)
	assert.Equal(t, []string{"0130001D", "0130002E", "0130010L"}, south.UAIs)
	assert.InDelta(t, 5.5, south.Longitude, 1e-9)
	assert.InDelta(t, 43.5, south.Latitude, 1e-9)

	assert.Equal(t, "u0", north.Geohash)
	assert.Equal(t, []string{"0750001A", "0750010K", "0920010M"}, north.UAIs)
	assert.Equal(t, 88.0, north.MinIPS)
}

func TestClusterMarkers_Precision(t *testing.T) {
	res := renderFixtures(t, Selection{Year: "2023", ElectionID: "2022-presidential"})

	fine := ClusterMarkers(res.Facilities, DefaultClusterPrecision)
	assert.Len(t, fine, 6, "fixture schools are more than 5km apart")
	for _, c := range fine {
		assert.Len(t, c.Geohash, DefaultClusterPrecision)
	}
	assert.Equal(t, fine, res.Clusters)

	assert.Equal(t, fine, ClusterMarkers(res.Facilities, 0), "non-positive precision uses the default")
	assert.Empty(t, ClusterMarkers(nil, 5))
}
