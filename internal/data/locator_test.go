package data

import (
	"context"
	"slices"
	"testing"

	"nominatim-indexer/internal/biz"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func box(minX, minY, maxX, maxY float64) orb.Polygon {
	return orb.Polygon{{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY}}}
}

func areaEntry(id int64, rank int, geom orb.Polygon) *biz.LocatorEntry {
	return &biz.LocatorEntry{
		PlaceID: id, Class: "boundary", Type: "administrative",
		RankSearch: rank, RankAddress: rank,
		Geometry: geom, Centroid: biz.ComputeCentroid(geom),
	}
}

func roadEntry(id int64, line orb.LineString, tokens ...int64) *biz.LocatorEntry {
	return &biz.LocatorEntry{
		PlaceID: id, Class: "highway", Type: "residential",
		RankSearch: 26, RankAddress: 26,
		Geometry: line, Centroid: biz.ComputeCentroid(line), NameTokens: tokens,
	}
}

func newTestRegistry(t *testing.T, entries ...*biz.LocatorEntry) (biz.LocatorRegistry, biz.SpatialLocator) {
	t.Helper()
	settings := biz.DefaultSettings()
	settings.Partitions = map[string]int{"de": 3}
	reg := NewLocatorRegistry(settings)
	for _, e := range entries {
		require.NoError(t, reg.Upsert(e))
	}
	loc, err := reg.For(0)
	require.NoError(t, err)
	return reg, loc
}

func candidateIDs(seq func(func(biz.AddressCandidate) bool)) []int64 {
	var ids []int64
	for c := range seq {
		ids = append(ids, c.PlaceID)
	}
	return ids
}

func TestNearestAddressCandidatesOrder(t *testing.T) {
	hamlet := &biz.LocatorEntry{
		PlaceID: 3, Class: "place", Type: "hamlet", RankSearch: 20, RankAddress: 20,
		Geometry: orb.Point{0.5, 0.5}, Centroid: orb.Point{0.5, 0.5}, Estimated: true,
	}
	village := &biz.LocatorEntry{
		PlaceID: 5, Class: "place", Type: "village", RankSearch: 19, RankAddress: 16,
		Geometry: orb.Point{0.51, 0.5}, Centroid: orb.Point{0.51, 0.5}, Estimated: true,
	}
	_, loc := newTestRegistry(t,
		areaEntry(1, 8, box(0, 0, 10, 10)),
		areaEntry(2, 16, box(0, 0, 1, 1)),
		hamlet,
		village,
		areaEntry(4, 12, box(5, 5, 6, 6)),
	)
	ctx := context.Background()
	pt := orb.Point{0.5, 0.5}

	assert.Equal(t, []int64{1, 2, 5, 3}, candidateIDs(loc.NearestAddressCandidates(ctx, pt, pt, 30)))
	assert.Equal(t, []int64{1}, candidateIDs(loc.NearestAddressCandidates(ctx, pt, pt, 16)))

	var first biz.AddressCandidate
	for c := range loc.NearestAddressCandidates(ctx, pt, pt, 30) {
		first = c
		break
	}
	assert.Equal(t, int64(1), first.PlaceID)
	assert.True(t, first.Area.Contains(orb.Point{9, 9}))
	assert.False(t, first.Area.Contains(orb.Point{11, 9}))
}

func TestNearestNamedRoad(t *testing.T) {
	_, loc := newTestRegistry(t,
		roadEntry(10, orb.LineString{{0, 0}, {0.01, 0}}, 7),
		roadEntry(11, orb.LineString{{0, 0.002}, {0.01, 0.002}}, 8),
	)
	ctx := context.Background()

	id, ok := loc.NearestNamedRoad(ctx, orb.Point{0.005, 0.0019}, []int64{7})
	require.True(t, ok)
	assert.Equal(t, int64(10), id)

	_, ok = loc.NearestNamedRoad(ctx, orb.Point{0.005, 0.001}, []int64{9})
	assert.False(t, ok)
	_, ok = loc.NearestNamedRoad(ctx, orb.Point{1, 1}, []int64{7})
	assert.False(t, ok)
}

func TestNearestNamedPlace(t *testing.T) {
	town := &biz.LocatorEntry{
		PlaceID: 20, Class: "place", Type: "town", RankSearch: 18, RankAddress: 16,
		Geometry: orb.Point{0, 0}, Centroid: orb.Point{0, 0}, NameTokens: []int64{42}, Estimated: true,
	}
	_, loc := newTestRegistry(t, town)
	ctx := context.Background()

	id, ok := loc.NearestNamedPlace(ctx, orb.Point{0.01, 0.01}, []int64{42})
	require.True(t, ok)
	assert.Equal(t, int64(20), id)
	_, ok = loc.NearestNamedPlace(ctx, orb.Point{0.5, 0.5}, []int64{42})
	assert.False(t, ok)
}

func TestNearestRoadDoublesRadius(t *testing.T) {
	_, loc := newTestRegistry(t,
		roadEntry(10, orb.LineString{{0, 0}, {1, 0}}),
		roadEntry(11, orb.LineString{{0, 0.3}, {1, 0.3}}),
	)
	ctx := context.Background()

	id, ok := loc.NearestRoad(ctx, orb.Point{0.5, 0.00001})
	require.True(t, ok)
	assert.Equal(t, int64(10), id)

	id, ok = loc.NearestRoad(ctx, orb.Point{0.5, 0.05})
	require.True(t, ok)
	assert.Equal(t, int64(10), id)

	_, ok = loc.NearestRoad(ctx, orb.Point{0.5, 0.15})
	assert.False(t, ok)
}

func TestNearestParallelRoad(t *testing.T) {
	_, loc := newTestRegistry(t,
		roadEntry(10, orb.LineString{{0, 0}, {1, 0}}),
		roadEntry(11, orb.LineString{{0.2, 0.0004}, {0.21, 0.0004}}),
	)
	ctx := context.Background()

	id, ok := loc.NearestParallelRoad(ctx, orb.LineString{{0.3, 0.0003}, {0.35, 0.0003}, {0.4, 0.0003}})
	require.True(t, ok)
	assert.Equal(t, int64(10), id)

	_, ok = loc.NearestParallelRoad(ctx, orb.LineString{{0.3, 0.5}, {0.4, 0.5}})
	assert.False(t, ok)
	_, ok = loc.NearestParallelRoad(ctx, orb.LineString{{0.3, 0}})
	assert.False(t, ok)
}

func TestAreaContaining(t *testing.T) {
	_, loc := newTestRegistry(t,
		areaEntry(1, 8, box(0, 0, 10, 10)),
		areaEntry(2, 16, box(0, 0, 1, 1)),
		areaEntry(3, 16, box(0.4, 0.4, 0.6, 0.6)),
		areaEntry(4, 4, box(-1, -1, 20, 20)),
	)
	ctx := context.Background()

	id, ok := loc.AreaContaining(ctx, orb.Point{0.5, 0.5})
	require.True(t, ok)
	assert.Equal(t, int64(3), id)
	id, ok = loc.AreaContaining(ctx, orb.Point{5, 5})
	require.True(t, ok)
	assert.Equal(t, int64(1), id)
	_, ok = loc.AreaContaining(ctx, orb.Point{15, 15})
	assert.False(t, ok)
}

func TestLocatorRegistryPartitions(t *testing.T) {
	reg, loc := newTestRegistry(t, areaEntry(1, 16, box(0, 0, 1, 1)))

	_, err := reg.For(7)
	assert.ErrorIs(t, err, biz.ErrUnknownPartition)
	e := areaEntry(2, 16, box(0, 0, 1, 1))
	e.Partition = 7
	assert.ErrorIs(t, reg.Upsert(e), biz.ErrUnknownPartition)

	// 换分区时从旧分区移除
	moved := areaEntry(1, 16, box(0, 0, 1, 1))
	moved.Partition = 3
	require.NoError(t, reg.Upsert(moved))
	assert.Equal(t, 1, reg.Len())
	ctx := context.Background()
	pt := orb.Point{0.5, 0.5}
	assert.Empty(t, candidateIDs(loc.NearestAddressCandidates(ctx, pt, pt, 30)))
	de, err := reg.For(3)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, candidateIDs(de.NearestAddressCandidates(ctx, pt, pt, 30)))

	reg.Remove(1)
	assert.Zero(t, reg.Len())
	assert.Empty(t, candidateIDs(de.NearestAddressCandidates(ctx, pt, pt, 30)))
	reg.Remove(1)
}

func TestRoadCellsRemovedOnUpdate(t *testing.T) {
	reg, loc := newTestRegistry(t, roadEntry(10, orb.LineString{{0, 0}, {0.01, 0}}))
	ctx := context.Background()

	require.NoError(t, reg.Upsert(roadEntry(10, orb.LineString{{5, 5}, {5.01, 5}})))
	_, ok := loc.NearestRoad(ctx, orb.Point{0.005, 0})
	assert.False(t, ok)
	id, ok := loc.NearestRoad(ctx, orb.Point{5.005, 5})
	require.True(t, ok)
	assert.Equal(t, int64(10), id)

	ml := loc.(*memLocator)
	assert.True(t, slices.ContainsFunc(ml.entries[10].cells, func(c string) bool { return len(c) == 5 }))
}
