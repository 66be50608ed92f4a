package biz

import (
	"context"
	"testing"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexed(id int64, class, typ string, rankSearch, rankAddress int, geom orb.Geometry) *Place {
	return &Place{
		PlaceID:       id,
		OSMType:       OSMNode,
		OSMID:         id,
		Class:         class,
		Type:          typ,
		Geometry:      geom,
		RankSearch:    rankSearch,
		RankAddress:   rankAddress,
		IndexedStatus: StatusDone,
	}
}

func eventTargets(events []ReindexEvent, reason ReindexReason) []int64 {
	var ids []int64
	for _, e := range events {
		if e.Reason == reason {
			ids = append(ids, e.PlaceID)
		}
	}
	return ids
}

func TestAreaDependents(t *testing.T) {
	area := &Place{
		PlaceID:     1,
		OSMType:     OSMRelation,
		Class:       "boundary",
		Type:        "administrative",
		Geometry:    square(0, 0, 0.5, 0.5),
		RankSearch:  16,
		RankAddress: 16,
	}
	area.Centroid = ComputeCentroid(area.Geometry)
	pending := indexed(6, "amenity", "bar", 30, 30, orb.Point{0.2, 0.2})
	pending.IndexedStatus = StatusNew
	places := newMemPlaces(
		area,
		indexed(2, "amenity", "cafe", 30, 30, orb.Point{0.1, 0.1}),
		indexed(3, "boundary", "administrative", 8, 8, square(0.1, 0.1, 0.2, 0.2)),
		indexed(4, "amenity", "cafe", 30, 30, orb.Point{0.7, 0.1}),
		indexed(5, "place", "hamlet", 20, 20, orb.Point{0.3, 0.3}),
		pending,
		indexed(7, "natural", "water", 22, 0, square(0.3, 0.3, 0.4, 0.4)),
		indexed(8, "place", "city", 16, 16, orb.Point{0.25, 0.2}),
	)
	rp := NewReindexPropagator(places, DefaultSettings(), log.DefaultLogger)

	events, err := rp.Dependents(context.Background(), area)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 5, 7}, eventTargets(events, ReasonAreaChanged))
	for _, e := range events {
		assert.Equal(t, int64(1), e.Source)
	}
}

func TestAreaDependentsSkipsLargeAreas(t *testing.T) {
	area := &Place{PlaceID: 1, Class: "boundary", Type: "administrative", Geometry: square(0, 0, 2, 2), RankSearch: 8, RankAddress: 8}
	places := newMemPlaces(indexed(2, "amenity", "cafe", 30, 30, orb.Point{1, 1}))
	rp := NewReindexPropagator(places, DefaultSettings(), log.DefaultLogger)

	events, err := rp.Dependents(context.Background(), area)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestPointDependents(t *testing.T) {
	city := indexed(1, "place", "city", 16, 16, orb.Point{0, 0})
	city.Centroid = orb.Point{0, 0}
	places := newMemPlaces(
		city,
		indexed(2, "amenity", "cafe", 30, 30, orb.Point{0.1, 0}),
		indexed(3, "amenity", "cafe", 30, 30, orb.Point{0.2, 0}),
		indexed(4, "boundary", "administrative", 8, 8, orb.Point{0.05, 0}),
		indexed(5, "place", "suburb", 19, 20, orb.Point{0, 0.15}),
	)
	rp := NewReindexPropagator(places, DefaultSettings(), log.DefaultLogger)

	events, err := rp.Dependents(context.Background(), city)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 5}, eventTargets(events, ReasonPointChanged))
}

func TestRoadDependents(t *testing.T) {
	road := indexed(1, "highway", "residential", 26, 26, orb.LineString{{0, 0}, {1, 0}})
	places := newMemPlaces(
		road,
		indexed(2, "amenity", "cafe", 30, 30, orb.Point{0.5, 0.0003}),
		indexed(3, "amenity", "cafe", 30, 30, orb.Point{0.5, 0.01}),
		indexed(4, "place", "locality", 25, 25, orb.Point{0.5, 0.0001}),
	)
	rp := NewReindexPropagator(places, DefaultSettings(), log.DefaultLogger)

	events, err := rp.Dependents(context.Background(), places.place(1))
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, eventTargets(events, ReasonRoadChanged))
}

func TestPOIHasNoDependents(t *testing.T) {
	poi := indexed(1, "amenity", "cafe", 30, 30, orb.Point{0, 0})
	places := newMemPlaces(poi, indexed(2, "amenity", "cafe", 30, 30, orb.Point{0, 0}))
	rp := NewReindexPropagator(places, DefaultSettings(), log.DefaultLogger)

	events, err := rp.Dependents(context.Background(), poi)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestDeleteEvents(t *testing.T) {
	events := DeleteEvents(9, &DeleteResult{Dependents: []int64{1, 2}, Unlinked: []int64{3}})
	assert.Equal(t, []ReindexEvent{
		{PlaceID: 1, Reason: ReasonParentDeleted, Source: 9},
		{PlaceID: 2, Reason: ReasonParentDeleted, Source: 9},
		{PlaceID: 3, Reason: ReasonUnlinked, Source: 9},
	}, events)
}

func TestEventIDs(t *testing.T) {
	ids := EventIDs([]ReindexEvent{{PlaceID: 3}, {PlaceID: 1}, {PlaceID: 3}})
	assert.Equal(t, []int64{3, 1}, ids)
}
