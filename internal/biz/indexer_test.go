package biz

import (
	"context"
	"testing"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type indexFixture struct {
	places   *memPlaces
	sources  *memSources
	locator  *stubLocator
	registry *stubRegistry
	events   *memQueue
	tok      *fakeTokenizer
	observer *recordingObserver
	settings *Settings
	uc       *IndexUsecase
}

func newIndexFixture(places ...*Place) *indexFixture {
	f := &indexFixture{
		places:   newMemPlaces(places...),
		sources:  newMemSources(),
		locator:  &stubLocator{},
		events:   &memQueue{},
		tok:      newFakeTokenizer(),
		observer: &recordingObserver{},
		settings: DefaultSettings(),
	}
	f.registry = newStubRegistry(f.locator)
	classifier := DefaultRankClassifier()
	logger := log.DefaultLogger
	f.uc = NewIndexUsecase(
		f.places,
		f.registry,
		classifier,
		NewTokenMaterializer(f.tok, f.settings),
		NewAddressResolver(f.places, f.sources, f.registry, f.settings, logger),
		NewLinkedPlaceMerger(f.places, f.sources, classifier, f.tok, logger),
		NewReindexPropagator(f.places, f.settings, logger),
		f.events,
		f.observer,
		logger,
	)
	return f
}

func newPlace(id int64, class, typ string, geom orb.Geometry, status IndexedStatus) *Place {
	p := &Place{
		PlaceID:       id,
		OSMType:       OSMNode,
		OSMID:         id,
		Class:         class,
		Type:          typ,
		Geometry:      geom,
		IndexedStatus: status,
		UpdatedAt:     1,
	}
	if KindOf(geom) != KindPoint {
		p.OSMType = OSMWay
	}
	if r, ok := DefaultRankClassifier().Classify(RankInputOf(p)); ok {
		p.RankSearch, p.RankAddress = r.Search, r.Address
	} else {
		p.RankSearch = 30
	}
	return p
}

func TestIndexPlaceWritesDerivedRows(t *testing.T) {
	cafe := newPlace(1, "amenity", "cafe", orb.Point{0.1, 0.1}, StatusNew)
	cafe.Name = map[string]string{"name": "Blue Cup"}
	cafe.Address = map[string]string{"housenumber": "4;6", "postcode": "12345"}
	f := newIndexFixture(cafe)
	f.locator.candidates = []AddressCandidate{
		{PlaceID: 9, RankAddress: 16, Area: boxRegion(orb.Bound{Max: orb.Point{1, 1}}), Centroid: orb.Point{0.5, 0.5}, Tokens: []int64{500}, CountryCode: "us"},
	}

	outcome, err := f.uc.IndexPlace(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIndexed, outcome)

	p := f.places.place(1)
	assert.Equal(t, StatusDone, p.IndexedStatus)
	assert.Equal(t, "4;6", p.HouseNumber)
	assert.Equal(t, "12345", p.Postcode)
	assert.Equal(t, int64(9), p.ParentPlaceID)
	assert.Equal(t, "us", p.CountryCode)

	entry, err := f.places.SearchEntry(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Contains(t, entry.NameTokens, f.tok.id(TokenName, "blue cup"))
	assert.Contains(t, entry.AddressTokens, int64(500))
	lines, _ := f.places.AddressLines(context.Background(), 1)
	require.Len(t, lines, 1)
	assert.True(t, lines[0].IsAddress)
	assert.False(t, f.registry.has(1))
	assert.Equal(t, []int{30}, f.observer.ranks)
}

func TestIndexPlaceSkipsDonePlaces(t *testing.T) {
	f := newIndexFixture(newPlace(1, "amenity", "cafe", orb.Point{0, 0}, StatusDone))

	outcome, err := f.uc.IndexPlace(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Empty(t, f.observer.ranks)

	outcome, err = f.uc.IndexPlace(context.Background(), 404)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
}

func TestIndexPlaceDropsPostcodeWithoutText(t *testing.T) {
	pc := newPlace(1, "boundary", "postal_code", square(0, 0, 1, 1), StatusNew)
	f := newIndexFixture(pc)

	outcome, err := f.uc.IndexPlace(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDropped, outcome)
	assert.Equal(t, StatusDone, f.places.place(1).IndexedStatus)
	entry, _ := f.places.SearchEntry(context.Background(), 1)
	assert.Nil(t, entry)
	assert.False(t, f.registry.has(1))
}

func TestIndexPlaceSuppressesLinkedPoint(t *testing.T) {
	n := newPlace(2, "place", "city", orb.Point{0.5, 0.5}, StatusNeedsReindex)
	n.LinkedPlaceID = 1
	f := newIndexFixture(n)
	f.places.search[2] = &SearchEntry{PlaceID: 2}
	f.places.lines[2] = []*AddressLine{{PlaceID: 2, AncestorPlaceID: 7}}
	require.NoError(t, f.registry.Upsert(&LocatorEntry{PlaceID: 2}))

	outcome, err := f.uc.IndexPlace(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuppressed, outcome)
	entry, _ := f.places.SearchEntry(context.Background(), 2)
	assert.Nil(t, entry)
	lines, _ := f.places.AddressLines(context.Background(), 2)
	assert.Empty(t, lines)
	assert.False(t, f.registry.has(2))
	assert.Equal(t, int64(1), f.places.place(2).LinkedPlaceID)
}

func TestIndexPlaceLinksBoundaryAndPublishesEvents(t *testing.T) {
	b := newPlace(1, "boundary", "administrative", square(0, 0, 0.5, 0.5), StatusNew)
	b.OSMType = OSMRelation
	b.AdminLevel = 8
	b.RankSearch, b.RankAddress = 16, 16
	b.Name = map[string]string{"name": "Springfield"}
	n := newPlace(2, "place", "city", orb.Point{0.2, 0.3}, StatusDone)
	n.Name = map[string]string{"name": "Springfield", "name:fr": "Springfield-Ville"}
	poi := newPlace(3, "amenity", "cafe", orb.Point{0.1, 0.1}, StatusDone)
	f := newIndexFixture(b, n, poi)

	outcome, err := f.uc.IndexPlace(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIndexed, outcome)

	got := f.places.place(1)
	assert.Equal(t, orb.Point{0.2, 0.3}, got.Centroid)
	assert.Equal(t, "Springfield-Ville", got.MergedName["name:fr"])
	assert.Equal(t, int64(1), f.places.place(2).LinkedPlaceID)

	st, _ := f.places.status(2)
	assert.Equal(t, StatusNeedsReindex, st)
	st, _ = f.places.status(3)
	assert.Equal(t, StatusNeedsReindex, st)

	queued, err := f.events.Drain(context.Background(), 0)
	require.NoError(t, err)
	assert.Contains(t, queued, ReindexEvent{PlaceID: 2, Reason: ReasonLinked, Source: 1})
	assert.Contains(t, queued, ReindexEvent{PlaceID: 3, Reason: ReasonAreaChanged, Source: 1})
	assert.True(t, f.registry.has(1))
}

func TestIndexPlaceStatusChangedDuringPass(t *testing.T) {
	f := newIndexFixture(newPlace(1, "amenity", "cafe", orb.Point{0, 0}, StatusNew))
	f.places.beforeCommit = func(m *memPlaces, p *Place) {
		m.places[p.PlaceID].UpdatedAt++
	}

	_, err := f.uc.IndexPlace(context.Background(), 1)
	assert.True(t, IsStatusChanged(err))
	st, _ := f.places.status(1)
	assert.Equal(t, StatusNew, st)
}

func TestIndexPlaceDeletesPendingDelete(t *testing.T) {
	parent := newPlace(1, "highway", "residential", orb.LineString{{0, 0}, {1, 0}}, StatusPendingDelete)
	child := newPlace(2, "amenity", "cafe", orb.Point{0.5, 0}, StatusDone)
	child.ParentPlaceID = 1
	other := newPlace(3, "amenity", "bar", orb.Point{0.6, 0}, StatusDone)
	f := newIndexFixture(parent, child, other)
	f.places.lines[3] = []*AddressLine{{PlaceID: 3, AncestorPlaceID: 1, IsAddress: true}}
	require.NoError(t, f.registry.Upsert(&LocatorEntry{PlaceID: 1}))

	outcome, err := f.uc.IndexPlace(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeleted, outcome)

	assert.Nil(t, f.places.place(1))
	assert.False(t, f.registry.has(1))
	for _, id := range []int64{2, 3} {
		st, _ := f.places.status(id)
		assert.Equal(t, StatusNeedsReindex, st, "place %d", id)
	}
	assert.Zero(t, f.places.place(2).ParentPlaceID)
	lines, _ := f.places.AddressLines(context.Background(), 3)
	assert.Empty(t, lines)
	queued, _ := f.events.Drain(context.Background(), 0)
	assert.ElementsMatch(t, []int64{2, 3}, EventIDs(queued))
}

func TestIndexPlaceUnknownPartitionOnlyFailsThatPlace(t *testing.T) {
	bad := newPlace(1, "amenity", "cafe", orb.Point{0, 0}, StatusNew)
	bad.Partition = 99
	good := newPlace(2, "amenity", "cafe", orb.Point{0, 0}, StatusNew)
	f := newIndexFixture(bad, good)

	_, err := f.uc.IndexPlace(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUnknownPartition)
	_, err = f.uc.IndexPlace(context.Background(), 2)
	assert.NoError(t, err)

	st, _ := f.places.status(1)
	assert.Equal(t, StatusNew, st)
	st, _ = f.places.status(2)
	assert.Equal(t, StatusDone, st)
}

func TestRebuildLocators(t *testing.T) {
	road := newPlace(1, "highway", "residential", orb.LineString{{0, 0}, {1, 0}}, StatusDone)
	cafe := newPlace(2, "amenity", "cafe", orb.Point{0, 0}, StatusDone)
	pending := newPlace(3, "highway", "primary", orb.LineString{{0, 1}, {1, 1}}, StatusNew)
	f := newIndexFixture(road, cafe, pending)

	n, err := f.uc.RebuildLocators(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, f.registry.has(1))
}
