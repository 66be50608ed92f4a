package biz

import (
	"context"
	"iter"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb"
)

func square(minX, minY, maxX, maxY float64) orb.Polygon {
	return orb.Polygon{{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY}}}
}

func clonePlace(p *Place) *Place {
	cp := *p
	return &cp
}

// memPlaces 内存 PlaceRepo。
type memPlaces struct {
	mu     sync.Mutex
	places map[int64]*Place
	lines  map[int64][]*AddressLine
	search map[int64]*SearchEntry
	next   int64
	// beforeCommit 持锁调用，可直接修改 places
	beforeCommit func(m *memPlaces, p *Place)
}

func newMemPlaces(places ...*Place) *memPlaces {
	m := &memPlaces{
		places: map[int64]*Place{},
		lines:  map[int64][]*AddressLine{},
		search: map[int64]*SearchEntry{},
		next:   1000,
	}
	for _, p := range places {
		m.put(p)
	}
	return m
}

func (m *memPlaces) put(p *Place) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.Centroid == (orb.Point{}) && p.Geometry != nil {
		p.Centroid = ComputeCentroid(p.Geometry)
	}
	m.places[p.PlaceID] = p
}

func (m *memPlaces) status(id int64) (IndexedStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.places[id]
	if !ok {
		return 0, false
	}
	return p.IndexedStatus, true
}

func (m *memPlaces) place(id int64) *Place {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.places[id]; ok {
		return clonePlace(p)
	}
	return nil
}

func (m *memPlaces) filter(fn func(*Place) bool) []*Place {
	var out []*Place
	for _, id := range slices.Sorted(maps.Keys(m.places)) {
		if p := m.places[id]; fn(p) {
			out = append(out, clonePlace(p))
		}
	}
	return out
}

func placeIDs(places []*Place) []int64 {
	ids := make([]int64, len(places))
	for i, p := range places {
		ids[i] = p.PlaceID
	}
	return ids
}

func (m *memPlaces) Get(_ context.Context, id int64) (*Place, error) {
	if p := m.place(id); p != nil {
		return p, nil
	}
	return nil, ErrPlaceNotFound
}

func (m *memPlaces) GetByOSM(_ context.Context, osmType string, osmID int64, class string) (*Place, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := m.filter(func(p *Place) bool {
		return p.OSMType == osmType && p.OSMID == osmID && p.Class == class
	})
	if len(found) == 0 {
		return nil, ErrPlaceNotFound
	}
	return found[0], nil
}

func (m *memPlaces) ListByOSM(_ context.Context, osmType string, osmID int64) ([]*Place, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter(func(p *Place) bool { return p.OSMType == osmType && p.OSMID == osmID }), nil
}

func (m *memPlaces) Insert(_ context.Context, p *Place) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	p.PlaceID = m.next
	m.places[p.PlaceID] = clonePlace(p)
	return p.PlaceID, nil
}

func (m *memPlaces) UpdateSource(_ context.Context, p *Place) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.places[p.PlaceID]
	if !ok {
		return ErrPlaceNotFound
	}
	cp := clonePlace(p)
	cp.ParentPlaceID = cur.ParentPlaceID
	cp.LinkedPlaceID = cur.LinkedPlaceID
	cp.MergedName, cp.MergedExtraTags = cur.MergedName, cur.MergedExtraTags
	m.places[p.PlaceID] = cp
	return nil
}

func (m *memPlaces) MarkDeleted(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.places[id]; ok {
		p.IndexedStatus = StatusPendingDelete
	}
	return nil
}

func (m *memPlaces) RaiseReindex(_ context.Context, ids []int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.raise(ids), nil
}

func (m *memPlaces) raise(ids []int64) int64 {
	var n int64
	for _, id := range ids {
		if p, ok := m.places[id]; ok && p.IndexedStatus == StatusDone {
			p.IndexedStatus = StatusNeedsReindex
			n++
		}
	}
	return n
}

func (m *memPlaces) PendingRanks(_ context.Context) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[int]struct{}{}
	for _, p := range m.places {
		if p.IndexedStatus.Pending() {
			seen[p.RankSearch] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen)), nil
}

func (m *memPlaces) ListPending(_ context.Context, rankSearch int) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return placeIDs(m.filter(func(p *Place) bool {
		return p.IndexedStatus.Pending() && p.RankSearch == rankSearch
	})), nil
}

func (m *memPlaces) ListPendingDeletes(_ context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return placeIDs(m.filter(func(p *Place) bool { return p.IndexedStatus == StatusPendingDelete })), nil
}

func (m *memPlaces) CountByStatus(_ context.Context) (map[IndexedStatus]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[IndexedStatus]int64{}
	for _, p := range m.places {
		out[p.IndexedStatus]++
	}
	return out, nil
}

func (m *memPlaces) ListInBound(_ context.Context, b orb.Bound) ([]*Place, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter(func(p *Place) bool { return b.Contains(p.Centroid) }), nil
}

func (m *memPlaces) ListPlaceNodesInBound(_ context.Context, b orb.Bound) ([]*Place, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter(func(p *Place) bool {
		return b.Contains(p.Centroid) && p.Class == "place" && p.OSMType == OSMNode &&
			p.RankSearch < 26 && p.IndexedStatus != StatusPendingDelete
	}), nil
}

func (m *memPlaces) ListBoundariesCovering(_ context.Context, pt orb.Point) ([]*Place, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter(func(p *Place) bool {
		return p.IsAdministrative() && p.Geometry.Bound().Contains(pt) && p.IndexedStatus != StatusPendingDelete
	}), nil
}

func (m *memPlaces) ListLinkedTo(_ context.Context, id int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return placeIDs(m.filter(func(p *Place) bool { return p.LinkedPlaceID == id })), nil
}

func (m *memPlaces) AddressLines(_ context.Context, id int64) ([]*AddressLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.lines[id]), nil
}

func (m *memPlaces) SearchEntry(_ context.Context, id int64) (*SearchEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.search[id], nil
}

func (m *memPlaces) CommitPass(_ context.Context, res *PassResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := res.Place
	if m.beforeCommit != nil {
		m.beforeCommit(m, p)
	}
	cur, ok := m.places[p.PlaceID]
	if !ok || cur.IndexedStatus != res.ObservedStatus || cur.UpdatedAt != p.UpdatedAt {
		return ErrStatusChanged
	}
	cp := clonePlace(p)
	cp.IndexedStatus = StatusDone
	cp.IndexedDate = time.Now()
	cp.LinkedPlaceID = cur.LinkedPlaceID
	m.places[p.PlaceID] = cp
	delete(m.lines, p.PlaceID)
	delete(m.search, p.PlaceID)
	if !res.Suppressed {
		if len(res.Lines) > 0 {
			m.lines[p.PlaceID] = res.Lines
		}
		if res.Search != nil {
			m.search[p.PlaceID] = res.Search
		}
	}
	raise := slices.Clone(res.Raise)
	for id, target := range res.Links {
		if q, ok := m.places[id]; ok {
			q.LinkedPlaceID = target
		}
		raise = append(raise, id)
	}
	m.raise(raise)
	return nil
}

func (m *memPlaces) Delete(_ context.Context, p *Place) (*DeleteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.places[p.PlaceID]
	if !ok || cur.IndexedStatus != StatusPendingDelete {
		return nil, ErrStatusChanged
	}
	var deps []ReindexEvent
	for _, c := range m.filter(func(c *Place) bool { return c.ParentPlaceID == p.PlaceID }) {
		deps = append(deps, ReindexEvent{PlaceID: c.PlaceID})
	}
	for _, id := range slices.Sorted(maps.Keys(m.lines)) {
		kept := m.lines[id][:0]
		for _, l := range m.lines[id] {
			if l.AncestorPlaceID == p.PlaceID {
				deps = append(deps, ReindexEvent{PlaceID: id})
				continue
			}
			kept = append(kept, l)
		}
		m.lines[id] = kept
	}
	linked := placeIDs(m.filter(func(c *Place) bool { return c.LinkedPlaceID == p.PlaceID }))

	delete(m.places, p.PlaceID)
	delete(m.lines, p.PlaceID)
	delete(m.search, p.PlaceID)
	for _, c := range m.places {
		if c.ParentPlaceID == p.PlaceID {
			c.ParentPlaceID = 0
		}
		if c.LinkedPlaceID == p.PlaceID {
			c.LinkedPlaceID = 0
		}
	}
	res := &DeleteResult{Dependents: EventIDs(deps), Unlinked: linked}
	m.raise(append(slices.Clone(res.Dependents), linked...))
	return res, nil
}

func (m *memPlaces) ScanIndexed(_ context.Context, fn func(*Place, *SearchEntry) error) error {
	m.mu.Lock()
	places := m.filter(func(p *Place) bool { return p.IndexedStatus == StatusDone && p.LinkedPlaceID == 0 })
	entries := maps.Clone(m.search)
	m.mu.Unlock()
	for _, p := range places {
		if err := fn(p, entries[p.PlaceID]); err != nil {
			return err
		}
	}
	return nil
}

// memSources 内存 SourceRepo。
type memSources struct {
	relations map[int64]*Relation
	ways      map[int64][]int64
}

func newMemSources() *memSources {
	return &memSources{relations: map[int64]*Relation{}, ways: map[int64][]int64{}}
}

func (s *memSources) SaveRelation(_ context.Context, r *Relation) error {
	s.relations[r.OSMID] = r
	return nil
}

func (s *memSources) SaveWay(_ context.Context, wayID int64, nodes []int64) error {
	s.ways[wayID] = nodes
	return nil
}

func (s *memSources) Relation(_ context.Context, osmID int64) (*Relation, error) {
	return s.relations[osmID], nil
}

func (s *memSources) RelationsWithMember(_ context.Context, memberType string, ref int64) ([]*Relation, error) {
	var out []*Relation
	for _, id := range slices.Sorted(maps.Keys(s.relations)) {
		r := s.relations[id]
		if slices.ContainsFunc(r.Members, func(m RelationMember) bool { return m.Type == memberType && m.Ref == ref }) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memSources) WaysWithNode(_ context.Context, nodeID int64) ([]int64, error) {
	var out []int64
	for _, id := range slices.Sorted(maps.Keys(s.ways)) {
		if slices.Contains(s.ways[id], nodeID) {
			out = append(out, id)
		}
	}
	return out, nil
}

// boxRegion 外包框区域。
type boxRegion orb.Bound

func (b boxRegion) Contains(pt orb.Point) bool {
	return orb.Bound(b).Contains(pt)
}

// stubLocator 返回预置结果的定位器。
type stubLocator struct {
	candidates  []AddressCandidate
	namedRoads  map[int64]int64
	namedPlaces map[int64]int64
	road        int64
	parallel    int64
	area        int64
}

func (l *stubLocator) NearestAddressCandidates(_ context.Context, _ orb.Geometry, _ orb.Point, maxRank int) iter.Seq[AddressCandidate] {
	return func(yield func(AddressCandidate) bool) {
		for _, c := range l.candidates {
			if c.RankAddress >= maxRank {
				continue
			}
			if !yield(c) {
				return
			}
		}
	}
}

func byToken(index map[int64]int64, tokens []int64) (int64, bool) {
	for _, t := range tokens {
		if id, ok := index[t]; ok {
			return id, true
		}
	}
	return 0, false
}

func (l *stubLocator) NearestNamedRoad(_ context.Context, _ orb.Point, tokens []int64) (int64, bool) {
	return byToken(l.namedRoads, tokens)
}

func (l *stubLocator) NearestNamedPlace(_ context.Context, _ orb.Point, tokens []int64) (int64, bool) {
	return byToken(l.namedPlaces, tokens)
}

func (l *stubLocator) NearestRoad(context.Context, orb.Point) (int64, bool) {
	return l.road, l.road != 0
}

func (l *stubLocator) NearestParallelRoad(context.Context, orb.LineString) (int64, bool) {
	return l.parallel, l.parallel != 0
}

func (l *stubLocator) AreaContaining(context.Context, orb.Point) (int64, bool) {
	return l.area, l.area != 0
}

// stubRegistry 只注册给定分区。
type stubRegistry struct {
	mu       sync.Mutex
	locators map[int]SpatialLocator
	entries  map[int64]*LocatorEntry
}

func newStubRegistry(loc SpatialLocator) *stubRegistry {
	return &stubRegistry{
		locators: map[int]SpatialLocator{0: loc},
		entries:  map[int64]*LocatorEntry{},
	}
}

func (r *stubRegistry) For(partition int) (SpatialLocator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loc, ok := r.locators[partition]
	if !ok {
		return nil, ErrUnknownPartition
	}
	return loc, nil
}

func (r *stubRegistry) Upsert(e *LocatorEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.locators[e.Partition]; !ok {
		return ErrUnknownPartition
	}
	r.entries[e.PlaceID] = e
	return nil
}

func (r *stubRegistry) Remove(placeID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, placeID)
}

func (r *stubRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *stubRegistry) has(placeID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[placeID]
	return ok
}

// fakeTokenizer 小写并压缩空白，按首次出现顺序分配 id。
type fakeTokenizer struct {
	mu       sync.Mutex
	ids      map[TokenKey]int64
	frequent map[string]bool
}

func newFakeTokenizer(frequent ...string) *fakeTokenizer {
	t := &fakeTokenizer{ids: map[TokenKey]int64{}, frequent: map[string]bool{}}
	for _, w := range frequent {
		t.frequent[w] = true
	}
	return t
}

func (t *fakeTokenizer) Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func (t *fakeTokenizer) TokenFor(_ context.Context, key TokenKey) (int64, bool, error) {
	if key.Text == "" {
		return 0, false, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.ids[key]
	if !ok {
		id = int64(len(t.ids) + 1)
		t.ids[key] = id
	}
	if key.Kind == TokenWord && t.frequent[key.Text] {
		return id, false, nil
	}
	return id, true, nil
}

func (t *fakeTokenizer) TokensForWords(ctx context.Context, text string) ([]int64, error) {
	var out []int64
	for _, w := range strings.Fields(t.Normalize(text)) {
		id, ok, err := t.TokenFor(ctx, TokenKey{Kind: TokenWord, Text: w})
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// id 测试断言用，与 TokenFor 共享分配。
func (t *fakeTokenizer) id(kind TokenKind, text string) int64 {
	id, _, _ := t.TokenFor(context.Background(), TokenKey{Kind: kind, Text: text})
	return id
}

// memQueue 不去重的事件队列。
type memQueue struct {
	mu     sync.Mutex
	events []ReindexEvent
}

func (q *memQueue) Publish(_ context.Context, events ...ReindexEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, events...)
	return nil
}

func (q *memQueue) Drain(_ context.Context, max int) ([]ReindexEvent, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.events)
	if max > 0 && max < n {
		n = max
	}
	out := slices.Clone(q.events[:n])
	q.events = q.events[n:]
	return out, nil
}

func (q *memQueue) Len(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.events)), nil
}

// recordingObserver 记录每个要素的结果与 rank。
type recordingObserver struct {
	mu     sync.Mutex
	ranks  []int
	events []ReindexEvent
}

func (o *recordingObserver) ObservePlace(_ Outcome, rankSearch int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ranks = append(o.ranks, rankSearch)
}

func (o *recordingObserver) ObserveEvents(events []ReindexEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, events...)
}
