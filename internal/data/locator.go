package data

import (
	"cmp"
	"context"
	"iter"
	"math"
	"slices"
	"sync"

	"nominatim-indexer/internal/biz"
	"nominatim-indexer/internal/metrics"

	geohash "github.com/TomiHiltunen/geohash-golang"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// locatorRegistry 每个分区一个内存定位器。
type locatorRegistry struct {
	mu         sync.RWMutex
	partitions map[int]*memLocator
	owner      map[int64]int
}

// NewLocatorRegistry 分区 0 以及配置中出现的分区。
func NewLocatorRegistry(settings *biz.Settings) biz.LocatorRegistry {
	reg := &locatorRegistry{
		partitions: map[int]*memLocator{0: newMemLocator(settings)},
		owner:      map[int64]int{},
	}
	for _, part := range settings.Partitions {
		if _, ok := reg.partitions[part]; !ok {
			reg.partitions[part] = newMemLocator(settings)
		}
	}
	return reg
}

func (r *locatorRegistry) For(partition int) (biz.SpatialLocator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	loc, ok := r.partitions[partition]
	if !ok {
		return nil, biz.ErrUnknownPartition
	}
	return loc, nil
}

func (r *locatorRegistry) Upsert(e *biz.LocatorEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	loc, ok := r.partitions[e.Partition]
	if !ok {
		return biz.ErrUnknownPartition
	}
	if prev, ok := r.owner[e.PlaceID]; ok && prev != e.Partition {
		r.partitions[prev].remove(e.PlaceID)
	}
	loc.upsert(e)
	r.owner[e.PlaceID] = e.Partition
	return nil
}

func (r *locatorRegistry) Remove(placeID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if part, ok := r.owner[placeID]; ok {
		r.partitions[part].remove(placeID)
		delete(r.owner, placeID)
	}
}

func (r *locatorRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owner)
}

type locEntry struct {
	biz.LocatorEntry
	bound  orb.Bound
	region biz.Region
	cells  []string
	radius float64
}

func (e *locEntry) isArea() bool {
	return !e.Estimated && biz.KindOf(e.Geometry) == biz.KindArea && e.RankAddress > 0 && e.RankAddress <= 25
}

func (e *locEntry) isEstimated() bool {
	return e.Estimated && e.RankAddress > 0 && e.RankAddress <= 25
}

func (e *locEntry) isRoad() bool {
	return e.RankSearch >= 26 && e.RankSearch <= 27
}

func (e *locEntry) isNamedPlace() bool {
	return e.RankSearch >= 16 && e.RankSearch <= 25 && len(e.NameTokens) > 0
}

type polygonRegion struct {
	geom orb.Geometry
}

func (r polygonRegion) Contains(pt orb.Point) bool {
	return biz.Contains(r.geom, pt)
}

type circleRegion struct {
	center orb.Point
	radius float64
}

func (r circleRegion) Contains(pt orb.Point) bool {
	return planar.Distance(r.center, pt) <= r.radius
}

// memLocator 单分区内存定位器：面与估计圆线性扫描，道路按 geohash 前缀分桶。
type memLocator struct {
	mu        sync.RWMutex
	settings  *biz.Settings
	entries   map[int64]*locEntry
	areas     map[int64]*locEntry
	estimated map[int64]*locEntry
	places    map[int64]*locEntry
	roads     map[string]map[int64]*locEntry
}

func newMemLocator(settings *biz.Settings) *memLocator {
	return &memLocator{
		settings:  settings,
		entries:   map[int64]*locEntry{},
		areas:     map[int64]*locEntry{},
		estimated: map[int64]*locEntry{},
		places:    map[int64]*locEntry{},
		roads:     map[string]map[int64]*locEntry{},
	}
}

func (l *memLocator) upsert(le *biz.LocatorEntry) {
	e := &locEntry{LocatorEntry: *le, bound: le.Geometry.Bound()}
	if e.Estimated {
		e.radius = l.settings.PlaceDiameter(e.RankSearch)
		e.region = circleRegion{center: e.Centroid, radius: e.radius}
		e.bound = orb.Bound{Min: e.Centroid, Max: e.Centroid}.Pad(e.radius)
	} else {
		e.region = polygonRegion{geom: e.Geometry}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.removeLocked(e.PlaceID)
	l.entries[e.PlaceID] = e
	if e.isArea() {
		l.areas[e.PlaceID] = e
	}
	if e.isEstimated() {
		l.estimated[e.PlaceID] = e
	}
	if e.isNamedPlace() {
		l.places[e.PlaceID] = e
	}
	if e.isRoad() {
		e.cells = l.cellsFor(e.Geometry.Bound())
		for _, c := range e.cells {
			if l.roads[c] == nil {
				l.roads[c] = map[int64]*locEntry{}
			}
			l.roads[c][e.PlaceID] = e
		}
	}
}

func (l *memLocator) remove(id int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.removeLocked(id)
}

func (l *memLocator) removeLocked(id int64) {
	e, ok := l.entries[id]
	if !ok {
		return
	}
	delete(l.entries, id)
	delete(l.areas, id)
	delete(l.estimated, id)
	delete(l.places, id)
	for _, c := range e.cells {
		delete(l.roads[c], id)
		if len(l.roads[c]) == 0 {
			delete(l.roads, c)
		}
	}
}

func (l *memLocator) precision() int {
	return min(max(l.settings.GridPrecision, 1), 12)
}

// cellSize geohash 单元在当前精度下的经纬度跨度。
func (l *memLocator) cellSize() (float64, float64) {
	bits := 5 * l.precision()
	lonBits := (bits + 1) / 2
	latBits := bits / 2
	return 360 / math.Exp2(float64(lonBits)), 180 / math.Exp2(float64(latBits))
}

// cellsFor 覆盖外包框的 geohash 前缀集合。
func (l *memLocator) cellsFor(b orb.Bound) []string {
	w, h := l.cellSize()
	p := l.precision()
	seen := map[string]struct{}{}
	var out []string
	add := func(x, y float64) {
		c := geohash.Encode(clampLat(y), clampLon(x))[:p]
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	for x := b.Min[0]; x < b.Max[0]+w; x += w {
		for y := b.Min[1]; y < b.Max[1]+h; y += h {
			add(math.Min(x, b.Max[0]), math.Min(y, b.Max[1]))
		}
	}
	return out
}

func clampLat(v float64) float64 {
	return math.Max(-90, math.Min(90, v))
}

func clampLon(v float64) float64 {
	return math.Max(-180, math.Min(180, v))
}

// roadsNear 与外包框相交的格子中的道路。
func (l *memLocator) roadsNear(b orb.Bound) map[int64]*locEntry {
	out := map[int64]*locEntry{}
	for _, c := range l.cellsFor(b) {
		for id, e := range l.roads[c] {
			out[id] = e
		}
	}
	return out
}

// 16 级地址（城市）按 rank_search 缩放距离，使真正的城市优先于同级的小地名。
func rankDistanceFactor(rankAddress, rankSearch int) float64 {
	if rankAddress != 16 {
		return 1
	}
	switch rankSearch {
	case 15:
		return 0.2
	case 16:
		return 0.25
	case 18:
		return 0.5
	}
	return 1
}

func (l *memLocator) NearestAddressCandidates(ctx context.Context, geom orb.Geometry, centroid orb.Point, maxRank int) iter.Seq[biz.AddressCandidate] {
	l.mu.RLock()
	var cands []biz.AddressCandidate
	for _, e := range l.areas {
		if e.RankAddress >= maxRank || !e.bound.Contains(centroid) || !e.region.Contains(centroid) {
			continue
		}
		cands = append(cands, l.candidate(e, centroid))
	}
	for _, e := range l.estimated {
		if e.RankAddress >= maxRank || !e.region.Contains(centroid) {
			continue
		}
		cands = append(cands, l.candidate(e, centroid))
	}
	l.mu.RUnlock()

	slices.SortFunc(cands, func(a, b biz.AddressCandidate) int {
		if c := cmp.Compare(a.RankAddress, b.RankAddress); c != 0 {
			return c
		}
		if a.IsEstimated != b.IsEstimated {
			if a.IsEstimated {
				return 1
			}
			return -1
		}
		if c := cmp.Compare(a.Distance*rankDistanceFactor(a.RankAddress, a.RankSearch), b.Distance*rankDistanceFactor(b.RankAddress, b.RankSearch)); c != 0 {
			return c
		}
		return cmp.Compare(a.PlaceID, b.PlaceID)
	})
	return func(yield func(biz.AddressCandidate) bool) {
		for _, c := range cands {
			if ctx.Err() != nil || !yield(c) {
				return
			}
		}
	}
}

func (l *memLocator) candidate(e *locEntry, centroid orb.Point) biz.AddressCandidate {
	return biz.AddressCandidate{
		PlaceID:     e.PlaceID,
		RankAddress: e.RankAddress,
		RankSearch:  e.RankSearch,
		Distance:    planar.Distance(e.Centroid, centroid),
		IsEstimated: e.Estimated,
		Centroid:    e.Centroid,
		Area:        e.region,
		Tokens:      e.NameTokens,
		Postcode:    e.Postcode,
		CountryCode: e.CountryCode,
	}
}

func sharesToken(a, b []int64) bool {
	for _, x := range a {
		if slices.Contains(b, x) {
			return true
		}
	}
	return false
}

func (l *memLocator) NearestNamedRoad(ctx context.Context, pt orb.Point, tokens []int64) (int64, bool) {
	r := l.settings.NamedRoadRadius
	l.mu.RLock()
	defer l.mu.RUnlock()
	id, ok := nearest(l.roadsNear(orb.Bound{Min: pt, Max: pt}.Pad(r)), pt, r, func(e *locEntry) bool {
		return sharesToken(e.NameTokens, tokens)
	})
	return observed("named_road", id, ok)
}

func (l *memLocator) NearestNamedPlace(ctx context.Context, pt orb.Point, tokens []int64) (int64, bool) {
	r := l.settings.NamedPlaceRadius
	l.mu.RLock()
	defer l.mu.RUnlock()
	id, ok := nearest(l.places, pt, r, func(e *locEntry) bool {
		return sharesToken(e.NameTokens, tokens)
	})
	return observed("named_place", id, ok)
}

// NearestRoad 半径从起始值倍增直到找到道路或超过上限。
func (l *memLocator) NearestRoad(ctx context.Context, pt orb.Point) (int64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for r := l.settings.RoadRadiusStart; r < l.settings.RoadRadiusMax; r *= 2 {
		if ctx.Err() != nil {
			return 0, false
		}
		if id, ok := nearest(l.roadsNear(orb.Bound{Min: pt, Max: pt}.Pad(r)), pt, r, nil); ok {
			return observed("road", id, true)
		}
	}
	return observed("road", 0, false)
}

// NearestParallelRoad 起点、中点、终点都在半径内的道路中距离和最小者。
func (l *memLocator) NearestParallelRoad(ctx context.Context, line orb.LineString) (int64, bool) {
	if len(line) < 2 {
		return 0, false
	}
	samples := []orb.Point{line[0], line[len(line)/2], line[len(line)-1]}
	l.mu.RLock()
	defer l.mu.RUnlock()
	for r := l.settings.ParallelRoadStart; r <= l.settings.ParallelRoadMax; r *= 2 {
		var (
			best    int64
			bestSum = math.Inf(1)
		)
		for _, e := range l.roadsNear(line.Bound().Pad(r)) {
			sum := 0.0
			within := true
			for _, s := range samples {
				d := planar.DistanceFrom(e.Geometry, s)
				if d > r {
					within = false
					break
				}
				sum += d
			}
			if within && (sum < bestSum || sum == bestSum && e.PlaceID < best) {
				best, bestSum = e.PlaceID, sum
			}
		}
		if best != 0 {
			return observed("parallel_road", best, true)
		}
	}
	return observed("parallel_road", 0, false)
}

// AreaContaining rank_address 5-25 中最高的包含面，同级取面积较小者。
func (l *memLocator) AreaContaining(ctx context.Context, pt orb.Point) (int64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var best *locEntry
	for _, e := range l.areas {
		if e.RankAddress < 5 || e.RankAddress > 25 || !e.bound.Contains(pt) || !e.region.Contains(pt) {
			continue
		}
		if best == nil || e.RankAddress > best.RankAddress ||
			e.RankAddress == best.RankAddress && biz.Area(e.Geometry) < biz.Area(best.Geometry) {
			best = e
		}
	}
	if best == nil {
		return observed("area", 0, false)
	}
	return observed("area", best.PlaceID, true)
}

func observed(kind string, id int64, ok bool) (int64, bool) {
	result := "miss"
	if ok {
		result = "hit"
	}
	metrics.LocatorLookupsTotal.WithLabelValues(kind, result).Inc()
	return id, ok
}

func nearest(entries map[int64]*locEntry, pt orb.Point, radius float64, accept func(*locEntry) bool) (int64, bool) {
	var (
		best     int64
		bestDist = math.Inf(1)
	)
	for _, e := range entries {
		if accept != nil && !accept(e) {
			continue
		}
		d := planar.DistanceFrom(e.Geometry, pt)
		if d > radius {
			continue
		}
		if d < bestDist || d == bestDist && e.PlaceID < best {
			best, bestDist = e.PlaceID, d
		}
	}
	return best, best != 0
}
