package biz

import (
	"context"
	"iter"

	"github.com/paulmach/orb"
)

// Region 可判断点包含关系的区域（面或估计圆）。
type Region interface {
	Contains(pt orb.Point) bool
}

// AddressCandidate 地址链候选祖先。
type AddressCandidate struct {
	PlaceID     int64
	RankAddress int
	RankSearch  int
	Distance    float64
	IsEstimated bool
	Centroid    orb.Point
	Area        Region
	Tokens      []int64
	Postcode    string
	CountryCode string
}

// LocatorEntry 空间定位器中的一条记录。
type LocatorEntry struct {
	PlaceID     int64
	Partition   int
	Class       string
	Type        string
	RankSearch  int
	RankAddress int
	Geometry    orb.Geometry
	Centroid    orb.Point
	NameTokens  []int64
	Postcode    string
	CountryCode string
	// Estimated 地名点，覆盖范围按 rank 估计
	Estimated bool
}

// LocatorEntryOf 由索引结果构造定位器记录，不需要进入定位器时返回 nil。
func LocatorEntryOf(p *Place, nameTokens []int64) *LocatorEntry {
	e := &LocatorEntry{
		PlaceID:     p.PlaceID,
		Partition:   p.Partition,
		Class:       p.Class,
		Type:        p.Type,
		RankSearch:  p.RankSearch,
		RankAddress: p.RankAddress,
		Geometry:    p.Geometry,
		Centroid:    p.Centroid,
		NameTokens:  nameTokens,
		Postcode:    p.Postcode,
		CountryCode: p.CountryCode,
		Estimated:   p.IsPlaceNode(),
	}
	switch {
	case p.RankAddress > 0 && p.RankAddress <= 25:
		return e
	case p.IsRoad():
		return e
	case p.RankSearch >= 16 && p.RankSearch <= 25 && len(nameTokens) > 0:
		return e
	}
	return nil
}

// SpatialLocator 单个分区的空间查询。
type SpatialLocator interface {
	// NearestAddressCandidates 按 (rank_address, 估计, 距离) 升序惰性返回候选
	NearestAddressCandidates(ctx context.Context, geom orb.Geometry, centroid orb.Point, maxRank int) iter.Seq[AddressCandidate]
	NearestNamedRoad(ctx context.Context, pt orb.Point, tokens []int64) (int64, bool)
	NearestNamedPlace(ctx context.Context, pt orb.Point, tokens []int64) (int64, bool)
	NearestRoad(ctx context.Context, pt orb.Point) (int64, bool)
	NearestParallelRoad(ctx context.Context, line orb.LineString) (int64, bool)
	// AreaContaining rank_address 5-25 中最高的包含面
	AreaContaining(ctx context.Context, pt orb.Point) (int64, bool)
}

// LocatorRegistry 分区到定位器的映射。
type LocatorRegistry interface {
	For(partition int) (SpatialLocator, error)
	Upsert(e *LocatorEntry) error
	Remove(placeID int64)
	Len() int
}
