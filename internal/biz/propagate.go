package biz

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ReindexPropagator 计算一个要素变化后需要重新索引的依赖。
// 每条规则只标记 (rank_search, rank_address) 严格更细的要素，级联必然终止。
type ReindexPropagator struct {
	places   PlaceRepo
	settings *Settings
	log      *log.Helper
}

func NewReindexPropagator(places PlaceRepo, settings *Settings, logger log.Logger) *ReindexPropagator {
	return &ReindexPropagator{places: places, settings: settings, log: log.NewHelper(logger)}
}

// Dependents 返回 p 索引完成后需要标记的依赖事件。
func (rp *ReindexPropagator) Dependents(ctx context.Context, p *Place) ([]ReindexEvent, error) {
	switch {
	case p.Kind() == KindArea && p.RankAddress > 0 && p.RankAddress <= 25:
		if Area(p.Geometry) >= rp.settings.AreaCascadeMax {
			return nil, nil
		}
		return rp.areaDependents(ctx, p)
	case p.Kind() == KindPoint && p.RankSearch < 30:
		return rp.pointDependents(ctx, p)
	case p.Kind() == KindLine && p.IsRoad():
		return rp.roadDependents(ctx, p)
	}
	return nil, nil
}

// areaDependents 面内 rank_address 为 0 或更细的要素，以及面内的地名点。
func (rp *ReindexPropagator) areaDependents(ctx context.Context, p *Place) ([]ReindexEvent, error) {
	places, err := rp.places.ListInBound(ctx, p.Geometry.Bound())
	if err != nil {
		return nil, err
	}
	var events []ReindexEvent
	for _, c := range places {
		if c.PlaceID == p.PlaceID || c.IndexedStatus != StatusDone {
			continue
		}
		if !Contains(p.Geometry, c.Centroid) {
			continue
		}
		finer := c.RankSearch >= p.RankSearch && (c.RankAddress == 0 || c.RankAddress > p.RankAddress)
		placeNode := c.IsPlaceNode() && c.RankSearch > p.RankSearch
		if finer || placeNode {
			events = append(events, ReindexEvent{PlaceID: c.PlaceID, Reason: ReasonAreaChanged, Source: p.PlaceID})
		}
	}
	return events, nil
}

// pointDependents 按 rank 估计半径内 rank_search 更大的要素。
func (rp *ReindexPropagator) pointDependents(ctx context.Context, p *Place) ([]ReindexEvent, error) {
	radius := rp.settings.PlaceDiameter(p.RankSearch)
	center := p.Centroid
	places, err := rp.places.ListInBound(ctx, orb.Bound{Min: center, Max: center}.Pad(radius))
	if err != nil {
		return nil, err
	}
	var events []ReindexEvent
	for _, c := range places {
		if c.PlaceID == p.PlaceID || c.IndexedStatus != StatusDone || c.RankSearch <= p.RankSearch {
			continue
		}
		if planar.Distance(center, c.Centroid) <= radius {
			events = append(events, ReindexEvent{PlaceID: c.PlaceID, Reason: ReasonPointChanged, Source: p.PlaceID})
		}
	}
	return events, nil
}

// roadDependents 道路附近的 POI。
func (rp *ReindexPropagator) roadDependents(ctx context.Context, p *Place) ([]ReindexEvent, error) {
	radius := rp.settings.RoadCascadeRadius
	places, err := rp.places.ListInBound(ctx, p.Geometry.Bound().Pad(radius))
	if err != nil {
		return nil, err
	}
	var events []ReindexEvent
	for _, c := range places {
		if c.PlaceID == p.PlaceID || c.IndexedStatus != StatusDone || !c.IsPOIGrade() {
			continue
		}
		if planar.DistanceFrom(p.Geometry, c.Centroid) <= radius {
			events = append(events, ReindexEvent{PlaceID: c.PlaceID, Reason: ReasonRoadChanged, Source: p.PlaceID})
		}
	}
	return events, nil
}

// DeleteEvents 删除后依赖与被解除关联的点。
func DeleteEvents(source int64, res *DeleteResult) []ReindexEvent {
	events := make([]ReindexEvent, 0, len(res.Dependents)+len(res.Unlinked))
	for _, id := range res.Dependents {
		events = append(events, ReindexEvent{PlaceID: id, Reason: ReasonParentDeleted, Source: source})
	}
	for _, id := range res.Unlinked {
		events = append(events, ReindexEvent{PlaceID: id, Reason: ReasonUnlinked, Source: source})
	}
	return events
}

// EventIDs 事件中的要素 id，去重。
func EventIDs(events []ReindexEvent) []int64 {
	ids := make([]int64, 0, len(events))
	seen := make(map[int64]struct{}, len(events))
	for _, e := range events {
		if _, ok := seen[e.PlaceID]; ok {
			continue
		}
		seen[e.PlaceID] = struct{}{}
		ids = append(ids, e.PlaceID)
	}
	return ids
}
