package biz

import (
	"context"
	"iter"
	"strings"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// parentMethod 父级的来源。
type parentMethod int

const (
	parentNone parentMethod = iota
	parentRelation
	parentNamedStreet
	parentNamedPlace
	parentInterpolation
	parentWay
	parentArea
	parentRoad
)

// shortcut 通过关系或名称匹配得到的父级直接继承地址。
func (m parentMethod) shortcut() bool {
	return m == parentRelation || m == parentNamedStreet || m == parentNamedPlace
}

// Resolution 地址解析结果。
type Resolution struct {
	ParentPlaceID int64
	Postcode      string
	CountryCode   string
	Lines         []*AddressLine
	AddressTokens []int64
}

// AddressResolver 计算父级与地址链。
type AddressResolver struct {
	places   PlaceRepo
	sources  SourceRepo
	locators LocatorRegistry
	settings *Settings
	log      *log.Helper
}

func NewAddressResolver(places PlaceRepo, sources SourceRepo, locators LocatorRegistry, settings *Settings, logger log.Logger) *AddressResolver {
	return &AddressResolver{
		places:   places,
		sources:  sources,
		locators: locators,
		settings: settings,
		log:      log.NewHelper(logger),
	}
}

// Resolve 为 p 计算父级、邮编、国家与地址链。p.Centroid 必须已计算。
func (r *AddressResolver) Resolve(ctx context.Context, p *Place, info *TokenInfo) (*Resolution, error) {
	loc, err := r.locators.For(p.Partition)
	if err != nil {
		return nil, err
	}
	res := &Resolution{CountryCode: p.CountryCode, Postcode: info.Postcode}

	if p.IsPOIGrade() {
		parentID, method, err := r.findParentForPOI(ctx, loc, p.OSMType, p.OSMID, p.Geometry, p.Centroid, info, 0)
		if err != nil {
			return nil, err
		}
		if method.shortcut() {
			return r.inheritFromParent(ctx, p, parentID, res)
		}
		res.ParentPlaceID = parentID
	}

	maxRank := p.RankAddress
	if maxRank <= 0 {
		maxRank = p.RankSearch
	}
	r.walk(ctx, loc, p, maxRank, res)
	return res, nil
}

// inheritFromParent 继承父级的邮编、国家与地址 token，并只写一行地址链。
func (r *AddressResolver) inheritFromParent(ctx context.Context, p *Place, parentID int64, res *Resolution) (*Resolution, error) {
	parent, err := r.places.Get(ctx, parentID)
	if err != nil {
		return nil, err
	}
	res.ParentPlaceID = parent.PlaceID
	if res.Postcode == "" {
		res.Postcode = parent.Postcode
	}
	if parent.CountryCode != "" {
		res.CountryCode = parent.CountryCode
	}
	entry, err := r.places.SearchEntry(ctx, parent.PlaceID)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		res.AddressTokens = UnionTokens(entry.AddressTokens, entry.NameTokens)
	}
	res.Lines = []*AddressLine{{
		PlaceID:         p.PlaceID,
		AncestorPlaceID: parent.PlaceID,
		RankAddress:     parent.RankAddress,
		Distance:        planar.DistanceFrom(parent.Geometry, p.Centroid),
		IsAddress:       true,
		FromArea:        false,
	}}
	return res, nil
}

// walk 按 rank 升序遍历候选祖先，每个地址等级至多接受一个。
func (r *AddressResolver) walk(ctx context.Context, loc SpatialLocator, p *Place, maxRank int, res *Resolution) {
	var (
		filled   = map[int]bool{}
		boundary Region
		nodeArea Region
		accepted int64
		tokens   []int64
		postcode string
		country  string
	)
	for c := range loc.NearestAddressCandidates(ctx, p.Geometry, p.Centroid, maxRank) {
		if c.PlaceID == p.PlaceID {
			continue
		}
		isAddress := !filled[c.RankAddress]
		switch {
		case c.IsEstimated && boundary != nil && !boundary.Contains(c.Centroid):
			isAddress = false
		case isAddress && c.IsEstimated && nodeArea != nil:
			isAddress = nodeArea.Contains(c.Centroid)
		case isAddress && !c.IsEstimated && boundary != nil && !countyLevel(c.RankAddress):
			isAddress = boundary.Contains(c.Centroid)
		}
		if isAddress {
			filled[c.RankAddress] = true
			accepted = c.PlaceID
			tokens = append(tokens, c.Tokens...)
			if c.Postcode != "" {
				postcode = c.Postcode
			}
			if c.CountryCode != "" && country == "" {
				country = c.CountryCode
			}
			if !countyLevel(c.RankAddress) {
				if c.IsEstimated {
					nodeArea = c.Area
				} else {
					nodeArea = nil
					boundary = c.Area
				}
			}
		}
		res.Lines = append(res.Lines, &AddressLine{
			PlaceID:         p.PlaceID,
			AncestorPlaceID: c.PlaceID,
			RankAddress:     c.RankAddress,
			Distance:        c.Distance,
			IsAddress:       isAddress,
			FromArea:        !c.IsEstimated,
		})
	}
	if res.ParentPlaceID == 0 {
		res.ParentPlaceID = accepted
	}
	if res.Postcode == "" {
		res.Postcode = postcode
	}
	if res.CountryCode == "" {
		res.CountryCode = country
	}
	res.AddressTokens = UnionTokens(res.AddressTokens, tokens)
}

// countyLevel rank 5 / 11 的要素（如邮编区）不收紧边界。
func countyLevel(rank int) bool {
	return rank == 5 || rank == 11
}

// findParentForPOI 依次尝试关系、名称、插值线、所属 way，最后按几何兜底。
func (r *AddressResolver) findParentForPOI(ctx context.Context, loc SpatialLocator, osmType string, osmID int64, geom orb.Geometry, centroid orb.Point, info *TokenInfo, depth int) (int64, parentMethod, error) {
	if id, err := r.parentFromRelation(ctx, osmType, osmID); err != nil || id != 0 {
		return id, parentRelation, err
	}
	if info.HasStreet() {
		if id, ok := loc.NearestNamedRoad(ctx, centroid, info.StreetTokens); ok {
			return id, parentNamedStreet, nil
		}
	} else if len(info.PlaceTokens) > 0 {
		if id, ok := loc.NearestNamedPlace(ctx, centroid, info.PlaceTokens); ok {
			return id, parentNamedPlace, nil
		}
	}
	if osmType == OSMNode && depth < 2 {
		id, method, err := r.parentFromWays(ctx, loc, osmID, info, depth)
		if err != nil || id != 0 {
			return id, method, err
		}
	}
	if depth > 0 {
		return 0, parentNone, nil
	}
	if info.IsPlaceAddr {
		id, _ := loc.AreaContaining(ctx, centroid)
		return id, parentArea, nil
	}
	if BoundArea(geom) < r.settings.SmallFeatureArea {
		if line, ok := geom.(orb.LineString); ok {
			if id, ok := loc.NearestParallelRoad(ctx, line); ok {
				return id, parentRoad, nil
			}
		}
		if id, ok := loc.NearestRoad(ctx, centroid); ok {
			return id, parentRoad, nil
		}
		return 0, parentNone, nil
	}
	id, _ := loc.AreaContaining(ctx, centroid)
	return id, parentArea, nil
}

// parentFromRelation associatedStreet 关系中角色为 street 的命名道路。
func (r *AddressResolver) parentFromRelation(ctx context.Context, osmType string, osmID int64) (int64, error) {
	rels, err := r.sources.RelationsWithMember(ctx, osmType, osmID)
	if err != nil {
		return 0, err
	}
	for _, rel := range rels {
		if rel.Tags["type"] != "associatedStreet" {
			continue
		}
		for m := range membersWithRole(rel, OSMWay, "street") {
			ways, err := r.places.ListByOSM(ctx, OSMWay, m.Ref)
			if err != nil {
				return 0, err
			}
			for _, w := range ways {
				if w.HasName() && w.IsRoad() {
					return w.PlaceID, nil
				}
			}
		}
	}
	return 0, nil
}

// parentFromWays 节点所属插值线的父级，或所属道路/POI way。
func (r *AddressResolver) parentFromWays(ctx context.Context, loc SpatialLocator, nodeID int64, info *TokenInfo, depth int) (int64, parentMethod, error) {
	wayIDs, err := r.sources.WaysWithNode(ctx, nodeID)
	if err != nil {
		return 0, parentNone, err
	}
	var ways []*Place
	for _, wayID := range wayIDs {
		places, err := r.places.ListByOSM(ctx, OSMWay, wayID)
		if err != nil {
			return 0, parentNone, err
		}
		ways = append(ways, places...)
	}
	for _, w := range ways {
		if w.Class == "place" && w.Type == "houses" && w.ParentPlaceID != 0 {
			return w.ParentPlaceID, parentInterpolation, nil
		}
	}
	for _, w := range ways {
		if w.RankSearch < 26 {
			continue
		}
		if w.RankSearch < 28 {
			return w.PlaceID, parentWay, nil
		}
		id, _, err := r.findParentForPOI(ctx, loc, OSMWay, w.OSMID, w.Geometry, w.Centroid, info, depth+1)
		if err != nil || id != 0 {
			return id, parentWay, err
		}
	}
	return 0, parentNone, nil
}

// membersWithRole 惰性返回指定类型与角色的成员。
func membersWithRole(rel *Relation, memberType, role string) iter.Seq[RelationMember] {
	return func(yield func(RelationMember) bool) {
		for _, m := range rel.Members {
			if m.Type != memberType || !strings.EqualFold(m.Role, role) {
				continue
			}
			if !yield(m) {
				return
			}
		}
	}
}
