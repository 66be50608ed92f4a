package biz

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/paulmach/orb"
)

// LinkOutcome 一次合并判断的结果。
type LinkOutcome struct {
	Linked   *Place
	Unlinked []int64
	// Demoted 与更低行政级别的边界重复，rank_address 被置 0
	Demoted bool
}

// LinkedPlaceMerger 把边界与描述同一地点的地名点合并。
type LinkedPlaceMerger struct {
	places     PlaceRepo
	sources    SourceRepo
	classifier *RankClassifier
	tokenizer  Tokenizer
	log        *log.Helper
}

func NewLinkedPlaceMerger(places PlaceRepo, sources SourceRepo, classifier *RankClassifier, tokenizer Tokenizer, logger log.Logger) *LinkedPlaceMerger {
	return &LinkedPlaceMerger{
		places:     places,
		sources:    sources,
		classifier: classifier,
		tokenizer:  tokenizer,
		log:        log.NewHelper(logger),
	}
}

// Linkable 行政/地名面要素，且参与地址。
func Linkable(b *Place) bool {
	if b.Kind() != KindArea || b.RankAddress <= 0 || b.IsPostcode() {
		return false
	}
	return b.IsAdministrative() || b.Class == "place"
}

// Apply 修正边界 rank 并查找关联的地名点，直接修改 b。
// b.RankAddress / b.Centroid / b.Importance 需已按原始数据计算。
func (m *LinkedPlaceMerger) Apply(ctx context.Context, b *Place) (*LinkOutcome, error) {
	out := &LinkOutcome{}
	previous, err := m.places.ListLinkedTo(ctx, b.PlaceID)
	if err != nil {
		return nil, err
	}
	parentLevel := 0
	if b.IsAdministrative() && b.Kind() == KindArea {
		covering, err := m.places.ListBoundariesCovering(ctx, b.Centroid)
		if err != nil {
			return nil, err
		}
		if isDuplicateBoundary(b, covering) {
			b.RankAddress = 0
			out.Demoted = true
		} else {
			parentLevel = m.adminParentLevel(b, covering)
			if parentLevel > 0 && parentLevel >= b.RankAddress {
				if parentLevel >= 24 {
					b.RankAddress = 25
				} else {
					b.RankAddress = parentLevel + 2
				}
			}
		}
	}
	if Linkable(b) {
		linked, err := m.FindLinkedPlace(ctx, b)
		if err != nil {
			return nil, err
		}
		if linked != nil {
			m.Merge(b, linked)
			out.Linked = linked
		} else if pt := b.ExtraTags["place"]; pt != "" {
			r, ok := m.classifier.Classify(RankInput{CountryCode: b.CountryCode, Kind: KindPoint, OSMType: OSMNode, Class: "place", Type: pt})
			if ok && r.Address > parentLevel && r.Address > 0 && r.Address < 26 {
				b.RankAddress = r.Address
			}
		}
	}
	for _, id := range previous {
		if out.Linked == nil || id != out.Linked.PlaceID {
			out.Unlinked = append(out.Unlinked, id)
		}
	}
	return out, nil
}

// FindLinkedPlace 依次尝试 label 成员、place 类型匹配、wikidata、同名同级。
func (m *LinkedPlaceMerger) FindLinkedPlace(ctx context.Context, b *Place) (*Place, error) {
	if b.OSMType == OSMRelation {
		p, err := m.labelMember(ctx, b)
		if err != nil || p != nil {
			return p, err
		}
	}
	candidates, err := m.candidates(ctx, b)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	name := m.tokenizer.Normalize(b.Name["name"])

	if pt := b.ExtraTags["place"]; pt != "" && name != "" {
		for _, c := range candidates {
			if c.Type != pt {
				continue
			}
			cn := m.tokenizer.Normalize(c.Name["name"])
			if cn != "" && (strings.Contains(cn, name) || strings.Contains(name, cn)) {
				return c, nil
			}
		}
	}

	if wd := b.ExtraTags["wikidata"]; wd != "" {
		var found *Place
		for _, c := range candidates {
			if c.ExtraTags["wikidata"] != wd {
				continue
			}
			if name != "" && m.tokenizer.Normalize(c.Name["name"]) == name {
				return c, nil
			}
			if found == nil {
				found = c
			}
		}
		if found != nil {
			return found, nil
		}
	}

	if name == "" {
		return nil, nil
	}
	for _, c := range candidates {
		if m.tokenizer.Normalize(c.Name["name"]) != name {
			continue
		}
		in := RankInputOf(c)
		in.AdminLevel = 15
		r, ok := m.classifier.Classify(in)
		if !ok {
			continue
		}
		if b.RankAddress > 0 && r.Address == b.RankAddress {
			return c, nil
		}
		if b.RankAddress == 0 && r.Search == b.RankSearch {
			return c, nil
		}
	}
	return nil, nil
}

func (m *LinkedPlaceMerger) labelMember(ctx context.Context, b *Place) (*Place, error) {
	rel, err := m.sources.Relation(ctx, b.OSMID)
	if err != nil || rel == nil {
		return nil, err
	}
	for member := range membersWithRole(rel, OSMNode, "label") {
		nodes, err := m.places.ListByOSM(ctx, OSMNode, member.Ref)
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			if n.Class == "place" && linkableTo(n, b) {
				return n, nil
			}
		}
	}
	return nil, nil
}

// candidates 面内未被其它要素占用的地名点，按 place_id 排序。
func (m *LinkedPlaceMerger) candidates(ctx context.Context, b *Place) ([]*Place, error) {
	nodes, err := m.places.ListPlaceNodesInBound(ctx, b.Geometry.Bound())
	if err != nil {
		return nil, err
	}
	out := nodes[:0]
	for _, n := range nodes {
		if n.PlaceID == b.PlaceID || !n.IsPlaceNode() || n.RankSearch >= 26 {
			continue
		}
		if !linkableTo(n, b) || !Contains(b.Geometry, n.Centroid) {
			continue
		}
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, c *Place) int {
		return cmp.Compare(a.PlaceID, c.PlaceID)
	})
	return out, nil
}

func linkableTo(n, b *Place) bool {
	return n.LinkedPlaceID == 0 || n.LinkedPlaceID == b.PlaceID
}

// Merge 点的名称优先；rank_address 只升不降且小于 26；重要性取较大值。
func (m *LinkedPlaceMerger) Merge(b, linked *Place) {
	if Contains(b.Geometry, linked.Centroid) {
		b.Centroid = linked.Centroid
	}
	linkedRank := linked.RankAddress
	linkedSearch := linked.RankSearch
	if r, ok := m.classifier.Classify(RankInputOf(linked)); ok {
		linkedRank, linkedSearch = r.Address, r.Search
	}
	if linkedRank > b.RankAddress && linkedRank < 26 {
		b.RankAddress = linkedRank
	}

	names := maps.Clone(b.Name)
	if names == nil {
		names = map[string]string{}
	}
	maps.Copy(names, linked.Name)
	b.MergedName = names

	tags := maps.Clone(b.ExtraTags)
	if tags == nil {
		tags = map[string]string{}
	}
	for k, v := range linked.ExtraTags {
		if _, ok := tags[k]; !ok {
			tags[k] = v
		}
	}
	tags["linked_"+linked.Class] = linked.Type
	b.MergedExtraTags = tags

	b.Importance = max(b.Importance, BaseImportance(b.RankSearch), BaseImportance(linkedSearch))
}

// isDuplicateBoundary 与更低行政级别的边界几何相同且 wikidata 相同。
func isDuplicateBoundary(b *Place, covering []*Place) bool {
	wd := b.ExtraTags["wikidata"]
	if wd == "" {
		return false
	}
	for _, o := range covering {
		if o.PlaceID == b.PlaceID || !o.IsAdministrative() {
			continue
		}
		if adminLevelOrDefault(o.AdminLevel) >= adminLevelOrDefault(b.AdminLevel) {
			continue
		}
		if o.ExtraTags["wikidata"] == wd && orb.Equal(o.Geometry, b.Geometry) {
			return true
		}
	}
	return false
}

// adminParentLevel 包含 b 的更低行政级别边界中最大的 rank_address。
// 尚未索引的边界按原始数据分类。
func (m *LinkedPlaceMerger) adminParentLevel(b *Place, covering []*Place) int {
	level := 0
	for _, o := range covering {
		if o.PlaceID == b.PlaceID || !o.IsAdministrative() {
			continue
		}
		rank := o.RankAddress
		if o.IndexedStatus != StatusDone {
			r, ok := m.classifier.Classify(RankInputOf(o))
			if !ok {
				continue
			}
			rank = r.Address
		}
		if rank <= 0 {
			continue
		}
		if adminLevelOrDefault(o.AdminLevel) >= adminLevelOrDefault(b.AdminLevel) {
			continue
		}
		if !Contains(o.Geometry, b.Centroid) {
			continue
		}
		level = max(level, rank)
	}
	return level
}
