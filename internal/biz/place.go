package biz

import (
	"context"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// IndexedStatus 索引状态。
type IndexedStatus int

const (
	StatusDone          IndexedStatus = 0
	StatusNew           IndexedStatus = 1
	StatusNeedsReindex  IndexedStatus = 2
	StatusPendingDelete IndexedStatus = 100
)

func (s IndexedStatus) Pending() bool {
	return s == StatusNew || s == StatusNeedsReindex
}

func (s IndexedStatus) String() string {
	switch s {
	case StatusDone:
		return "done"
	case StatusNew:
		return "new"
	case StatusNeedsReindex:
		return "needs_reindex"
	case StatusPendingDelete:
		return "pending_delete"
	}
	return "unknown"
}

// OSM 对象类型。
const (
	OSMNode     = "N"
	OSMWay      = "W"
	OSMRelation = "R"
)

// GeometryKind 几何大类。
type GeometryKind int

const (
	KindPoint GeometryKind = iota
	KindLine
	KindArea
)

// KindOf 返回几何大类。
func KindOf(g orb.Geometry) GeometryKind {
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon, orb.Ring:
		return KindArea
	case orb.LineString, orb.MultiLineString:
		return KindLine
	}
	return KindPoint
}

// Place 可索引的地理要素。ParentPlaceID/LinkedPlaceID 为 0 表示空。
type Place struct {
	PlaceID       int64
	OSMType       string
	OSMID         int64
	Class         string
	Type          string
	AdminLevel    int
	Name          map[string]string
	Address       map[string]string
	ExtraTags     map[string]string
	Geometry      orb.Geometry
	Centroid      orb.Point
	CountryCode   string
	Partition     int
	RankSearch    int
	RankAddress   int
	Importance    float64
	HouseNumber   string
	Postcode      string
	ParentPlaceID int64
	LinkedPlaceID int64
	IndexedStatus IndexedStatus
	IndexedDate   time.Time
	// UpdatedAt 源数据版本，提交索引结果时与读取时比对
	UpdatedAt int64

	// 索引派生：合并后的名称与额外标签，为空时使用原始值
	MergedName      map[string]string
	MergedExtraTags map[string]string
}

func (p *Place) Kind() GeometryKind {
	return KindOf(p.Geometry)
}

// IsPOIGrade rank_search 大于道路带（26-27）。
func (p *Place) IsPOIGrade() bool {
	return p.RankSearch > 27
}

func (p *Place) IsRoad() bool {
	return p.RankSearch >= 26 && p.RankSearch <= 27
}

func (p *Place) IsPostcode() bool {
	return (p.Class == "place" || p.Class == "boundary") && (p.Type == "postcode" || p.Type == "postal_code")
}

func (p *Place) IsAdministrative() bool {
	return p.Class == "boundary" && p.Type == "administrative"
}

// IsPlaceNode class=place 的点要素。
func (p *Place) IsPlaceNode() bool {
	return p.Class == "place" && p.OSMType == OSMNode && p.Kind() == KindPoint
}

// Names 返回当前生效的名称（合并后优先）。
func (p *Place) Names() map[string]string {
	if len(p.MergedName) > 0 {
		return p.MergedName
	}
	return p.Name
}

func (p *Place) Tags() map[string]string {
	if len(p.MergedExtraTags) > 0 {
		return p.MergedExtraTags
	}
	return p.ExtraTags
}

// PrimaryName 返回 name 标签，没有时取任意一个名称。
func (p *Place) PrimaryName() string {
	names := p.Names()
	if n := strings.TrimSpace(names["name"]); n != "" {
		return n
	}
	for k, v := range names {
		if strings.HasPrefix(k, "name") && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func (p *Place) HasName() bool {
	return p.PrimaryName() != ""
}

// BaseImportance 由 rank_search 推导的默认重要性。
func BaseImportance(rankSearch int) float64 {
	return 0.75001 - float64(rankSearch)/40.0
}

// ComputeCentroid 面要素取面积质心，线等其它几何取外包框中心。
func ComputeCentroid(g orb.Geometry) orb.Point {
	switch geom := g.(type) {
	case orb.Point:
		return geom
	case orb.Polygon, orb.MultiPolygon:
		c, _ := planar.CentroidArea(geom)
		return c
	case nil:
		return orb.Point{}
	}
	return g.Bound().Center()
}

// Contains 面包含点，非面几何返回 false。
func Contains(g orb.Geometry, pt orb.Point) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(geom, pt)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(geom, pt)
	case orb.Ring:
		return planar.RingContains(geom, pt)
	}
	return false
}

// BoundArea 外包框面积（平方度）。
func BoundArea(g orb.Geometry) float64 {
	b := g.Bound()
	return (b.Max[0] - b.Min[0]) * (b.Max[1] - b.Min[1])
}

// Area 面要素面积（平方度），其它几何为 0。
func Area(g orb.Geometry) float64 {
	switch KindOf(g) {
	case KindArea:
		a := planar.Area(g)
		if a < 0 {
			return -a
		}
		return a
	}
	return 0
}

// AddressLine 地址链中的一行。
type AddressLine struct {
	PlaceID         int64
	AncestorPlaceID int64
	RankAddress     int
	Distance        float64
	IsAddress       bool
	FromArea        bool
}

// SearchEntry 搜索索引行。
type SearchEntry struct {
	PlaceID       int64
	RankSearch    int
	RankAddress   int
	Importance    float64
	CountryCode   string
	NameTokens    []int64
	AddressTokens []int64
	Centroid      orb.Point
}

// PassResult 一次索引的全部产出，原子提交。
type PassResult struct {
	Place          *Place
	ObservedStatus IndexedStatus
	Lines          []*AddressLine
	Search         *SearchEntry
	// Suppressed 被边界合并的点，只清理派生数据
	Suppressed bool
	// Links 需要写回 linked_place_id 的点；值为 0 表示解除关联
	Links map[int64]int64
	// Raise 需要标记为 NEEDS_REINDEX 的依赖
	Raise []int64
}

// DeleteResult 删除后需要重新索引的依赖。
type DeleteResult struct {
	Dependents []int64
	Unlinked   []int64
}

// PlaceRepo placex 存储。
type PlaceRepo interface {
	Get(ctx context.Context, id int64) (*Place, error)
	GetByOSM(ctx context.Context, osmType string, osmID int64, class string) (*Place, error)
	ListByOSM(ctx context.Context, osmType string, osmID int64) ([]*Place, error)
	Insert(ctx context.Context, p *Place) (int64, error)
	UpdateSource(ctx context.Context, p *Place) error
	MarkDeleted(ctx context.Context, id int64) error
	RaiseReindex(ctx context.Context, ids []int64) (int64, error)

	PendingRanks(ctx context.Context) ([]int, error)
	ListPending(ctx context.Context, rankSearch int) ([]int64, error)
	ListPendingDeletes(ctx context.Context) ([]int64, error)
	CountByStatus(ctx context.Context) (map[IndexedStatus]int64, error)

	// ListInBound 质心落在外包框内的要素
	ListInBound(ctx context.Context, b orb.Bound) ([]*Place, error)
	ListPlaceNodesInBound(ctx context.Context, b orb.Bound) ([]*Place, error)
	ListBoundariesCovering(ctx context.Context, pt orb.Point) ([]*Place, error)
	ListLinkedTo(ctx context.Context, id int64) ([]int64, error)

	AddressLines(ctx context.Context, id int64) ([]*AddressLine, error)
	// SearchEntry 不存在时返回 nil, nil
	SearchEntry(ctx context.Context, id int64) (*SearchEntry, error)

	CommitPass(ctx context.Context, res *PassResult) error
	Delete(ctx context.Context, p *Place) (*DeleteResult, error)
	ScanIndexed(ctx context.Context, fn func(*Place, *SearchEntry) error) error
}

// RelationMember 关系成员。
type RelationMember struct {
	Type string
	Ref  int64
	Role string
}

// Relation 原始关系。
type Relation struct {
	OSMID   int64
	Tags    map[string]string
	Members []RelationMember
}

// SourceRepo 原始 OSM 成员关系存储。
type SourceRepo interface {
	SaveRelation(ctx context.Context, r *Relation) error
	SaveWay(ctx context.Context, wayID int64, nodes []int64) error
	Relation(ctx context.Context, osmID int64) (*Relation, error)
	RelationsWithMember(ctx context.Context, memberType string, ref int64) ([]*Relation, error)
	WaysWithNode(ctx context.Context, nodeID int64) ([]int64, error)
}
