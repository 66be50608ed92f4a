package biz

import (
	"context"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/paulmach/orb"
)

// PlaceDetails 已索引要素的读视图。
type PlaceDetails struct {
	Place       *Place
	AddressRows []AddressRowItem // 地址链，按 rank 降序
	NameTokens  []int64
	Linked      []int64 // 被合并进来的地名点
}

// AddressRowItem 地址行元素。
type AddressRowItem struct {
	PlaceID    int64
	Class      string
	Type       string
	Name       string
	AdminLevel int
	Rank       int
	Distance   float64
	IsAddress  bool
	FromArea   bool
}

// SearchRepo 抽象读路径。
type SearchRepo interface {
	AddressRows(ctx context.Context, placeID int64) ([]AddressRowItem, error)
	ListPlaces(ctx context.Context, cond FindByPageCond, status *IndexedStatus) ([]*Place, int64, error)
}

// PlaceUsecase 要素写入（导入/更新/删除标记）与读取。
type PlaceUsecase struct {
	places     PlaceRepo
	sources    SourceRepo
	search     SearchRepo
	classifier *RankClassifier
	settings   *Settings
	log        *log.Helper
}

func NewPlaceUsecase(places PlaceRepo, sources SourceRepo, search SearchRepo, classifier *RankClassifier, settings *Settings, logger log.Logger) *PlaceUsecase {
	return &PlaceUsecase{
		places:     places,
		sources:    sources,
		search:     search,
		classifier: classifier,
		settings:   settings,
		log:        log.NewHelper(logger),
	}
}

// Upsert 新要素以 NEW 插入；原始属性变化的已有要素标记为 NEEDS_REINDEX。
func (uc *PlaceUsecase) Upsert(ctx context.Context, in *Place) (int64, error) {
	if err := validatePlace(in); err != nil {
		return 0, err
	}
	in.CountryCode = strings.ToLower(in.CountryCode)
	in.Centroid = ComputeCentroid(in.Geometry)
	in.Partition = uc.settings.PartitionFor(in.CountryCode)
	// 调度按 rank_search 分组，写入时先按原始数据分类
	if r, ok := uc.classifier.Classify(RankInputOf(in)); ok {
		in.RankSearch, in.RankAddress = r.Search, r.Address
	} else {
		in.RankSearch, in.RankAddress = 30, 0
	}
	in.Importance = BaseImportance(in.RankSearch)

	existing, err := uc.places.GetByOSM(ctx, in.OSMType, in.OSMID, in.Class)
	if IsNotFound(err) {
		in.IndexedStatus = StatusNew
		in.UpdatedAt = time.Now().Unix()
		return uc.places.Insert(ctx, in)
	}
	if err != nil {
		return 0, err
	}
	in.PlaceID = existing.PlaceID
	if existing.IndexedStatus != StatusPendingDelete && sameSource(existing, in) {
		return existing.PlaceID, nil
	}
	in.IndexedStatus = StatusNeedsReindex
	if existing.IndexedStatus == StatusNew {
		in.IndexedStatus = StatusNew
	}
	in.UpdatedAt = max(time.Now().Unix(), existing.UpdatedAt+1)
	return existing.PlaceID, uc.places.UpdateSource(ctx, in)
}

// MarkDeleted 标记为 PENDING_DELETE，class 为空时标记该 OSM 对象的全部要素。
func (uc *PlaceUsecase) MarkDeleted(ctx context.Context, osmType string, osmID int64, class string) (int, error) {
	places, err := uc.places.ListByOSM(ctx, osmType, osmID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range places {
		if class != "" && p.Class != class {
			continue
		}
		if err := uc.places.MarkDeleted(ctx, p.PlaceID); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// SaveRelation 保存关系成员（associatedStreet、label 等）。
func (uc *PlaceUsecase) SaveRelation(ctx context.Context, r *Relation) error {
	return uc.sources.SaveRelation(ctx, r)
}

// SaveWay 保存 way 的节点列表。
func (uc *PlaceUsecase) SaveWay(ctx context.Context, wayID int64, nodes []int64) error {
	return uc.sources.SaveWay(ctx, wayID, nodes)
}

// Reindex 手动把已索引要素标记为 NEEDS_REINDEX。
func (uc *PlaceUsecase) Reindex(ctx context.Context, ids []int64) (int64, error) {
	return uc.places.RaiseReindex(ctx, ids)
}

// Details 返回要素与地址链。
func (uc *PlaceUsecase) Details(ctx context.Context, id int64) (*PlaceDetails, error) {
	p, err := uc.places.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := uc.search.AddressRows(ctx, id)
	if err != nil {
		return nil, err
	}
	d := &PlaceDetails{Place: p, AddressRows: rows}
	entry, err := uc.places.SearchEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		d.NameTokens = entry.NameTokens
	}
	if d.Linked, err = uc.places.ListLinkedTo(ctx, id); err != nil {
		return nil, err
	}
	return d, nil
}

// List 分页列出要素，可按状态过滤。
func (uc *PlaceUsecase) List(ctx context.Context, cond FindByPageCond, status *IndexedStatus) ([]*Place, int64, error) {
	return uc.search.ListPlaces(ctx, cond, status)
}

// Status 各状态要素数量。
func (uc *PlaceUsecase) Status(ctx context.Context) (map[IndexedStatus]int64, error) {
	return uc.places.CountByStatus(ctx)
}

func validatePlace(p *Place) error {
	if p == nil {
		return ErrInvalidPlace
	}
	switch p.OSMType {
	case OSMNode, OSMWay, OSMRelation:
	default:
		return ErrInvalidPlace.WithMetadata(map[string]string{"osm_type": p.OSMType})
	}
	if p.Class == "" || p.Type == "" {
		return ErrInvalidPlace.WithMetadata(map[string]string{"reason": "class and type are required"})
	}
	if !validGeometry(p.Geometry) {
		return ErrInvalidGeometry
	}
	return nil
}

func validGeometry(g orb.Geometry) bool {
	switch geom := g.(type) {
	case nil:
		return false
	case orb.Point:
		return true
	case orb.LineString:
		return len(geom) >= 2
	case orb.Polygon:
		return len(geom) > 0 && len(geom[0]) >= 4
	case orb.MultiPolygon:
		return len(geom) > 0 && len(geom[0]) > 0 && len(geom[0][0]) >= 4
	case orb.MultiLineString:
		return len(geom) > 0 && len(geom[0]) >= 2
	}
	return false
}

func sameSource(a, b *Place) bool {
	return a.Type == b.Type &&
		a.AdminLevel == b.AdminLevel &&
		a.CountryCode == b.CountryCode &&
		equalTags(a.Name, b.Name) &&
		equalTags(a.Address, b.Address) &&
		equalTags(a.ExtraTags, b.ExtraTags) &&
		orb.Equal(a.Geometry, b.Geometry)
}

func equalTags(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}
