package service

import (
	"context"
	"strings"
	"time"

	"nominatim-indexer/internal/biz"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/paulmach/orb/geojson"
)

// PlaceService 要素写入与查看入口，HTTP 与命令行共用。
type PlaceService struct {
	uc      *biz.PlaceUsecase
	indexer *IndexerService
	log     *log.Helper
}

var serviceStartTime = time.Now()

func NewPlaceService(uc *biz.PlaceUsecase, indexer *IndexerService, logger log.Logger) *PlaceService {
	return &PlaceService{uc: uc, indexer: indexer, log: log.NewHelper(logger)}
}

type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type AddressRow struct {
	PlaceID    int64   `json:"place_id"`
	Category   string  `json:"category"`
	Type       string  `json:"type"`
	Name       string  `json:"name"`
	AdminLevel int     `json:"admin_level"`
	Rank       int     `json:"rank_address"`
	Distance   float64 `json:"distance"`
	IsAddress  bool    `json:"isaddress"`
	FromArea   bool    `json:"fromarea"`
}

// PlaceReply 要素详情。
type PlaceReply struct {
	PlaceID       int64             `json:"place_id"`
	OSMType       string            `json:"osm_type"`
	OSMID         int64             `json:"osm_id"`
	Category      string            `json:"category"`
	Type          string            `json:"type"`
	AdminLevel    int               `json:"admin_level"`
	DisplayName   string            `json:"display_name"`
	Names         map[string]string `json:"namedetails,omitempty"`
	Address       map[string]string `json:"address,omitempty"`
	ExtraTags     map[string]string `json:"extratags,omitempty"`
	CountryCode   string            `json:"country_code,omitempty"`
	RankSearch    int               `json:"rank_search"`
	RankAddress   int               `json:"rank_address"`
	Importance    float64           `json:"importance"`
	HouseNumber   string            `json:"housenumber,omitempty"`
	Postcode      string            `json:"postcode,omitempty"`
	ParentPlaceID int64             `json:"parent_place_id,omitempty"`
	LinkedPlaceID int64             `json:"linked_place_id,omitempty"`
	IndexedStatus string            `json:"indexed_status"`
	IndexedDate   *time.Time        `json:"indexed_date,omitempty"`
	Centroid      Point             `json:"centroid"`
	BoundingBox   [4]float64        `json:"boundingbox"` // west, south, east, north
	Geometry      *geojson.Geometry `json:"geometry,omitempty"`
	AddressRows   []AddressRow      `json:"address_rows,omitempty"`
	NameTokens    []int64           `json:"name_tokens,omitempty"`
	LinkedPlaces  []int64           `json:"linked_places,omitempty"`
}

type ListRequest struct {
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Status   string `json:"status"`
}

type ListReply struct {
	Total  int64         `json:"total"`
	Places []*PlaceReply `json:"places"`
}

type StatusReply struct {
	Uptime  string           `json:"uptime"`
	Pending int64            `json:"pending"`
	Counts  map[string]int64 `json:"counts"`
	Ready   bool             `json:"ready"`
}

type ReindexRequest struct {
	PlaceIDs []int64 `json:"place_ids"`
}

type ReindexReply struct {
	Marked int64 `json:"marked"`
}

type DeleteReply struct {
	Deleted int `json:"deleted"`
}

// Details 要素详情及地址链。
func (s *PlaceService) Details(ctx context.Context, id int64, acceptLanguage string) (*PlaceReply, error) {
	d, err := s.uc.Details(ctx, id)
	if err != nil {
		return nil, err
	}
	reply := mapPlace(d.Place, parseAcceptLanguages(acceptLanguage))
	reply.Geometry = geojson.NewGeometry(d.Place.Geometry)
	reply.NameTokens = d.NameTokens
	reply.LinkedPlaces = d.Linked
	parts := []string{reply.DisplayName}
	for _, r := range d.AddressRows {
		reply.AddressRows = append(reply.AddressRows, AddressRow{
			PlaceID:    r.PlaceID,
			Category:   r.Class,
			Type:       r.Type,
			Name:       r.Name,
			AdminLevel: r.AdminLevel,
			Rank:       r.Rank,
			Distance:   r.Distance,
			IsAddress:  r.IsAddress,
			FromArea:   r.FromArea,
		})
		if r.IsAddress && r.Name != "" && r.Name != parts[len(parts)-1] {
			parts = append(parts, r.Name)
		}
	}
	reply.DisplayName = strings.Join(compact(parts), ", ")
	return reply, nil
}

// List 分页列出要素。
func (s *PlaceService) List(ctx context.Context, req *ListRequest) (*ListReply, error) {
	var status *biz.IndexedStatus
	if req.Status != "" {
		st, ok := parseStatus(req.Status)
		if !ok {
			return nil, errors.BadRequest("INVALID_STATUS", "unknown status "+req.Status)
		}
		status = &st
	}
	places, total, err := s.uc.List(ctx, biz.FindByPageCond{PageNum: req.Page, PageSize: req.PageSize}, status)
	if err != nil {
		return nil, err
	}
	reply := &ListReply{Total: total, Places: make([]*PlaceReply, 0, len(places))}
	for _, p := range places {
		reply.Places = append(reply.Places, mapPlace(p, nil))
	}
	return reply, nil
}

// Status 各索引状态的数量。
func (s *PlaceService) Status(ctx context.Context) (*StatusReply, error) {
	counts, err := s.uc.Status(ctx)
	if err != nil {
		return nil, err
	}
	reply := &StatusReply{
		Uptime: time.Since(serviceStartTime).Round(time.Second).String(),
		Counts: make(map[string]int64, len(counts)),
	}
	for st, n := range counts {
		reply.Counts[st.String()] = n
		if st.Pending() || st == biz.StatusPendingDelete {
			reply.Pending += n
		}
	}
	reply.Ready = reply.Pending == 0
	return reply, nil
}

// Load 写入一个要素集合，并唤醒索引循环。
func (s *PlaceService) Load(ctx context.Context, fc *geojson.FeatureCollection) (*LoadReply, error) {
	batch, err := ParseFeatures(fc)
	if err != nil {
		return nil, err
	}
	reply, err := s.ApplyBatch(ctx, batch)
	if err != nil {
		return nil, err
	}
	s.indexer.Trigger()
	return reply, nil
}

// Delete 标记 OSM 对象的要素待删除。
func (s *PlaceService) Delete(ctx context.Context, ref OSMRef) (*DeleteReply, error) {
	n, err := s.uc.MarkDeleted(ctx, strings.ToUpper(ref.OSMType), ref.OSMID, ref.Class)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, biz.ErrPlaceNotFound
	}
	s.indexer.Trigger()
	return &DeleteReply{Deleted: n}, nil
}

// Reindex 强制重新索引指定要素。
func (s *PlaceService) Reindex(ctx context.Context, req *ReindexRequest) (*ReindexReply, error) {
	n, err := s.uc.Reindex(ctx, req.PlaceIDs)
	if err != nil {
		return nil, err
	}
	s.indexer.Trigger()
	return &ReindexReply{Marked: n}, nil
}

func mapPlace(p *biz.Place, langs []string) *PlaceReply {
	bound := p.Geometry.Bound()
	reply := &PlaceReply{
		PlaceID:       p.PlaceID,
		OSMType:       p.OSMType,
		OSMID:         p.OSMID,
		Category:      p.Class,
		Type:          p.Type,
		AdminLevel:    p.AdminLevel,
		DisplayName:   displayName(p.Names(), langs),
		Names:         p.Names(),
		Address:       p.Address,
		ExtraTags:     p.Tags(),
		CountryCode:   p.CountryCode,
		RankSearch:    p.RankSearch,
		RankAddress:   p.RankAddress,
		Importance:    p.Importance,
		HouseNumber:   p.HouseNumber,
		Postcode:      p.Postcode,
		ParentPlaceID: p.ParentPlaceID,
		LinkedPlaceID: p.LinkedPlaceID,
		IndexedStatus: p.IndexedStatus.String(),
		Centroid:      Point{Lat: p.Centroid.Lat(), Lon: p.Centroid.Lon()},
		BoundingBox:   [4]float64{bound.Min.Lon(), bound.Min.Lat(), bound.Max.Lon(), bound.Max.Lat()},
	}
	if !p.IndexedDate.IsZero() {
		t := p.IndexedDate
		reply.IndexedDate = &t
	}
	return reply
}

// displayName 优先 name:<lang>，其次 name，再其次任意名称。
func displayName(names map[string]string, langs []string) string {
	for _, lang := range langs {
		if v := names["name:"+lang]; v != "" {
			return v
		}
	}
	if v := names["name"]; v != "" {
		return v
	}
	for _, k := range []string{"ref", "brand", "addr:housename"} {
		if v := names[k]; v != "" {
			return v
		}
	}
	return ""
}

func parseAcceptLanguages(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	langs := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		// 去掉 ;q=
		if i := strings.Index(p, ";"); i >= 0 {
			p = p[:i]
		}
		if p == "" {
			continue
		}
		langs = append(langs, strings.ToLower(p))
		if i := strings.Index(p, "-"); i > 0 {
			langs = append(langs, strings.ToLower(p[:i]))
		}
	}
	return langs
}

func parseStatus(s string) (biz.IndexedStatus, bool) {
	for _, st := range []biz.IndexedStatus{biz.StatusDone, biz.StatusNew, biz.StatusNeedsReindex, biz.StatusPendingDelete} {
		if strings.EqualFold(st.String(), s) {
			return st, true
		}
	}
	return 0, false
}

func compact(parts []string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// RunIndex 唤醒索引循环并返回当前状态。
func (s *PlaceService) RunIndex(ctx context.Context) (*StatusReply, error) {
	s.indexer.Trigger()
	return s.Status(ctx)
}
