package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"nominatim-indexer/internal/biz"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/paulmach/orb/geojson"
)

// OSMRef 删除请求引用的 OSM 对象，Class 为空表示全部要素。
type OSMRef struct {
	OSMType string `json:"osm_type"`
	OSMID   int64  `json:"osm_id"`
	Class   string `json:"class,omitempty"`
}

// FeatureBatch 从 GeoJSON 解析出的一批写入。
type FeatureBatch struct {
	Places    []*biz.Place
	Relations []*biz.Relation
	Ways      map[int64][]int64
	Deletes   []OSMRef
}

// LoadReply 批量写入结果。
type LoadReply struct {
	Places    int     `json:"places"`
	Relations int     `json:"relations"`
	Ways      int     `json:"ways"`
	Deleted   int     `json:"deleted"`
	PlaceIDs  []int64 `json:"place_ids,omitempty"`
}

// ReadFeatureFile 读取 GeoJSON 文件，"-" 表示标准输入。
func ReadFeatureFile(path string) (*FeatureBatch, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(os.Stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, errors.BadRequest("INVALID_GEOJSON", err.Error())
	}
	return ParseFeatures(fc)
}

// ParseFeatures 将要素集合转换为写入批次。
// properties 约定：osm_type/osm_id/class/type/admin_level/name/address/extratags/country_code/housenumber/postcode，
// 另有 members（关系成员）、nodes（way 节点）、deleted（删除标记）。
func ParseFeatures(fc *geojson.FeatureCollection) (*FeatureBatch, error) {
	batch := &FeatureBatch{Ways: map[int64][]int64{}}
	for i, f := range fc.Features {
		props := f.Properties
		osmType := strings.ToUpper(props.MustString("osm_type", ""))
		osmID := propInt64(props, "osm_id")
		if osmType == "" || osmID == 0 {
			return nil, errors.BadRequest("INVALID_FEATURE", fmt.Sprintf("feature %d: osm_type and osm_id required", i))
		}
		if props.MustBool("deleted", false) {
			batch.Deletes = append(batch.Deletes, OSMRef{OSMType: osmType, OSMID: osmID, Class: props.MustString("class", "")})
			continue
		}
		if members, ok := props["members"].([]any); ok && osmType == biz.OSMRelation {
			batch.Relations = append(batch.Relations, &biz.Relation{
				OSMID:   osmID,
				Tags:    propTags(props, "tags"),
				Members: parseMembers(members),
			})
		}
		if nodes, ok := props["nodes"].([]any); ok && osmType == biz.OSMWay {
			ids := make([]int64, 0, len(nodes))
			for _, n := range nodes {
				if v, ok := n.(float64); ok {
					ids = append(ids, int64(v))
				}
			}
			batch.Ways[osmID] = ids
		}
		if f.Geometry == nil {
			continue
		}
		batch.Places = append(batch.Places, &biz.Place{
			OSMType:     osmType,
			OSMID:       osmID,
			Class:       props.MustString("class", ""),
			Type:        props.MustString("type", ""),
			AdminLevel:  int(propInt64(props, "admin_level")),
			Name:        propTags(props, "name"),
			Address:     propTags(props, "address"),
			ExtraTags:   propTags(props, "extratags"),
			Geometry:    f.Geometry,
			CountryCode: props.MustString("country_code", ""),
			HouseNumber: props.MustString("housenumber", ""),
			Postcode:    props.MustString("postcode", ""),
		})
	}
	return batch, nil
}

func parseMembers(raw []any) []biz.RelationMember {
	members := make([]biz.RelationMember, 0, len(raw))
	for _, m := range raw {
		obj, ok := m.(map[string]any)
		if !ok {
			continue
		}
		p := geojson.Properties(obj)
		members = append(members, biz.RelationMember{
			Type: strings.ToUpper(p.MustString("type", "")),
			Ref:  propInt64(p, "ref"),
			Role: p.MustString("role", ""),
		})
	}
	return members
}

func propInt64(p geojson.Properties, key string) int64 {
	switch v := p[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

func propTags(p geojson.Properties, key string) map[string]string {
	obj, ok := p[key].(map[string]any)
	if !ok || len(obj) == 0 {
		return nil
	}
	tags := make(map[string]string, len(obj))
	for k, v := range obj {
		switch t := v.(type) {
		case string:
			tags[k] = t
		case nil:
		default:
			tags[k] = fmt.Sprint(t)
		}
	}
	return tags
}

// ApplyBatch 先写关系与 way，再写要素，最后处理删除。
func (s *PlaceService) ApplyBatch(ctx context.Context, batch *FeatureBatch) (*LoadReply, error) {
	reply := &LoadReply{}
	for _, r := range batch.Relations {
		if err := s.uc.SaveRelation(ctx, r); err != nil {
			return reply, err
		}
		reply.Relations++
	}
	for id, nodes := range batch.Ways {
		if err := s.uc.SaveWay(ctx, id, nodes); err != nil {
			return reply, err
		}
		reply.Ways++
	}
	for _, p := range batch.Places {
		id, err := s.uc.Upsert(ctx, p)
		if err != nil {
			return reply, errors.FromError(err).WithMetadata(map[string]string{
				"osm": fmt.Sprintf("%s%d", p.OSMType, p.OSMID),
			})
		}
		reply.Places++
		reply.PlaceIDs = append(reply.PlaceIDs, id)
	}
	for _, ref := range batch.Deletes {
		n, err := s.uc.MarkDeleted(ctx, ref.OSMType, ref.OSMID, ref.Class)
		if err != nil {
			return reply, err
		}
		reply.Deleted += n
	}
	s.log.WithContext(ctx).Infof("loaded places=%d relations=%d ways=%d deleted=%d",
		reply.Places, reply.Relations, reply.Ways, reply.Deleted)
	return reply, nil
}
