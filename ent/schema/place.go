package schema

import (
	"nominatim-indexer/pkg/ent/mixins"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Place 对应 placex 表：原始要素属性 + 索引派生属性。
type Place struct {
	ent.Schema
}

// Annotations of the Place.
func (Place) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "placex"},
	}
}

// Mixin returns mixin definitions.
func (Place) Mixin() []ent.Mixin {
	return []ent.Mixin{
		mixins.TimeMixin{},
	}
}

// Fields of the Place.
func (Place) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("id").StorageKey("place_id"),
		// OSM 基础属性
		field.String("osm_type").MaxLen(1), // N/W/R
		field.Int64("osm_id"),
		field.String("class").MaxLen(64),
		field.String("type").MaxLen(64),
		field.Int("admin_level").Default(15),
		// 原始名称/地址/额外标签（JSON）
		field.JSON("name", map[string]string{}).Optional(),
		field.JSON("address", map[string]string{}).Optional(),
		field.JSON("extratags", map[string]string{}).Optional(),
		// 几何：WKT 文本 + 质心 + 外包框
		field.Text("geometry"),
		field.Float("centroid_x"),
		field.Float("centroid_y"),
		field.Float("bbox_min_x"),
		field.Float("bbox_min_y"),
		field.Float("bbox_max_x"),
		field.Float("bbox_max_y"),
		field.String("country_code").MaxLen(2).Optional(),
		field.Int("partition").Default(0),
		// 索引派生属性
		field.Int("rank_search").Default(30),
		field.Int("rank_address").Default(30),
		field.Float("importance").Default(0),
		field.String("housenumber").Optional(),
		field.String("postcode").MaxLen(64).Optional(),
		field.JSON("merged_name", map[string]string{}).Optional(),
		field.JSON("merged_extratags", map[string]string{}).Optional(),
		field.Int64("parent_place_id").Optional().Nillable(),
		field.Int64("linked_place_id").Optional().Nillable(),
		field.Int("indexed_status").Default(1),
		field.Int64("indexed_date").Optional().Nillable(),
	}
}

// Indexes of the Place.
func (Place) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("osm_type", "osm_id", "class").Unique(),
		index.Fields("indexed_status", "rank_search"),
		index.Fields("parent_place_id"),
		index.Fields("linked_place_id"),
		index.Fields("centroid_x", "centroid_y"),
	}
}
