package schema

import (
	"nominatim-indexer/pkg/ent/mixins"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// OsmRelation 原始关系（只保留解析地址需要的标签）。
type OsmRelation struct {
	ent.Schema
}

func (OsmRelation) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "osm_relation"},
	}
}

func (OsmRelation) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("id"),
		field.Int64("osm_id").Unique(),
		field.JSON("tags", map[string]string{}).Optional(),
	}
}

// OsmRelationMember 关系成员，sort 为成员顺序。
type OsmRelationMember struct {
	ent.Schema
}

func (OsmRelationMember) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "osm_relation_member"},
	}
}

func (OsmRelationMember) Mixin() []ent.Mixin {
	return []ent.Mixin{
		mixins.SortMixin{},
	}
}

func (OsmRelationMember) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("id"),
		field.Int64("relation_id"),
		field.String("member_type").MaxLen(1),
		field.Int64("member_ref"),
		field.String("role").MaxLen(64).Default(""),
	}
}

func (OsmRelationMember) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("relation_id"),
		index.Fields("member_type", "member_ref"),
	}
}

// OsmWayNode way 的节点列表。
type OsmWayNode struct {
	ent.Schema
}

func (OsmWayNode) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "osm_way_node"},
	}
}

func (OsmWayNode) Mixin() []ent.Mixin {
	return []ent.Mixin{
		mixins.SortMixin{},
	}
}

func (OsmWayNode) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("id"),
		field.Int64("way_id"),
		field.Int64("node_id"),
	}
}

func (OsmWayNode) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("way_id"),
		index.Fields("node_id"),
	}
}
