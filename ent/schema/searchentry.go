package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// SearchEntry 搜索索引行（search_name），token 列表以 JSON 存放。
type SearchEntry struct {
	ent.Schema
}

func (SearchEntry) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "search_name"},
	}
}

func (SearchEntry) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("id"),
		field.Int64("place_id"),
		field.Int("search_rank"),
		field.Int("address_rank"),
		field.Float("importance"),
		field.String("country_code").MaxLen(2).Optional(),
		field.JSON("name_vector", []int64{}),
		field.JSON("nameaddress_vector", []int64{}),
		field.Float("centroid_x"),
		field.Float("centroid_y"),
	}
}

func (SearchEntry) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("place_id").Unique(),
	}
}
