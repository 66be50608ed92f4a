package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// AddressLine 地址链中的一行（place_addressline）。
type AddressLine struct {
	ent.Schema
}

func (AddressLine) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "place_addressline"},
	}
}

// Fields of the AddressLine.
func (AddressLine) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("id"),
		field.Int64("place_id"),
		field.Int64("address_place_id"),
		field.Int("cached_rank_address"),
		field.Float("distance"),
		field.Bool("isaddress"),
		field.Bool("fromarea"),
	}
}

func (AddressLine) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("place_id"),
		index.Fields("address_place_id"),
	}
}
