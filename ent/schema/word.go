package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Word 词表：每个 (token, 判别字段) 组合对应唯一的 word_id。
// 判别字段使用空串而不是 NULL，保证唯一索引生效。
type Word struct {
	ent.Schema
}

func (Word) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "word"},
	}
}

func (Word) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("id").StorageKey("word_id"),
		field.String("word_token").MaxLen(200),
		field.String("word").MaxLen(200).Optional(),
		field.String("class").MaxLen(64).Default(""),
		field.String("type").MaxLen(64).Default(""),
		field.String("country_code").MaxLen(8).Default(""),
		field.String("operator").MaxLen(16).Default(""),
		field.Int64("search_name_count").Default(0),
	}
}

func (Word) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("word_token", "class", "type", "country_code", "operator").Unique(),
	}
}
