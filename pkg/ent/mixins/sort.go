package mixins

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/mixin"
)

// SortMixin 成员顺序（关系成员、way 节点）。
type SortMixin struct {
	mixin.Schema
}

func (SortMixin) Fields() []ent.Field {
	return []ent.Field{
		field.Int32("sort").Default(1).Comment("Sort number | 排序编号"),
	}
}
