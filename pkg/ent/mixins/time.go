package mixins

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"entgo.io/ent/schema/mixin"
)

// TimeMixin 记录行的导入时间与最后一次源数据变更时间。
type TimeMixin struct {
	mixin.Schema
}

func (TimeMixin) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("created_at").Comment("导入时间,unix时间戳").
			Immutable().
			DefaultFunc(func() int64 {
				return time.Now().Unix()
			}),
		field.Int64("updated_at").Comment("源数据最后变更时间,unix时间戳").
			DefaultFunc(func() int64 {
				return time.Now().Unix()
			}).
			UpdateDefault(func() int64 {
				return time.Now().Unix()
			}),
	}
}

func (TimeMixin) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("updated_at"),
	}
}

// Now 与 DefaultFunc 使用相同的时间单位，供手写 SQL 写入时间列。
func Now() int64 {
	return time.Now().Unix()
}
