package schema

import "entgo.io/ent"

// All 返回需要迁移的全部表定义。
func All() []ent.Interface {
	return []ent.Interface{
		Place{},
		AddressLine{},
		SearchEntry{},
		Word{},
		OsmRelation{},
		OsmRelationMember{},
		OsmWayNode{},
	}
}
