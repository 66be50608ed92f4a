package biz

import "context"

// ReindexReason 触发重新索引的原因。
type ReindexReason string

const (
	ReasonAreaChanged   ReindexReason = "area_changed"
	ReasonPointChanged  ReindexReason = "point_changed"
	ReasonRoadChanged   ReindexReason = "road_changed"
	ReasonParentDeleted ReindexReason = "parent_deleted"
	ReasonLinked        ReindexReason = "linked"
	ReasonUnlinked      ReindexReason = "unlinked"
)

// ReindexEvent 某个要素需要重新索引。
type ReindexEvent struct {
	PlaceID int64         `json:"place_id"`
	Reason  ReindexReason `json:"reason"`
	Source  int64         `json:"source"`
}

// EventQueue 待应用的重新索引事件，调度器在每组 rank 结束后统一应用。
type EventQueue interface {
	Publish(ctx context.Context, events ...ReindexEvent) error
	// Drain 取出至多 max 个事件，max <= 0 表示全部
	Drain(ctx context.Context, max int) ([]ReindexEvent, error)
	Len(ctx context.Context) (int64, error)
}
