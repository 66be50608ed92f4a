package biz

import (
	"github.com/go-kratos/kratos/v2/errors"
)

var (
	BadRequest     = "BAD_REQUEST"
	InternalServer = "INTERNAL_SERVER"
	NotFound       = "NOT_FOUND"
	Conflict       = "CONFLICT"
)

var (
	ErrInternalServer    = errors.New(500, InternalServer, "internal server error")
	ErrPlaceNotFound     = errors.New(404, "PLACE_NOT_FOUND", "place not found")
	ErrStatusChanged     = errors.New(409, "PLACE_STATUS_CHANGED", "place indexed_status changed during pass")
	ErrUnknownPartition  = errors.New(500, "UNKNOWN_PARTITION", "no spatial locator for partition")
	ErrInvalidGeometry   = errors.New(400, "INVALID_GEOMETRY", "invalid geometry")
	ErrInvalidPlace      = errors.New(400, BadRequest, "invalid place")
	ErrTokenizerConflict = errors.New(500, "TOKEN_CONFLICT", "word table insert lost a race and the row is still missing")
)

// IsNotFound 判断是否为要素不存在。
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPlaceNotFound)
}

type FindByPageCond struct {
	PageNum  int
	PageSize int
}

func (c FindByPageCond) Offset() int {
	if c.PageNum <= 1 {
		return 0
	}
	return (c.PageNum - 1) * c.PageSize
}

func (c FindByPageCond) Limit() int {
	if c.PageSize <= 0 || c.PageSize > 500 {
		return 100
	}
	return c.PageSize
}

// IsStatusChanged 提交时 indexed_status 已被并发修改。
func IsStatusChanged(err error) bool {
	return errors.Is(err, ErrStatusChanged)
}
