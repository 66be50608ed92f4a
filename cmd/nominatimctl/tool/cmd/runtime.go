package cmd

import (
	"nominatim-indexer/internal/biz"
	"nominatim-indexer/internal/service"
)

// runtime 命令行共用的服务对象。
type runtime struct {
	places  *service.PlaceService
	indexer *service.IndexerService
	words   biz.WordStatistics
}

func newRuntime(places *service.PlaceService, indexer *service.IndexerService, words biz.WordStatistics) *runtime {
	return &runtime{places: places, indexer: indexer, words: words}
}
