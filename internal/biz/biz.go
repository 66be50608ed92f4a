package biz

import (
	"nominatim-indexer/internal/conf"

	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewSettings,
	NewRankClassifierFromConfig,
	NewTokenMaterializer,
	NewAddressResolver,
	NewLinkedPlaceMerger,
	NewReindexPropagator,
	NewIndexUsecase,
	NewScheduler,
	NewPlaceUsecase,
)

// NewRankClassifierFromConfig 未配置 address_levels 时使用内置表。
func NewRankClassifierFromConfig(c *conf.Indexer) (*RankClassifier, error) {
	return LoadRankClassifier(c.AddressLevels)
}
