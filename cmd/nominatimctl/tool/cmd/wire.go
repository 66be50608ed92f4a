//go:build wireinject
// +build wireinject

package cmd

import (
	"nominatim-indexer/internal/biz"
	"nominatim-indexer/internal/conf"
	"nominatim-indexer/internal/data"
	"nominatim-indexer/internal/metrics"
	"nominatim-indexer/internal/service"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

func wireRuntime(*conf.Data, *conf.Indexer, log.Logger) (*runtime, func(), error) {
	panic(wire.Build(data.ProviderSet, biz.ProviderSet, service.ProviderSet, metrics.NewObserver, newRuntime))
}
