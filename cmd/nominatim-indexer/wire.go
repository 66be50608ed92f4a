//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"nominatim-indexer/internal/biz"
	"nominatim-indexer/internal/conf"
	"nominatim-indexer/internal/data"
	"nominatim-indexer/internal/metrics"
	"nominatim-indexer/internal/server"
	"nominatim-indexer/internal/service"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// wireApp init kratos application.
func wireApp(*conf.Server, *conf.Data, *conf.Indexer, log.Logger) (*kratos.App, func(), error) {
	panic(wire.Build(server.ProviderSet, data.ProviderSet, biz.ProviderSet, service.ProviderSet, metrics.NewObserver, newApp))
}
