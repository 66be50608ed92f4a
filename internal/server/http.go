package server

import (
	"context"
	"io"
	"strconv"

	"nominatim-indexer/internal/conf"
	"nominatim-indexer/internal/metrics"
	"nominatim-indexer/internal/service"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/logging"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/paulmach/orb/geojson"
)

const (
	OperationDetails = "/nominatim.indexer.Places/Details"
	OperationList    = "/nominatim.indexer.Places/List"
	OperationStatus  = "/nominatim.indexer.Places/Status"
	OperationLoad    = "/nominatim.indexer.Places/Load"
	OperationDelete  = "/nominatim.indexer.Places/Delete"
	OperationReindex = "/nominatim.indexer.Places/Reindex"
	OperationIndex   = "/nominatim.indexer.Places/Index"
)

// 写操作受 write_rate 限流
var writeOperations = map[string]bool{
	OperationLoad:    true,
	OperationDelete:  true,
	OperationReindex: true,
	OperationIndex:   true,
}

// NewHTTPServer new an HTTP server.
func NewHTTPServer(c *conf.Server, places *service.PlaceService, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			logging.Server(logger),
			writeLimiter(c.Http.WriteRate, writeOperations),
		),
		http.ResponseEncoder(func(w http.ResponseWriter, r *http.Request, v any) error {
			if r != nil && r.URL.Query().Get("format") == "geojson" {
				return encodeGeoJSON(w, r, v)
			}
			return http.DefaultResponseEncoder(w, r, v)
		}),
		http.RequestDecoder(http.DefaultRequestDecoder),
	}
	if c.Http.Network != "" {
		opts = append(opts, http.Network(c.Http.Network))
	}
	if c.Http.Addr != "" {
		opts = append(opts, http.Address(c.Http.Addr))
	}
	if c.Http.Timeout.Duration > 0 {
		opts = append(opts, http.Timeout(c.Http.Timeout.AsDuration()))
	}
	srv := http.NewServer(opts...)
	srv.Handle("/metrics", metrics.Handler())
	registerPlaceRoutes(srv, places)
	return srv
}

func registerPlaceRoutes(srv *http.Server, s *service.PlaceService) {
	r := srv.Route("/")
	r.GET("/places/{id}", func(ctx http.Context) error {
		id, err := strconv.ParseInt(ctx.Vars().Get("id"), 10, 64)
		if err != nil {
			return errors.BadRequest("INVALID_PLACE_ID", "place id must be an integer")
		}
		lang := ctx.Query().Get("accept-language")
		if lang == "" {
			lang = ctx.Header().Get("Accept-Language")
		}
		return handle(ctx, OperationDetails, id, func(c context.Context) (any, error) {
			return s.Details(c, id, lang)
		})
	})
	r.GET("/places", func(ctx http.Context) error {
		q := ctx.Query()
		in := &service.ListRequest{Status: q.Get("status")}
		in.Page, _ = strconv.Atoi(q.Get("page"))
		in.PageSize, _ = strconv.Atoi(q.Get("page_size"))
		return handle(ctx, OperationList, in, func(c context.Context) (any, error) {
			return s.List(c, in)
		})
	})
	r.POST("/places", func(ctx http.Context) error {
		b, err := io.ReadAll(ctx.Request().Body)
		if err != nil {
			return errors.BadRequest("INVALID_BODY", err.Error())
		}
		fc, err := geojson.UnmarshalFeatureCollection(b)
		if err != nil {
			return errors.BadRequest("INVALID_GEOJSON", err.Error())
		}
		return handle(ctx, OperationLoad, fc, func(c context.Context) (any, error) {
			return s.Load(c, fc)
		})
	})
	r.DELETE("/places/{osm_type}/{osm_id}", func(ctx http.Context) error {
		id, err := strconv.ParseInt(ctx.Vars().Get("osm_id"), 10, 64)
		if err != nil {
			return errors.BadRequest("INVALID_OSM_ID", "osm id must be an integer")
		}
		ref := service.OSMRef{OSMType: ctx.Vars().Get("osm_type"), OSMID: id, Class: ctx.Query().Get("class")}
		return handle(ctx, OperationDelete, ref, func(c context.Context) (any, error) {
			return s.Delete(c, ref)
		})
	})
	r.POST("/reindex", func(ctx http.Context) error {
		var in service.ReindexRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		return handle(ctx, OperationReindex, &in, func(c context.Context) (any, error) {
			return s.Reindex(c, &in)
		})
	})
	r.POST("/index", func(ctx http.Context) error {
		return handle(ctx, OperationIndex, nil, func(c context.Context) (any, error) {
			return s.RunIndex(c)
		})
	})
	r.GET("/status", func(ctx http.Context) error {
		return handle(ctx, OperationStatus, nil, func(c context.Context) (any, error) {
			return s.Status(c)
		})
	})
}

// handle 走服务端中间件链后输出结果。
func handle(ctx http.Context, operation string, in any, fn func(context.Context) (any, error)) error {
	http.SetOperation(ctx, operation)
	h := ctx.Middleware(func(c context.Context, _ any) (any, error) {
		return fn(c)
	})
	out, err := h(ctx, in)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}
