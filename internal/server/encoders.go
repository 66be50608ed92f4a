package server

import (
	"encoding/json"

	"nominatim-indexer/internal/service"

	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
)

func asPlaces(v any) ([]*service.PlaceReply, bool) {
	switch t := v.(type) {
	case *service.PlaceReply:
		return []*service.PlaceReply{t}, true
	case *service.ListReply:
		return t.Places, true
	default:
		return nil, false
	}
}

// encodeGeoJSON 把要素输出为 FeatureCollection；polygon_text=1 时附带 WKT。
func encodeGeoJSON(w http.ResponseWriter, r *http.Request, v any) error {
	places, ok := asPlaces(v)
	if !ok {
		return http.DefaultResponseEncoder(w, r, v)
	}
	wantText := r.URL.Query().Get("polygon_text") == "1"
	fc := geojson.NewFeatureCollection()
	for _, p := range places {
		if p == nil {
			continue
		}
		var g orb.Geometry = orb.Point{p.Centroid.Lon, p.Centroid.Lat}
		if p.Geometry != nil && p.Geometry.Geometry() != nil {
			g = p.Geometry.Geometry()
		}
		f := geojson.NewFeature(g)
		f.BBox = geojson.BBox(p.BoundingBox[:])
		f.Properties = geojson.Properties{
			"place_id":       p.PlaceID,
			"osm_type":       p.OSMType,
			"osm_id":         p.OSMID,
			"category":       p.Category,
			"type":           p.Type,
			"display_name":   p.DisplayName,
			"importance":     p.Importance,
			"rank_search":    p.RankSearch,
			"rank_address":   p.RankAddress,
			"indexed_status": p.IndexedStatus,
		}
		if p.ParentPlaceID != 0 {
			f.Properties["parent_place_id"] = p.ParentPlaceID
		}
		if wantText {
			f.Properties["polygon"] = wkt.MarshalString(g)
		}
		fc.Append(f)
	}
	b, err := json.Marshal(fc)
	if err != nil {
		return err
	}
	if cb := r.URL.Query().Get("json_callback"); cb != "" {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		if _, err := w.Write([]byte(cb + "(")); err != nil {
			return err
		}
		if _, err := w.Write(b); err != nil {
			return err
		}
		_, err := w.Write([]byte(")"))
		return err
	}
	w.Header().Set("Content-Type", "application/geo+json; charset=utf-8")
	_, err = w.Write(b)
	return err
}
