package service

import (
	"os"
	"path/filepath"
	"testing"

	"nominatim-indexer/internal/biz"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeatures = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "geometry": {"type": "Point", "coordinates": [13.4, 52.5]},
      "properties": {
        "osm_type": "n", "osm_id": 7, "class": "amenity", "type": "cafe",
        "name": {"name": "Blue Cup", "name:de": "Blaue Tasse"},
        "address": {"street": "Main St", "housenumber": 4},
        "country_code": "DE"
      }
    },
    {
      "type": "Feature",
      "geometry": {"type": "LineString", "coordinates": [[13.4, 52.5], [13.5, 52.5]]},
      "properties": {
        "osm_type": "W", "osm_id": 5, "class": "highway", "type": "residential",
        "name": {"name": "Main St"},
        "nodes": [1, 2, 3]
      }
    },
    {
      "type": "Feature",
      "geometry": null,
      "properties": {
        "osm_type": "R", "osm_id": 100,
        "tags": {"type": "associatedStreet"},
        "members": [
          {"type": "w", "ref": 5, "role": "street"},
          {"type": "N", "ref": 7, "role": "house"}
        ]
      }
    },
    {
      "type": "Feature",
      "geometry": null,
      "properties": {"osm_type": "N", "osm_id": 9, "class": "shop", "deleted": true}
    }
  ]
}`

func TestParseFeatures(t *testing.T) {
	fc, err := geojson.UnmarshalFeatureCollection([]byte(sampleFeatures))
	require.NoError(t, err)

	batch, err := ParseFeatures(fc)
	require.NoError(t, err)
	require.Len(t, batch.Places, 2)

	cafe := batch.Places[0]
	assert.Equal(t, biz.OSMNode, cafe.OSMType)
	assert.Equal(t, int64(7), cafe.OSMID)
	assert.Equal(t, "amenity", cafe.Class)
	assert.Equal(t, "Blaue Tasse", cafe.Name["name:de"])
	// 数字标签转为字符串
	assert.Equal(t, map[string]string{"street": "Main St", "housenumber": "4"}, cafe.Address)
	assert.Equal(t, "DE", cafe.CountryCode)
	assert.Equal(t, orb.Point{13.4, 52.5}, cafe.Geometry)
	assert.Nil(t, cafe.ExtraTags)

	road := batch.Places[1]
	assert.Equal(t, biz.OSMWay, road.OSMType)
	assert.Equal(t, map[int64][]int64{5: {1, 2, 3}}, batch.Ways)

	require.Len(t, batch.Relations, 1)
	rel := batch.Relations[0]
	assert.Equal(t, int64(100), rel.OSMID)
	assert.Equal(t, "associatedStreet", rel.Tags["type"])
	assert.Equal(t, []biz.RelationMember{
		{Type: biz.OSMWay, Ref: 5, Role: "street"},
		{Type: biz.OSMNode, Ref: 7, Role: "house"},
	}, rel.Members)

	assert.Equal(t, []OSMRef{{OSMType: biz.OSMNode, OSMID: 9, Class: "shop"}}, batch.Deletes)
}

func TestParseFeaturesRequiresOSMID(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.Point{1, 2})
	f.Properties["osm_type"] = "N"
	fc.Append(f)

	_, err := ParseFeatures(fc)
	require.Error(t, err)
	assert.Equal(t, "INVALID_FEATURE", errors.Reason(err))
	assert.True(t, errors.IsBadRequest(err))
}

func TestReadFeatureFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "places.geojson")
	require.NoError(t, os.WriteFile(path, []byte(sampleFeatures), 0o644))

	batch, err := ReadFeatureFile(path)
	require.NoError(t, err)
	assert.Len(t, batch.Places, 2)

	bad := filepath.Join(dir, "bad.geojson")
	require.NoError(t, os.WriteFile(bad, []byte(`{"type": "Feature`), 0o644))
	_, err = ReadFeatureFile(bad)
	assert.Equal(t, "INVALID_GEOJSON", errors.Reason(err))

	_, err = ReadFeatureFile(filepath.Join(dir, "missing.geojson"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
