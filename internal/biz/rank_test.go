package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyAdminLevelsMonotonic(t *testing.T) {
	c := DefaultRankClassifier()
	for _, cc := range []string{"", "de", "us", "ca", "fr"} {
		prev := 0
		for level := 1; level <= 15; level++ {
			r, ok := c.Classify(RankInput{
				CountryCode: cc,
				Kind:        KindArea,
				OSMType:     OSMRelation,
				Class:       "boundary",
				Type:        "administrative",
				AdminLevel:  level,
			})
			require.True(t, ok)
			assert.GreaterOrEqual(t, r.Address, prev, "country %q level %d", cc, level)
			assert.LessOrEqual(t, r.Address, 25, "country %q level %d", cc, level)
			prev = r.Address
		}
	}
}

func TestClassifyAdminLevels(t *testing.T) {
	c := DefaultRankClassifier()
	tests := []struct {
		cc      string
		level   int
		search  int
		address int
	}{
		{"", 2, 4, 4},
		{"", 4, 8, 8},
		{"", 8, 16, 16},
		{"", 12, 24, 24},
		{"", 13, 25, 25},
		{"", 0, 25, 25},
		{"de", 5, 10, 10},
	}
	for _, tt := range tests {
		r, ok := c.Classify(RankInput{CountryCode: tt.cc, Kind: KindArea, Class: "boundary", Type: "administrative", AdminLevel: tt.level})
		require.True(t, ok)
		assert.Equal(t, tt.search, r.Search, "level %d", tt.level)
		assert.Equal(t, tt.address, r.Address, "level %d", tt.level)
	}
}

func TestClassifyPostcode(t *testing.T) {
	c := DefaultRankClassifier()
	tests := []struct {
		name     string
		cc       string
		kind     GeometryKind
		postcode string
		search   int
		address  int
	}{
		{"gb full", "gb", KindArea, "SW1A 1AA", 25, 5},
		{"gb sector", "gb", KindArea, "SW1A 1", 23, 5},
		{"gb outward", "gb", KindArea, "SW1A", 21, 5},
		{"de five digits", "de", KindArea, "10117", 21, 11},
		{"generic with separator", "br", KindArea, "01310-100", 25, 11},
		{"point has no address rank", "de", KindPoint, "10117", 21, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := c.Classify(RankInput{CountryCode: tt.cc, Kind: tt.kind, Class: "boundary", Type: "postal_code", Postcode: tt.postcode})
			require.True(t, ok)
			assert.Equal(t, tt.search, r.Search)
			assert.Equal(t, tt.address, r.Address)
		})
	}
}

func TestClassifyPostcodeWithoutTextIsDropped(t *testing.T) {
	c := DefaultRankClassifier()
	_, ok := c.Classify(RankInput{CountryCode: "de", Kind: KindArea, Class: "place", Type: "postcode"})
	assert.False(t, ok)

	p := &Place{Class: "place", Type: "postcode", Geometry: square(0, 0, 1, 1), Name: map[string]string{"ref": "12345"}}
	in := RankInputOf(p)
	assert.Equal(t, "12345", in.Postcode)
}

func TestClassifyClearsCountryForBroadRanks(t *testing.T) {
	c := DefaultRankClassifier()

	r, ok := c.Classify(RankInput{CountryCode: "DE", Kind: KindPoint, Class: "place", Type: "continent"})
	require.True(t, ok)
	assert.Equal(t, 2, r.Search)
	assert.Empty(t, r.CountryCode)

	r, ok = c.Classify(RankInput{CountryCode: "DE", Kind: KindArea, Class: "boundary", Type: "administrative", AdminLevel: 2})
	require.True(t, ok)
	assert.Equal(t, 4, r.Search)
	assert.Equal(t, "de", r.CountryCode)
}

func TestClassifyFixedBands(t *testing.T) {
	c := DefaultRankClassifier()
	tests := []struct {
		name    string
		in      RankInput
		search  int
		address int
	}{
		{"city", RankInput{Kind: KindPoint, Class: "place", Type: "city"}, 16, 16},
		{"capital city", RankInput{Kind: KindPoint, Class: "place", Type: "city", Capital: true}, 15, 16},
		{"village", RankInput{Kind: KindPoint, Class: "place", Type: "village"}, 19, 16},
		{"canadian county", RankInput{CountryCode: "ca", Kind: KindArea, Class: "place", Type: "county"}, 10, 10},
		{"us county", RankInput{CountryCode: "us", Kind: KindArea, Class: "place", Type: "county"}, 12, 12},
		{"residential road", RankInput{Kind: KindLine, Class: "highway", Type: "residential"}, 26, 26},
		{"footway", RankInput{Kind: KindLine, Class: "highway", Type: "footway"}, 27, 27},
		{"bus stop", RankInput{Kind: KindPoint, Class: "highway", Type: "residential"}, 30, 30},
		{"landuse point", RankInput{Kind: KindPoint, Class: "landuse", Type: "residential"}, 30, 30},
		{"landuse area", RankInput{Kind: KindArea, Class: "landuse", Type: "residential"}, 22, 22},
		{"river relation", RankInput{Kind: KindLine, OSMType: OSMRelation, Class: "waterway", Type: "river"}, 18, 0},
		{"unknown class", RankInput{Kind: KindPoint, Class: "amenity", Type: "cafe"}, 30, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := c.Classify(tt.in)
			require.True(t, ok)
			assert.Equal(t, tt.search, r.Search)
			assert.Equal(t, tt.address, r.Address)
		})
	}
}

func TestNewRankClassifierRejectsBadEntries(t *testing.T) {
	_, err := NewRankClassifier([]byte(`[{"tags": {"place": {"city": [1, 2, 3]}}}]`))
	assert.Error(t, err)

	_, err = NewRankClassifier([]byte(`{`))
	assert.Error(t, err)
}

func TestCountryOverridesOnlyApplyToListedCountries(t *testing.T) {
	c, err := NewRankClassifier([]byte(`[
		{"tags": {"place": {"town": [18, 16]}}},
		{"countries": ["NL"], "tags": {"place": {"town": [17, 14]}}}
	]`))
	require.NoError(t, err)

	r, _ := c.Classify(RankInput{CountryCode: "nl", Kind: KindPoint, Class: "place", Type: "town"})
	assert.Equal(t, 17, r.Search)
	assert.Equal(t, 14, r.Address)

	r, _ = c.Classify(RankInput{CountryCode: "be", Kind: KindPoint, Class: "place", Type: "town"})
	assert.Equal(t, 18, r.Search)
	assert.Equal(t, 16, r.Address)
}
