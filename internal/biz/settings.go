package biz

import (
	"strings"
	"time"

	"nominatim-indexer/internal/conf"
)

// RankRadius rank_search 不超过 MaxRank 时使用 Radius（度）。
type RankRadius struct {
	MaxRank int
	Radius  float64
}

// Settings 索引阶段使用的常量集合。
type Settings struct {
	Threads           int
	MaxWordFrequency  int64
	SuffixGlyphs      []string
	Partitions        map[string]int
	NamedRoadRadius   float64
	NamedPlaceRadius  float64
	RoadRadiusStart   float64
	RoadRadiusMax     float64
	ParallelRoadStart float64
	ParallelRoadMax   float64
	SmallFeatureArea  float64
	GridPrecision     int
	AreaCascadeMax    float64
	RoadCascadeRadius float64
	PlaceDiameters    []RankRadius
	ProgressInitial   int
	ProgressInterval  time.Duration
}

// 地名点按 rank_search 估计的覆盖直径。
var defaultPlaceDiameters = []RankRadius{
	{MaxRank: 4, Radius: 5.0},
	{MaxRank: 8, Radius: 1.8},
	{MaxRank: 12, Radius: 0.6},
	{MaxRank: 17, Radius: 0.16},
	{MaxRank: 18, Radius: 0.08},
	{MaxRank: 19, Radius: 0.04},
	{MaxRank: 30, Radius: 0.02},
}

func NewSettings(c *conf.Indexer) *Settings {
	if c == nil {
		c = conf.Default().Indexer
	}
	partitions := make(map[string]int, len(c.Partitions))
	for cc, part := range c.Partitions {
		partitions[strings.ToLower(cc)] = part
	}
	return &Settings{
		Threads:           c.Threads,
		MaxWordFrequency:  c.MaxWordFrequency,
		SuffixGlyphs:      c.SuffixGlyphs,
		Partitions:        partitions,
		NamedRoadRadius:   c.Search.NamedRoadRadius,
		NamedPlaceRadius:  c.Search.NamedPlaceRadius,
		RoadRadiusStart:   c.Search.RoadRadiusStart,
		RoadRadiusMax:     c.Search.RoadRadiusMax,
		ParallelRoadStart: c.Search.ParallelRoadStart,
		ParallelRoadMax:   c.Search.ParallelRoadMax,
		SmallFeatureArea:  c.Search.SmallFeatureArea,
		GridPrecision:     c.Search.GridPrecision,
		AreaCascadeMax:    c.Cascade.AreaMax,
		RoadCascadeRadius: c.Cascade.RoadRadius,
		PlaceDiameters:    defaultPlaceDiameters,
		ProgressInitial:   c.Progress.Initial,
		ProgressInterval:  c.Progress.Interval.AsDuration(),
	}
}

// DefaultSettings 全部使用默认配置。
func DefaultSettings() *Settings {
	return NewSettings(conf.Default().Indexer)
}

// PlaceDiameter 地名点的估计直径。
func (s *Settings) PlaceDiameter(rankSearch int) float64 {
	for _, r := range s.PlaceDiameters {
		if rankSearch <= r.MaxRank {
			return r.Radius
		}
	}
	return s.PlaceDiameters[len(s.PlaceDiameters)-1].Radius
}

// PartitionFor 国家代码到分区，未配置的国家落在分区 0。
func (s *Settings) PartitionFor(countryCode string) int {
	return s.Partitions[strings.ToLower(countryCode)]
}
