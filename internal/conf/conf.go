package conf

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/env"
	"github.com/go-kratos/kratos/v2/config/file"
	_ "github.com/go-kratos/kratos/v2/encoding/yaml"
)

// Bootstrap 配置根节点。
type Bootstrap struct {
	Server  *Server  `json:"server"`
	Data    *Data    `json:"data"`
	Indexer *Indexer `json:"indexer"`
}

type Server struct {
	Http *Server_HTTP `json:"http"`
}

type Server_HTTP struct {
	Network string   `json:"network"`
	Addr    string   `json:"addr"`
	Timeout Duration `json:"timeout"`
	// WriteRate 写接口每秒请求数上限，0 为不限制
	WriteRate float64 `json:"write_rate"`
}

type Data struct {
	Database *Data_Database `json:"database"`
	Cache    *Data_Cache    `json:"cache"`
	Redis    *Data_Redis    `json:"redis"`
}

type Data_Database struct {
	Driver       string   `json:"driver"`
	Source       string   `json:"source"`
	Debug        bool     `json:"debug"`
	MaxOpenConns int      `json:"max_open_conns"`
	MaxIdleConns int      `json:"max_idle_conns"`
	SlowQuery    Duration `json:"slow_query"`
}

type Data_Cache struct {
	Expiration Duration `json:"expiration"`
	Cleanup    Duration `json:"cleanup"`
}

type Data_Redis struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	QueueKey string `json:"queue_key"`
}

// Indexer 索引器参数，半径单位均为度。
type Indexer struct {
	Threads          int               `json:"threads"`
	EventQueue       string            `json:"event_queue"` // memory | redis
	PollInterval     Duration          `json:"poll_interval"`
	MaxWordFrequency int64             `json:"max_word_frequency"`
	SuffixGlyphs     []string          `json:"suffix_glyphs"`
	AddressLevels    string            `json:"address_levels"`
	Partitions       map[string]int    `json:"partitions"`
	Search           *Indexer_Search   `json:"search"`
	Cascade          *Indexer_Cascade  `json:"cascade"`
	Progress         *Indexer_Progress `json:"progress"`
}

type Indexer_Search struct {
	NamedRoadRadius   float64 `json:"named_road_radius"`
	NamedPlaceRadius  float64 `json:"named_place_radius"`
	RoadRadiusStart   float64 `json:"road_radius_start"`
	RoadRadiusMax     float64 `json:"road_radius_max"`
	ParallelRoadStart float64 `json:"parallel_road_start"`
	ParallelRoadMax   float64 `json:"parallel_road_max"`
	SmallFeatureArea  float64 `json:"small_feature_area"`
	GridPrecision     int     `json:"grid_precision"`
}

type Indexer_Cascade struct {
	AreaMax    float64 `json:"area_max"`
	RoadRadius float64 `json:"road_radius"`
}

type Indexer_Progress struct {
	Initial  int      `json:"initial"`
	Interval Duration `json:"interval"`
}

// Duration 接受 "1.5s" 形式的字符串或纳秒整数。
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		d.Duration = parsed
	case nil:
		d.Duration = 0
	default:
		return fmt.Errorf("invalid duration %v", v)
	}
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// AsDuration 与 durationpb 保持同名，方便调用处替换。
func (d Duration) AsDuration() time.Duration {
	return d.Duration
}

// EnvPrefix 环境变量前缀，配置文件中以 ${KEY:default} 引用去掉前缀后的名字。
const EnvPrefix = "NOMINATIM_"

// Load 读取配置文件并补齐默认值。
func Load(path string) (*Bootstrap, func(), error) {
	c := config.New(
		config.WithSource(
			env.NewSource(EnvPrefix),
			file.NewSource(path),
		),
	)
	if err := c.Load(); err != nil {
		return nil, nil, err
	}
	var bc Bootstrap
	if err := c.Scan(&bc); err != nil {
		c.Close()
		return nil, nil, err
	}
	bc.ApplyDefaults()
	return &bc, func() { c.Close() }, nil
}

// Default 返回完全使用默认值的配置，测试与命令行工具使用。
func Default() *Bootstrap {
	bc := &Bootstrap{}
	bc.ApplyDefaults()
	return bc
}

func (bc *Bootstrap) ApplyDefaults() {
	if bc.Server == nil {
		bc.Server = &Server{}
	}
	if bc.Server.Http == nil {
		bc.Server.Http = &Server_HTTP{}
	}
	h := bc.Server.Http
	if h.Addr == "" {
		h.Addr = "0.0.0.0:8000"
	}
	if h.Timeout.Duration == 0 {
		h.Timeout.Duration = 10 * time.Second
	}
	if bc.Data == nil {
		bc.Data = &Data{}
	}
	if bc.Data.Database == nil {
		bc.Data.Database = &Data_Database{}
	}
	db := bc.Data.Database
	if db.Driver == "" {
		db.Driver = "sqlite3"
	}
	if db.Source == "" {
		db.Source = "file:nominatim.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
	}
	if db.MaxOpenConns == 0 {
		db.MaxOpenConns = 100
	}
	if db.MaxIdleConns == 0 {
		db.MaxIdleConns = 10
	}
	if db.SlowQuery.Duration == 0 {
		db.SlowQuery.Duration = 500 * time.Millisecond
	}
	if bc.Data.Cache == nil {
		bc.Data.Cache = &Data_Cache{}
	}
	if bc.Data.Cache.Expiration.Duration == 0 {
		bc.Data.Cache.Expiration.Duration = 5 * time.Minute
	}
	if bc.Data.Cache.Cleanup.Duration == 0 {
		bc.Data.Cache.Cleanup.Duration = 10 * time.Minute
	}
	if bc.Data.Redis == nil {
		bc.Data.Redis = &Data_Redis{}
	}
	if bc.Data.Redis.QueueKey == "" {
		bc.Data.Redis.QueueKey = "nominatim:reindex"
	}
	if bc.Indexer == nil {
		bc.Indexer = &Indexer{}
	}
	bc.Indexer.applyDefaults()
}

func (c *Indexer) applyDefaults() {
	if c.Threads <= 0 {
		c.Threads = 4
	}
	if c.EventQueue == "" {
		c.EventQueue = "memory"
	}
	if c.PollInterval.Duration == 0 {
		c.PollInterval.Duration = 5 * time.Second
	}
	if c.MaxWordFrequency == 0 {
		c.MaxWordFrequency = 50000
	}
	if c.SuffixGlyphs == nil {
		c.SuffixGlyphs = []string{"市"}
	}
	if c.Partitions == nil {
		c.Partitions = map[string]int{}
	}
	if c.Search == nil {
		c.Search = &Indexer_Search{}
	}
	s := c.Search
	if s.NamedRoadRadius == 0 {
		s.NamedRoadRadius = 0.015
	}
	if s.NamedPlaceRadius == 0 {
		s.NamedPlaceRadius = 0.04
	}
	if s.RoadRadiusStart == 0 {
		s.RoadRadiusStart = 0.00005
	}
	if s.RoadRadiusMax == 0 {
		s.RoadRadiusMax = 0.1
	}
	if s.ParallelRoadStart == 0 {
		s.ParallelRoadStart = 0.0005
	}
	if s.ParallelRoadMax == 0 {
		s.ParallelRoadMax = 0.01
	}
	if s.SmallFeatureArea == 0 {
		s.SmallFeatureArea = 0.005
	}
	if s.GridPrecision == 0 {
		s.GridPrecision = 5
	}
	if c.Cascade == nil {
		c.Cascade = &Indexer_Cascade{}
	}
	if c.Cascade.AreaMax == 0 {
		c.Cascade.AreaMax = 1.0
	}
	if c.Cascade.RoadRadius == 0 {
		c.Cascade.RoadRadius = 0.0005
	}
	if c.Progress == nil {
		c.Progress = &Indexer_Progress{}
	}
	if c.Progress.Initial == 0 {
		c.Progress.Initial = 10
	}
	if c.Progress.Interval.Duration == 0 {
		c.Progress.Interval.Duration = 10 * time.Second
	}
}
