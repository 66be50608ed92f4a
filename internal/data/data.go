package data

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync"
	"time"

	"nominatim-indexer/ent/schema"
	"nominatim-indexer/internal/biz"
	"nominatim-indexer/internal/conf"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/store/go_cache/v4"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-sql-driver/mysql"
	"github.com/google/wire"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	gocache "github.com/patrickmn/go-cache"
	"github.com/qustavo/sqlhooks/v2"
	"github.com/redis/go-redis/v9"
	"modernc.org/sqlite"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewData,
	NewSqlDriver,
	NewPlaceRepo,
	NewSourceRepo,
	NewSearchRepo,
	NewWordRepo,
	NewLocatorRegistry,
	NewEventQueue,
	wire.Bind(new(biz.Tokenizer), new(*WordRepo)),
	wire.Bind(new(biz.WordStatistics), new(*WordRepo)),
)

// Data .
type Data struct {
	sqlDrv  *entsql.Driver
	dialect string
	cache   cache.CacheInterface[any]
	rdb     *redis.Client
	conf    *conf.Data
}

// SQLDB 返回共享的 *sql.DB（由 ent 驱动管理的连接池）
func (d *Data) SQLDB() *sql.DB {
	return d.sqlDrv.DB()
}

// Dialect ent 方言名。
func (d *Data) Dialect() string {
	return d.dialect
}

// Cache 返回缓存客户端
func (d *Data) Cache() cache.CacheInterface[any] {
	return d.cache
}

// Redis 未配置时为 nil。
func (d *Data) Redis() *redis.Client {
	return d.rdb
}

// NewData .
func NewData(c *conf.Data, drv *entsql.Driver, logger log.Logger) (*Data, func(), error) {
	goCache := gocache.New(c.Cache.Expiration.AsDuration(), c.Cache.Cleanup.AsDuration())
	store := go_cache.NewGoCache(goCache)
	data := &Data{
		sqlDrv:  drv,
		dialect: drv.Dialect(),
		cache:   cache.New[any](store),
		conf:    c,
	}
	if c.Redis != nil && c.Redis.Addr != "" {
		data.rdb = redis.NewClient(&redis.Options{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})
	}
	helper := log.NewHelper(logger)
	cleanup := func() {
		helper.Info("closing the data resources")
		if data.rdb != nil {
			_ = data.rdb.Close()
		}
		_ = drv.Close()
	}
	// Run the auto migration tool.
	if err := Migrate(context.Background(), drv, schema.All()...); err != nil {
		cleanup()
		return nil, nil, err
	}
	return data, cleanup, nil
}

var (
	registerMu sync.Mutex
	registered = map[string]bool{}
)

// registerHooked 以 name 注册带 sqlhooks 的驱动，重复注册忽略。
func registerHooked(name string, d driver.Driver, hooks *Hooks) {
	registerMu.Lock()
	defer registerMu.Unlock()
	if registered[name] {
		return
	}
	sql.Register(name, sqlhooks.Wrap(d, hooks))
	registered[name] = true
}

func NewSqlDriver(c *conf.Data) (*entsql.Driver, error) {
	hooks := NewHooks(c.Database.SlowQuery.AsDuration())
	switch c.Database.Driver {
	case "mysql":
		return newMySqlDriver(c, hooks)
	case "sqlite3", "sqlite":
		return openDriver(c, "sqlite3WithHooks", &sqlite.Driver{}, dialect.SQLite, hooks)
	case "postgres", "postgresql", "pgx":
		return openDriver(c, "pgxWithHooks", &stdlib.Driver{}, dialect.Postgres, hooks)
	case "pq":
		return openDriver(c, "pqWithHooks", &pq.Driver{}, dialect.Postgres, hooks)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", c.Database.Driver)
	}
}

func openDriver(c *conf.Data, name string, d driver.Driver, dialectName string, hooks *Hooks) (*entsql.Driver, error) {
	registerHooked(name, d, hooks)
	db, err := sql.Open(name, c.Database.Source)
	if err != nil {
		return nil, err
	}
	configurePool(db, c.Database)
	return entsql.OpenDB(dialectName, db), nil
}

func configurePool(db *sql.DB, c *conf.Data_Database) {
	db.SetMaxIdleConns(c.MaxIdleConns)
	db.SetMaxOpenConns(c.MaxOpenConns)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(time.Minute * 10)
}

func newMySqlDriver(c *conf.Data, hooks *Hooks) (*entsql.Driver, error) {
	registerHooked("mysqlWithHooks", &mysql.MySQLDriver{}, hooks)
	cfg, err := mysql.ParseDSN(c.Database.Source)
	if err != nil {
		return nil, err
	}
	dbName := cfg.DBName
	// 去除数据库名字
	cfg.DBName = ""
	tdb, err := sql.Open("mysqlWithHooks", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}
	defer tdb.Close()
	// 自动创建数据库
	if _, err = tdb.Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s CHARACTER SET utf8mb4", dbName)); err != nil {
		return nil, err
	}
	return openDriver(c, "mysqlWithHooks", &mysql.MySQLDriver{}, dialect.MySQL, hooks)
}
