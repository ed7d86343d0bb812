package main

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"orderflow/cmd/server/config"
	ordersdb "orderflow/internal/db/orders"
	"orderflow/internal/orders"
	"orderflow/internal/store"
)

var openDB = func(driver, dsn string) (*sql.DB, error) {
	return sql.Open(driver, dsn)
}

// backends holds the built persistence layer plus its cleanup.
type backends struct {
	store   store.Store
	gateway orders.PaymentGateway
	runlog  orders.RunLog
	cleanup func()
}

// buildBackends wires the record store, payment gateway and run log.
// Preference order for the store is Redis, then Postgres, then memory; the
// gateway and run log use Postgres when DATABASE_URL is set. Fallbacks are
// logged, never fatal, so the server always boots.
func buildBackends(ctx context.Context) (backends, error) {
	b := backends{
		store:   store.NewMemoryStore(),
		gateway: orders.NewInMemoryGateway(),
		runlog:  orders.NoopRunLog{},
		cleanup: func() {},
	}

	var closers []func()
	addCloser := func(fn func()) {
		closers = append(closers, fn)
		b.cleanup = func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}
	}

	if dsn := config.GetDatabaseURL(); dsn != "" {
		db, err := openDB("pgx", dsn)
		if err != nil {
			log.Printf("postgres open failed, using in-memory backends: %v", err)
		} else {
			setupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			pgStore, storeErr := ordersdb.NewPostgresStoreWithSchema(setupCtx, db)
			gateway, gwErr := ordersdb.NewPostgresGatewayWithSchema(setupCtx, db)
			runlog, rlErr := ordersdb.NewPostgresRunLogWithSchema(setupCtx, db)
			if storeErr != nil || gwErr != nil || rlErr != nil {
				log.Printf("postgres init failed, using in-memory backends: %v %v %v", storeErr, gwErr, rlErr)
				_ = db.Close()
			} else {
				log.Printf("postgres backends enabled")
				b.store = pgStore
				b.gateway = gateway
				b.runlog = runlog
				addCloser(func() {
					if err := db.Close(); err != nil {
						log.Printf("close postgres: %v", err)
					}
				})
			}
		}
	}

	redisCfg, err := config.LoadRedis()
	if err != nil {
		b.cleanup()
		return backends{}, err
	}
	if redisCfg.URL != "" {
		client, err := openRedis(ctx, redisCfg)
		if err != nil {
			log.Printf("redis unavailable, keeping current record store: %v", err)
		} else {
			log.Printf("redis record store enabled")
			b.store = store.NewRedisStore(redisClientAdapter{client: client}, redisCfg.KeyPrefix)
			addCloser(func() {
				if err := client.Close(); err != nil {
					log.Printf("close redis: %v", err)
				}
			})
		}
	}

	return b, nil
}

func openRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.DialTimeout != nil {
		opts.DialTimeout = *cfg.DialTimeout
	}
	if cfg.ReadTimeout != nil {
		opts.ReadTimeout = *cfg.ReadTimeout
	}
	if cfg.WriteTimeout != nil {
		opts.WriteTimeout = *cfg.WriteTimeout
	}
	if cfg.PoolSize != nil {
		opts.PoolSize = *cfg.PoolSize
	}
	if cfg.MinIdleConns != nil {
		opts.MinIdleConns = *cfg.MinIdleConns
	}
	if cfg.MaxRetries != nil {
		opts.MaxRetries = *cfg.MaxRetries
	}
	if cfg.TLSConfig != nil {
		opts.TLSConfig = cfg.TLSConfig
	}

	client := redis.NewClient(opts)

	pingCtx := ctx
	if cfg.HealthcheckTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(pingCtx, cfg.HealthcheckTimeout)
		defer cancel()
	}
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

type redisClientAdapter struct {
	client *redis.Client
}

func (a redisClientAdapter) Pipeline() store.RedisPipeliner {
	return redisPipelineAdapter{pipe: a.client.Pipeline()}
}

func (a redisClientAdapter) HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd {
	return a.client.HGetAll(ctx, key)
}

func (a redisClientAdapter) ZRangeByLex(ctx context.Context, key string, by *redis.ZRangeBy) *redis.StringSliceCmd {
	return a.client.ZRangeByLex(ctx, key, by)
}

type redisPipelineAdapter struct {
	pipe redis.Pipeliner
}

func (p redisPipelineAdapter) HSet(ctx context.Context, key string, values ...any) *redis.IntCmd {
	return p.pipe.HSet(ctx, key, values...)
}

func (p redisPipelineAdapter) HSetNX(ctx context.Context, key, field string, value any) *redis.BoolCmd {
	return p.pipe.HSetNX(ctx, key, field, value)
}

func (p redisPipelineAdapter) ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd {
	return p.pipe.ZAdd(ctx, key, members...)
}

func (p redisPipelineAdapter) Exec(ctx context.Context) ([]redis.Cmder, error) {
	return p.pipe.Exec(ctx)
}
