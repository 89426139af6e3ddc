package data

import (
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"

	"contextrelay/cmd/chat-service/internal/conf"
	"contextrelay/cmd/chat-service/internal/domain"
	"contextrelay/pkg/cache"
	"contextrelay/pkg/database"
)

// ProviderSet 数据层提供者集合
var ProviderSet = wire.NewSet(NewSessionStore, NewHealthChecker)

// NewSessionStore 按配置组装会话存储：Postgres 或进程内存储，可选 Redis 快照缓存
func NewSessionStore(c *conf.Data, logger log.Logger) (domain.SessionStore, func(), error) {
	helper := log.NewHelper(log.With(logger, "module", "data"))

	var (
		store   domain.SessionStore
		closers []func()
	)

	if c.Database.Enabled() {
		db, err := NewDB(c.Database, logger)
		if err != nil {
			return nil, nil, err
		}
		store = NewSessionRepository(db)
		closers = append(closers, func() {
			if err := database.Close(db); err != nil {
				helper.Errorf("close database: %v", err)
			}
		})
		helper.Info("session store: postgres")
	} else {
		store = NewMemoryStore(c.SessionTTL)
		helper.Info("session store: in-memory")
	}

	if c.Redis.Addr != "" {
		rc := cache.NewRedisCache(cache.RedisConfig{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		}, cache.Options{DefaultTTL: c.SessionTTL})
		store = NewCachedSessionStore(store, NewSessionCache(rc, c.SessionTTL), logger)
		closers = append(closers, func() {
			if err := rc.Close(); err != nil {
				helper.Errorf("close redis: %v", err)
			}
		})
		helper.Infof("session snapshot cache: redis %s", c.Redis.Addr)
	}

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return store, cleanup, nil
}
