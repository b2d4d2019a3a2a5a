package serv

import (
	"github.com/corvid-labs/fieldcache/core"
	"github.com/corvid-labs/fieldcache/serv/internal/util"
	"go.uber.org/zap"
)

// NewLogger builds the service logger from config
func NewLogger(c *Config) *zap.Logger {
	return util.NewLogger(c.LogFormat == "json", util.LevelFromString(c.LogLevel))
}

// NewInterceptor wires up the caching layer from service config: store
// backend, strategy registry and interceptor. A nil registry gets the
// default strategy; deployments installing a custom key strategy pass
// their own. The returned store is exposed so mutation handlers can
// invalidate tags and callers can close it.
func NewInterceptor(c *Config, schema *core.Schema, registry *core.Registry, log *zap.Logger) (*core.Interceptor, CacheStore, error) {
	if log == nil {
		log = NewLogger(c)
	}

	store, err := NewStore(c.Caching, log)
	if err != nil {
		return nil, nil, err
	}

	ic := core.NewInterceptor(store, registry, schema,
		core.Config{TaggingEnabled: c.Caching.TaggingEnabled}, log)
	return ic, store, nil
}
