package factory

import (
	"fmt"

	"github.com/mikey/mail-risk-analyzer/internal/adapters/cache"
	"github.com/mikey/mail-risk-analyzer/internal/config"
	"go.uber.org/zap"
)

// CacheFactory creates the analysis cache
type CacheFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewCacheFactory creates a new cache factory
func NewCacheFactory(cfg *config.Config, logger *zap.Logger) *CacheFactory {
	return &CacheFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateCache creates the in-memory analysis cache
func (f *CacheFactory) CreateCache() (*cache.MemoryCache, error) {
	cacheCfg, err := f.cfg.GetCache()
	if err != nil {
		return nil, err
	}
	if cacheCfg.Capacity <= 0 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", cacheCfg.Capacity)
	}
	if cacheCfg.TTL <= 0 {
		return nil, fmt.Errorf("cache ttl must be positive, got %s", cacheCfg.TTL)
	}

	c := cache.NewMemoryCache(f.logger, cacheCfg.TTL, cacheCfg.Capacity, cacheCfg.CleanupFrequency)
	c.SetComputeTimeout(cacheCfg.ComputeTimeout)
	return c, nil
}
