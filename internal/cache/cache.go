// Package cache provides the process-level response cache used by the
// market data gateway: an in-memory TTL map and a Redis implementation.
package cache

import (
	"fmt"
	"strings"

	"github.com/bobmcallan/digest/internal/common"
	"github.com/bobmcallan/digest/internal/interfaces"
)

// New creates the cache selected by configuration. Backend "none" returns
// a nil cache, which the gateway treats as disabled.
func New(cfg common.CacheConfig, logger *common.Logger) (interfaces.Cache, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		r, err := NewRedis(cfg, logger)
		if err != nil {
			return nil, err
		}
		return r, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// Key joins key parts with ':'
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}
