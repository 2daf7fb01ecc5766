package experience

import (
	"fmt"
	"strings"

	backend "github.com/redis/go-redis/v9"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Open creates a store for driver. For redis, dsn is either a redis:// URL or a
// bare host:port.
func Open(driver, dsn string) (Store, error) {
	switch driver {
	case DriverMemory, "":
		return NewMemoryStore(), nil
	case DriverSQLite:
		return NewSQLiteStore(dsn)
	case DriverRedis:
		if strings.HasPrefix(dsn, "redis://") || strings.HasPrefix(dsn, "rediss://") {
			opt, err := backend.ParseURL(dsn)
			if err != nil {
				return nil, fmt.Errorf("parse redis url: %w", err)
			}
			return NewRedisStoreFromClient(backend.NewClient(opt)), nil
		}
		return NewRedisStore(dsn, "", 0), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
