package cli

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// defaultConfigFile is looked up in the working directory when --config is
// not given.
const defaultConfigFile = "autoredistrict.toml"

// Config carries the file-configurable settings. Flags override config
// values; config values override the built-in defaults.
type Config struct {
	// Store is the plan store DSN: "file:<dir>", "sqlite:<path>", or a
	// mongodb:// URI. Empty selects the default file store.
	Store string `toml:"store"`

	Cache CacheConfig `toml:"cache"`
	Serve ServeConfig `toml:"serve"`
}

// CacheConfig selects the stage cache backend.
type CacheConfig struct {
	// Redis is the redis address (host:port). Empty selects the file cache.
	Redis         string `toml:"redis"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

// ServeConfig configures the HTTP API server.
type ServeConfig struct {
	Addr string `toml:"addr"`
}

// loadConfig reads the TOML config at path and applies environment
// overrides. An explicit path must exist; the default file is optional.
func loadConfig(path string) (Config, error) {
	var cfg Config

	explicit := path != ""
	if path == "" {
		path = defaultConfigFile
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if !explicit && os.IsNotExist(err) {
			return applyEnv(cfg), nil
		}
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	return applyEnv(cfg), nil
}

// applyEnv lets the environment override the store and server addresses so
// deployments can keep one config file across hosts.
func applyEnv(cfg Config) Config {
	if v := os.Getenv("AUTOREDISTRICT_STORE"); v != "" {
		cfg.Store = v
	}
	if v := os.Getenv("AUTOREDISTRICT_REDIS"); v != "" {
		cfg.Cache.Redis = v
	}
	if v := os.Getenv("AUTOREDISTRICT_ADDR"); v != "" {
		cfg.Serve.Addr = v
	}
	return cfg
}
