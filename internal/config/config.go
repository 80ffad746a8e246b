// Package config loads the engine's tunables — branching factor and cache
// capacities — from an optional file plus environment overrides, the way
// the rest of the corpus's command-line tools load theirs.
package config

import (
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"btreedb/internal/dberrors"
)

// Config holds the engine's tunables. D shapes the on-disk nodes and must
// not change across reopens of the same files; the cache capacities apply
// only to the session opened with them.
type Config struct {
	D         int `mapstructure:"d"`
	NodeCache int `mapstructure:"node_cache"`
	PageCache int `mapstructure:"page_cache"`
}

// Defaults returns the engine's out-of-the-box tunables: d=2 (K_max=4,
// K_min=2), and a modest cache on both stores.
func Defaults() Config {
	return Config{D: 2, NodeCache: 64, PageCache: 64}
}

// Load reads path (if non-empty; a file that cannot be read is an error)
// over the defaults, then lets
// BTREEDB_-prefixed environment variables override individual fields.
func Load(path string) (Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetEnvPrefix("btreedb")
	v.AutomaticEnv()
	v.SetDefault("d", cfg.D)
	v.SetDefault("node_cache", cfg.NodeCache)
	v.SetDefault("page_cache", cfg.PageCache)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, dberrors.New(dberrors.KindIOFailure, "config.Load", errors.Wrap(err, path))
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, dberrors.New(dberrors.KindInvalidArgument, "config.Load", err)
	}
	if cfg.D <= 0 {
		return Config{}, dberrors.New(dberrors.KindInvalidArgument, "config.Load",
			errors.Errorf("branching factor d must be positive, got %d", cfg.D))
	}
	if cfg.NodeCache < 0 || cfg.PageCache < 0 {
		return Config{}, dberrors.New(dberrors.KindInvalidArgument, "config.Load",
			errors.New("cache capacities must be >= 0"))
	}
	return cfg, nil
}
