// Package config loads cache configuration from TOML or YAML files and
// builds providers, registries and cache options from it.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/modelcache"
	"github.com/unkn0wn-root/modelcache/codec"
)

// Format selects the file syntax.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// Provider kinds.
const (
	KindMemory    = "memory"
	KindRedis     = "redis"
	KindRistretto = "ristretto"
	KindBigCache  = "bigcache"
)

// Duration is a time.Duration written as "5s", "1m30s" in files.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

type RedisConfig struct {
	Addr     string `toml:"addr" yaml:"addr"`
	Username string `toml:"username" yaml:"username"`
	Password string `toml:"password" yaml:"password"`
	DB       int    `toml:"db" yaml:"db"`
}

type RistrettoConfig struct {
	NumCounters int64 `toml:"num_counters" yaml:"num_counters"`
	MaxCost     int64 `toml:"max_cost" yaml:"max_cost"`
	BufferItems int64 `toml:"buffer_items" yaml:"buffer_items"`
	Metrics     bool  `toml:"metrics" yaml:"metrics"`
}

type BigCacheConfig struct {
	LifeWindow         Duration `toml:"life_window" yaml:"life_window"`
	CleanWindow        Duration `toml:"clean_window" yaml:"clean_window"`
	MaxEntriesInWindow int      `toml:"max_entries_in_window" yaml:"max_entries_in_window"`
	MaxEntrySize       int      `toml:"max_entry_size" yaml:"max_entry_size"`
	HardMaxCacheSizeMB int      `toml:"hard_max_cache_size_mb" yaml:"hard_max_cache_size_mb"`
}

type ProviderConfig struct {
	Kind      string          `toml:"kind" yaml:"kind"`
	Redis     RedisConfig     `toml:"redis" yaml:"redis"`
	Ristretto RistrettoConfig `toml:"ristretto" yaml:"ristretto"`
	BigCache  BigCacheConfig  `toml:"bigcache" yaml:"bigcache"`
}

// NotifyConfig enables cross-process invalidation over Redis Pub/Sub.
// It reuses the redis provider settings.
type NotifyConfig struct {
	Channel string `toml:"channel" yaml:"channel"`
}

// TypeConfig declares one cached record type.
type TypeConfig struct {
	Namespace string   `toml:"namespace" yaml:"namespace"`
	Name      string   `toml:"name" yaml:"name"`
	Primary   string   `toml:"primary" yaml:"primary"`
	Unique    []string `toml:"unique" yaml:"unique"`
}

func (t TypeConfig) Descriptor() modelcache.Descriptor {
	return modelcache.Descriptor{
		Type:    modelcache.Type{Namespace: t.Namespace, Name: t.Name},
		Primary: t.Primary,
		Unique:  t.Unique,
	}
}

// Config mirrors the configuration file schema.
type Config struct {
	Disabled       bool           `toml:"disabled" yaml:"disabled"`
	Codec          string         `toml:"codec" yaml:"codec"`
	MaxValueSize   int            `toml:"max_value_size" yaml:"max_value_size"`
	DefaultTTL     Duration       `toml:"default_ttl" yaml:"default_ttl"`
	TombstoneDelay Duration       `toml:"tombstone_delay" yaml:"tombstone_delay"`
	Provider       ProviderConfig `toml:"provider" yaml:"provider"`
	Notify         NotifyConfig   `toml:"notify" yaml:"notify"`
	Types          []TypeConfig   `toml:"types" yaml:"types"`
}

// Load reads path and picks the format from its extension.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	var f Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		f = FormatTOML
	case ".yaml", ".yml":
		f = FormatYAML
	default:
		return Config{}, fmt.Errorf("%s: unsupported config extension", path)
	}
	cfg, err := Parse(data, f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data strictly: unknown keys are errors. The result is
// defaulted and validated.
func Parse(data []byte, f Format) (Config, error) {
	var cfg Config
	switch f {
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return Config{}, fmt.Errorf("unknown configuration keys: %s", strict.String())
			}
			return Config{}, err
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		// an empty document decodes to io.EOF
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, err
		}
	default:
		return Config{}, fmt.Errorf("unknown format %q", f)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Provider.Kind == "" {
		c.Provider.Kind = KindMemory
	}
	if c.Codec == "" {
		c.Codec = codec.NameJSON
	}
	if c.TombstoneDelay == 0 {
		c.TombstoneDelay = Duration(modelcache.DefaultTombstoneDelay)
	}
}

// Validate checks values that would otherwise fail late, when a cache is built.
func (c Config) Validate() error {
	switch c.Codec {
	case codec.NameJSON, codec.NameMsgpack, codec.NameCBOR:
	default:
		return fmt.Errorf("codec: unknown codec %q", c.Codec)
	}
	if c.DefaultTTL < 0 || c.TombstoneDelay < 0 {
		return errors.New("durations must not be negative")
	}
	switch c.Provider.Kind {
	case KindMemory:
	case KindRedis:
		if c.Provider.Redis.Addr == "" {
			return errors.New("provider.redis.addr is required")
		}
	case KindRistretto:
		r := c.Provider.Ristretto
		if r.NumCounters <= 0 || r.MaxCost <= 0 || r.BufferItems <= 0 {
			return errors.New("provider.ristretto: num_counters, max_cost and buffer_items must be positive")
		}
	case KindBigCache:
		if c.Provider.BigCache.LifeWindow <= 0 {
			return errors.New("provider.bigcache.life_window must be positive")
		}
	default:
		return fmt.Errorf("unknown provider kind %q", c.Provider.Kind)
	}
	if c.Notify.Channel != "" && c.Provider.Redis.Addr == "" {
		return errors.New("notify requires provider.redis.addr")
	}
	_, err := c.Registry()
	return err
}

// Registry registers every configured type.
func (c Config) Registry() (*modelcache.Registry, error) {
	reg := modelcache.NewRegistry()
	for i, t := range c.Types {
		if _, err := reg.Register(t.Descriptor()); err != nil {
			return nil, fmt.Errorf("types[%d]: %w", i, err)
		}
	}
	return reg, nil
}
