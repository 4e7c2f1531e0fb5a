// Package config loads the netcodec configuration using viper.
package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"firestige.xyz/netcodec/internal/core"
	"firestige.xyz/netcodec/internal/log"
)

// Config is the document under the `netcodec:` root key.
type Config struct {
	Log      log.Config      `mapstructure:"log" yaml:"log"`
	Pool     PoolConfig      `mapstructure:"pool" yaml:"pool"`
	Engine   EngineConfig    `mapstructure:"engine" yaml:"engine"`
	Decoder  DecoderConfig   `mapstructure:"decoder" yaml:"decoder"`
	Metrics  MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Handlers []HandlerConfig `mapstructure:"handlers" yaml:"handlers"`
}

// PoolConfig sizes the frame buffer pool.
type PoolConfig struct {
	InitialSize   int  `mapstructure:"initial_size" yaml:"initial_size"`
	MaxSize       int  `mapstructure:"max_size" yaml:"max_size"`
	BlockCapacity int  `mapstructure:"block_capacity" yaml:"block_capacity"`
	Zeroing       bool `mapstructure:"zeroing" yaml:"zeroing"`
}

// EngineConfig controls the decode loop.
type EngineConfig struct {
	Workers int `mapstructure:"workers" yaml:"workers"` // 0 = GOMAXPROCS
	// LinkType overrides the capture's link type; -1 keeps it.
	LinkType int `mapstructure:"link_type" yaml:"link_type"`
}

// DecoderConfig selects optional protocol decoders.
type DecoderConfig struct {
	Tunnel TunnelConfig `mapstructure:"tunnel" yaml:"tunnel"`
}

// TunnelConfig controls tunnel decapsulation. A disabled tunnel ends the
// chain in an opaque payload.
type TunnelConfig struct {
	VXLAN  bool `mapstructure:"vxlan" yaml:"vxlan"`
	GRE    bool `mapstructure:"gre" yaml:"gre"`
	Geneve bool `mapstructure:"geneve" yaml:"geneve"`
	IPIP   bool `mapstructure:"ipip" yaml:"ipip"`
}

// MetricsConfig contains Prometheus exporter settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// HandlerConfig adds one built-in handler to the pipeline. Type defaults
// to Name.
type HandlerConfig struct {
	Name    string                 `mapstructure:"name" yaml:"name"`
	Type    string                 `mapstructure:"type" yaml:"type,omitempty"`
	Options map[string]interface{} `mapstructure:"options" yaml:"options,omitempty"`
}

// configRoot is the top-level wrapper matching the YAML structure `netcodec: ...`.
type configRoot struct {
	Netcodec Config `mapstructure:"netcodec"`
}

// Load reads the YAML file at path; an empty path yields the defaults.
// Environment variables override file values, e.g. NETCODEC_LOG_LEVEL for
// netcodec.log.level.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Netcodec

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("netcodec.log.level", log.DefaultLevel)
	v.SetDefault("netcodec.log.pattern", log.DefaultPattern)
	v.SetDefault("netcodec.log.time", log.DefaultTimeLayout)
	v.SetDefault("netcodec.log.report_caller", false)
	v.SetDefault("netcodec.log.file.filename", "")
	v.SetDefault("netcodec.log.file.max_size", 100)
	v.SetDefault("netcodec.log.file.max_backups", 5)
	v.SetDefault("netcodec.log.file.max_age", 30)
	v.SetDefault("netcodec.log.file.compress", true)

	v.SetDefault("netcodec.pool.initial_size", 256)
	v.SetDefault("netcodec.pool.max_size", 4096)
	v.SetDefault("netcodec.pool.block_capacity", 65536)
	v.SetDefault("netcodec.pool.zeroing", false)

	v.SetDefault("netcodec.engine.workers", 0)
	v.SetDefault("netcodec.engine.link_type", -1)

	v.SetDefault("netcodec.decoder.tunnel.vxlan", true)
	v.SetDefault("netcodec.decoder.tunnel.gre", true)
	v.SetDefault("netcodec.decoder.tunnel.geneve", true)
	v.SetDefault("netcodec.decoder.tunnel.ipip", true)

	v.SetDefault("netcodec.metrics.enabled", false)
	v.SetDefault("netcodec.metrics.listen", ":9091")
	v.SetDefault("netcodec.metrics.path", "/metrics")

	v.SetDefault("netcodec.handlers", []map[string]interface{}{
		{"name": "stats"},
	})
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *Config) ValidateAndApplyDefaults() error {
	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("%w: log level %q", core.ErrConfigInvalid, cfg.Log.Level)
	}

	p := &cfg.Pool
	if p.MaxSize <= 0 || p.InitialSize < 0 || p.InitialSize > p.MaxSize {
		return fmt.Errorf("%w: pool sizes initial=%d max=%d", core.ErrConfigInvalid, p.InitialSize, p.MaxSize)
	}
	if p.BlockCapacity <= 0 {
		return fmt.Errorf("%w: pool.block_capacity must be positive", core.ErrConfigInvalid)
	}

	if cfg.Engine.Workers < 0 {
		return fmt.Errorf("%w: engine.workers must not be negative", core.ErrConfigInvalid)
	}
	if cfg.Engine.Workers == 0 {
		cfg.Engine.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Engine.LinkType < -1 {
		return fmt.Errorf("%w: engine.link_type %d", core.ErrConfigInvalid, cfg.Engine.LinkType)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Listen == "" {
			return fmt.Errorf("%w: metrics.listen is required when metrics are enabled", core.ErrConfigInvalid)
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			cfg.Metrics.Path = "/" + cfg.Metrics.Path
		}
	}

	seen := make(map[string]bool, len(cfg.Handlers))
	for i := range cfg.Handlers {
		h := &cfg.Handlers[i]
		if h.Name == "" {
			return fmt.Errorf("%w: handlers[%d] has no name", core.ErrConfigInvalid, i)
		}
		if seen[h.Name] {
			return fmt.Errorf("%w: duplicate handler name %q", core.ErrConfigInvalid, h.Name)
		}
		seen[h.Name] = true
		if h.Type == "" {
			h.Type = h.Name
		}
	}
	return nil
}
