// Package config loads the declarative node/module/accessible tree for
// "secopd serve" and "secopd describe" from a YAML file via viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// AccessibleConfig declares one parameter or command on a module.
type AccessibleConfig struct {
	Name        string         `mapstructure:"name" yaml:"name"`
	Kind        string         `mapstructure:"kind" yaml:"kind"` // "parameter" or "command"
	Description string         `mapstructure:"description" yaml:"description"`
	Writable    bool           `mapstructure:"writable" yaml:"writable"`
	Datainfo    map[string]any `mapstructure:"datainfo" yaml:"datainfo"`
	Initial     any            `mapstructure:"initial" yaml:"initial"`
	Unit        string         `mapstructure:"unit" yaml:"unit"`
}

// ModuleConfig declares one module and its accessibles.
type ModuleConfig struct {
	Name        string             `mapstructure:"name" yaml:"name"`
	Description string             `mapstructure:"description" yaml:"description"`
	PollMs      int                `mapstructure:"poll_ms" yaml:"poll_ms"`
	Accessibles []AccessibleConfig `mapstructure:"accessibles" yaml:"accessibles"`
}

// NodeConfig declares one node, its TCP port, and its module tree.
type NodeConfig struct {
	ID          string         `mapstructure:"id" yaml:"id"`
	Description string         `mapstructure:"description" yaml:"description"`
	Port        int            `mapstructure:"port" yaml:"port"`
	Modules     []ModuleConfig `mapstructure:"modules" yaml:"modules"`
}

// Config is the top-level document read from the YAML file.
type Config struct {
	Nodes []NodeConfig `mapstructure:"nodes" yaml:"nodes"`
	Diag  DiagConfig   `mapstructure:"diag" yaml:"diag"`
	Log   LogConfig    `mapstructure:"log" yaml:"log"`
}

// DiagConfig configures the optional diagnostics HTTP server.
type DiagConfig struct {
	Addr        string `mapstructure:"addr" yaml:"addr"`
	ActivityCap int    `mapstructure:"activity_cap" yaml:"activity_cap"`
}

// LogConfig configures the process-wide logger.
type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	FilePath   string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
}

// Load reads and decodes path, applying the same defaults a node/module
// would get if the corresponding key were omitted.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("diag.addr", "")
	v.SetDefault("diag.activity_cap", 50)
	v.SetDefault("log.level", "info")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("SECOPD")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	for i := range cfg.Nodes {
		for j := range cfg.Nodes[i].Modules {
			if cfg.Nodes[i].Modules[j].PollMs <= 0 {
				cfg.Nodes[i].Modules[j].PollMs = 1000
			}
		}
	}
	return &cfg, nil
}
