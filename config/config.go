package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Scan      *ScanCfg     `yaml:"scan"`
	Workers   *WorkersCfg  `yaml:"workers"`
	Deferred  *DeferredCfg `yaml:"deferred"`
	Telemetry TelemetryCfg `yaml:"telemetry"`
}

// AdjustConfig fills derived and defaulted fields after unmarshalling.
func (cfg *Config) AdjustConfig() {
	if cfg.Scan == nil {
		cfg.Scan = &ScanCfg{}
	}
	cfg.Scan.adjust()

	if cfg.Workers == nil {
		cfg.Workers = &WorkersCfg{}
	}
	cfg.Workers.adjust()

	if cfg.Deferred.Enabled() {
		cfg.Deferred.adjust()
	}
}

func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config yaml file %s: %w", path, err)
	}

	var cfg *Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml from %s: %w", path, err)
	}
	cfg.AdjustConfig()

	return cfg, nil
}
