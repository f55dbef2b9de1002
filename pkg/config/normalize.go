package config

import (
	"path/filepath"

	"github.com/robotalks/nvreg/pkg/nvstore"
)

// Defaults applied by Normalize.
const (
	DefaultBaud          = 115200
	DefaultReadTimeoutMs = 100
	DefaultFactoryImage  = "factory.bin"
	DefaultConfigImage   = "config.bin"
	DefaultIntervalMs    = 10
	DefaultBlinkMs       = 1000
)

// Normalize fills defaults and resolves image paths.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = DefaultBaud
	}
	if cfg.Serial.ReadTimeoutMs == 0 {
		cfg.Serial.ReadTimeoutMs = DefaultReadTimeoutMs
	}

	if cfg.Flash.FactoryBase == 0 {
		cfg.Flash.FactoryBase = nvstore.DefaultFactoryBase
	}
	if cfg.Flash.ConfigBase == 0 {
		cfg.Flash.ConfigBase = nvstore.DefaultConfigBase
	}
	if cfg.Flash.TimeoutMs == 0 {
		cfg.Flash.TimeoutMs = int(nvstore.DefaultFlashTimeout.Milliseconds())
	}
	if cfg.Flash.FactoryImage == "" {
		cfg.Flash.FactoryImage = DefaultFactoryImage
	}
	if cfg.Flash.ConfigImage == "" {
		cfg.Flash.ConfigImage = DefaultConfigImage
	}
	if cfg.Flash.Dir != "" {
		if !filepath.IsAbs(cfg.Flash.FactoryImage) {
			cfg.Flash.FactoryImage = filepath.Join(cfg.Flash.Dir, cfg.Flash.FactoryImage)
		}
		if !filepath.IsAbs(cfg.Flash.ConfigImage) {
			cfg.Flash.ConfigImage = filepath.Join(cfg.Flash.Dir, cfg.Flash.ConfigImage)
		}
	}

	if cfg.Loop.IntervalMs == 0 {
		cfg.Loop.IntervalMs = DefaultIntervalMs
	}
	if cfg.Loop.BlinkMs == 0 {
		cfg.Loop.BlinkMs = DefaultBlinkMs
	}
}
