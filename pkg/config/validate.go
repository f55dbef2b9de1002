package config

import (
	"fmt"
	"math"

	"github.com/robotalks/nvreg/pkg/nvstore"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg.Serial.Baud < 0 {
		return fmt.Errorf("serial: baud must not be negative")
	}
	if cfg.Serial.ReadTimeoutMs < 0 {
		return fmt.Errorf("serial: read_timeout_ms must not be negative")
	}

	// ------------------------------------------------------------
	// FLASH BANK GEOMETRY
	// ------------------------------------------------------------

	factory, config := cfg.Flash.FactoryBase, cfg.Flash.ConfigBase
	if factory == 0 {
		factory = nvstore.DefaultFactoryBase
	}
	if config == 0 {
		config = nvstore.DefaultConfigBase
	}
	if factory%4 != 0 || config%4 != 0 {
		return fmt.Errorf("flash: bank bases must be word aligned (factory=0x%08x config=0x%08x)",
			factory, config)
	}
	if factory > math.MaxUint32-nvstore.BankSize || config > math.MaxUint32-nvstore.BankSize {
		return fmt.Errorf("flash: bank exceeds address space (factory=0x%08x config=0x%08x)",
			factory, config)
	}
	// overlap check (half-open)
	if factory < config+nvstore.BankSize && config < factory+nvstore.BankSize {
		return fmt.Errorf("flash: factory bank 0x%08x and config bank 0x%08x overlap",
			factory, config)
	}
	if cfg.Flash.FactoryImage != "" && cfg.Flash.FactoryImage == cfg.Flash.ConfigImage {
		return fmt.Errorf("flash: factory_image and config_image must differ")
	}
	if cfg.Flash.TimeoutMs < 0 || cfg.Flash.BusyPolls < 0 {
		return fmt.Errorf("flash: timeout_ms and busy_polls must not be negative")
	}

	if cfg.Loop.IntervalMs < 0 || cfg.Loop.BlinkMs < 0 {
		return fmt.Errorf("loop: interval_ms and blink_ms must not be negative")
	}
	return nil
}
