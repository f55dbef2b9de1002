// Package config loads the device configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root of the configuration file.
type Config struct {
	Serial SerialConfig `yaml:"serial"`
	Flash  FlashConfig  `yaml:"flash"`
	Loop   LoopConfig   `yaml:"loop"`
}

// ---- SERIAL ----

// SerialConfig selects the UART.
type SerialConfig struct {
	Port          string `yaml:"port"`
	Baud          int    `yaml:"baud"`
	ReadTimeoutMs int    `yaml:"read_timeout_ms"`
}

// ---- FLASH ----

// FlashConfig describes the simulated flash banks.
type FlashConfig struct {
	// Dir holds bank images unless image paths are absolute.
	Dir          string `yaml:"dir"`
	FactoryImage string `yaml:"factory_image"`
	ConfigImage  string `yaml:"config_image"`
	FactoryBase  uint32 `yaml:"factory_base"`
	ConfigBase   uint32 `yaml:"config_base"`
	TimeoutMs    int    `yaml:"timeout_ms"`
	BusyPolls    int    `yaml:"busy_polls"`
}

// ---- LOOP ----

// LoopConfig paces the superloop.
type LoopConfig struct {
	IntervalMs int `yaml:"interval_ms"`
	BlinkMs    int `yaml:"blink_ms"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	Normalize(cfg)
	return cfg
}

// Load reads and decodes a configuration file.
// Missing fields keep their zero values; call Validate then Normalize.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes configuration from YAML.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// ReadTimeout returns the serial read timeout.
func (c *SerialConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMs) * time.Millisecond
}

// Timeout returns the flash busy wait bound.
func (c *FlashConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Interval returns the loop period.
func (c *LoopConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// Blink returns the LED toggle period.
func (c *LoopConfig) Blink() time.Duration {
	return time.Duration(c.BlinkMs) * time.Millisecond
}
