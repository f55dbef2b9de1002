// Package uart opens serial ports for the L0 link.
package uart

import (
	"time"

	"github.com/goburrow/serial"
)

// Config holds serial port configuration.
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3").
	Device string
	Baud   int
	// ReadTimeout bounds each Read so callers can observe cancellation.
	ReadTimeout time.Duration
}

// DefaultConfig returns 115200 8N1 with a 100ms read timeout.
func DefaultConfig(device string) Config {
	return Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100 * time.Millisecond,
	}
}

// Port wraps a serial port and reports read timeouts as empty reads.
type Port struct {
	serial.Port
}

// Open opens the serial port.
func Open(c Config) (*Port, error) {
	p, err := serial.Open(&serial.Config{
		Address:  c.Device,
		BaudRate: c.Baud,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  c.ReadTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &Port{Port: p}, nil
}

// Read implements io.Reader.
func (p *Port) Read(b []byte) (int, error) {
	n, err := p.Port.Read(b)
	if err == serial.ErrTimeout {
		return n, nil
	}
	return n, err
}
