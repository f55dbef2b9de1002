// Package hal defines the peripheral interfaces used by the device.
package hal

import "io"

// Flash controller register bits and constants.
const (
	// Unlock keys written to KEYR in sequence.
	FlashKey1 uint32 = 0x45670123
	FlashKey2 uint32 = 0xCDEF89AB

	// CR bits.
	FlashCrPG   uint32 = 1 << 0 // program
	FlashCrPER  uint32 = 1 << 1 // page erase
	FlashCrSTRT uint32 = 1 << 6 // start erase
	FlashCrLOCK uint32 = 1 << 7 // lock

	// SR bits.
	FlashSrBSY   uint32 = 1 << 0 // busy
	FlashSrPGERR uint32 = 1 << 2 // programming error
	FlashSrEOP   uint32 = 1 << 5 // end of operation

	// FlashErased is what an erased word reads as.
	FlashErased uint32 = 0xFFFFFFFF
)

// Flash exposes raw access to the flash controller registers and the
// memory-mapped flash array.
type Flash interface {
	WriteKey(key uint32)
	ReadControl() uint32
	WriteControl(cr uint32)
	ReadStatus() uint32
	WriteAddress(addr uint32)
	ReadWord(addr uint32) uint32
	WriteHalfWord(addr uint32, v uint16)
}

// Pin is a digital output.
type Pin interface {
	Set(high bool)
	Get() bool
}

// Peripherals bundles exclusive handles to the hardware.
// It is created once at startup and handed over to its owners.
type Peripherals struct {
	Flash  Flash
	LED    Pin
	Serial io.ReadWriter
}
