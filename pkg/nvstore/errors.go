package nvstore

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange indicates a register address beyond the register file.
	ErrOutOfRange = errors.New("register address out of range")
	// ErrFlashTimeout indicates the flash controller stayed busy too long.
	ErrFlashTimeout = errors.New("flash controller timeout")
)

// AddressError reports an invalid register access.
type AddressError struct {
	Address int
}

// Error implements error.
func (e *AddressError) Error() string {
	return fmt.Sprintf("register %d: %v", e.Address, ErrOutOfRange)
}

// Is makes errors.Is match ErrOutOfRange.
func (e *AddressError) Is(target error) bool {
	return target == ErrOutOfRange
}

// VerifyError reports a word whose flash readback differs from memory.
type VerifyError struct {
	Bank    Bank
	Address uint32
	Want    uint32
	Got     uint32
}

// Error implements error.
func (e *VerifyError) Error() string {
	return fmt.Sprintf("%s bank verify failed at 0x%08x: want 0x%08x, got 0x%08x",
		e.Bank, e.Address, e.Want, e.Got)
}

// IsFatal indicates err leaves flash and memory diverged or the flash
// controller unusable. The device must not continue after it.
func IsFatal(err error) bool {
	var verr *VerifyError
	return errors.As(err, &verr) || errors.Is(err, ErrFlashTimeout)
}
