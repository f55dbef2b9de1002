package comm

import (
	"errors"
	"fmt"
)

var (
	// ErrPayloadTooLong indicates a length byte or payload exceeds MaxPayload.
	ErrPayloadTooLong = errors.New("payload too long")
	// ErrNoReply indicates no reply received from peer before timeout.
	ErrNoReply = errors.New("no reply")
	// ErrBadReply indicates the reply failed checksum verification.
	ErrBadReply = errors.New("bad reply checksum")
)

// CommandError wraps error codes from an error response.
type CommandError struct {
	Code byte
}

// Error implements error.
func (e *CommandError) Error() string {
	switch e.Code {
	case BadChecksum:
		return "command error: bad checksum"
	case UnknownAddress:
		return "command error: unknown address"
	case InvalidBatchSize:
		return "command error: invalid batch size"
	}
	return fmt.Sprintf("command error %d", e.Code)
}
