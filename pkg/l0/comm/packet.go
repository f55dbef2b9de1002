package comm

import (
	"encoding/binary"
	"io"
)

// MaxPayload is the maximum payload length of a packet.
const MaxPayload = 64

// Error codes carried in the address field of error responses.
const (
	BadChecksum      byte = 253
	UnknownAddress   byte = 254
	InvalidBatchSize byte = 255
)

// HeaderSize is the size of flags, address and length.
const HeaderSize = 3

// Packet contains the information of a parsed packet.
// The payload is stored inline so a single Packet can be reused for parsing.
type Packet struct {
	Flags    byte
	Address  byte
	Len      byte
	Data     [MaxPayload]byte
	Checksum uint16
}

// NewPacket creates a sealed packet.
func NewPacket(flags, address byte, payload []byte) (*Packet, error) {
	p := &Packet{Flags: flags, Address: address}
	if err := p.SetPayload(payload); err != nil {
		return nil, err
	}
	p.Seal()
	return p, nil
}

// Reset clears the packet for reuse.
func (p *Packet) Reset() {
	*p = Packet{}
}

// Payload returns the valid part of Data.
func (p *Packet) Payload() []byte {
	n := int(p.Len)
	if n > MaxPayload {
		n = MaxPayload
	}
	return p.Data[:n]
}

// SetPayload copies b into Data and updates Len.
func (p *Packet) SetPayload(b []byte) error {
	if len(b) > MaxPayload {
		return ErrPayloadTooLong
	}
	p.Len = byte(copy(p.Data[:], b))
	return nil
}

// ComputeChecksum calculates the checksum over header and payload.
func (p *Packet) ComputeChecksum() uint16 {
	sum := uint16(p.Flags) + uint16(p.Address) + uint16(p.Len)
	for _, b := range p.Payload() {
		sum += uint16(b)
	}
	return sum
}

// ChecksumMatches verifies the received checksum.
func (p *Packet) ChecksumMatches() bool {
	return p.Checksum == p.ComputeChecksum()
}

// Seal sets Checksum from the current content.
func (p *Packet) Seal() *Packet {
	p.Checksum = p.ComputeChecksum()
	return p
}

// Record returns header and payload without checksum.
func (p *Packet) Record() []byte {
	b := make([]byte, HeaderSize+int(p.Len))
	b[0], b[1], b[2] = p.Flags, p.Address, p.Len
	copy(b[HeaderSize:], p.Payload())
	return b
}

// Bytes returns encoded bytes for sending.
func (p *Packet) Bytes() []byte {
	b := make([]byte, HeaderSize+int(p.Len)+2)
	b[0], b[1], b[2] = p.Flags, p.Address, p.Len
	copy(b[HeaderSize:], p.Payload())
	binary.BigEndian.PutUint16(b[len(b)-2:], p.Checksum)
	return b
}

// WriteTo writes encoded bytes.
func (p *Packet) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(p.Bytes())
	return int64(n), err
}

// UnmarshalRecord fills the packet from a record produced by Record.
// Checksum is recomputed.
func (p *Packet) UnmarshalRecord(b []byte) error {
	if len(b) < HeaderSize {
		return io.ErrUnexpectedEOF
	}
	p.Flags, p.Address = b[0], b[1]
	if int(b[2]) > MaxPayload {
		return ErrPayloadTooLong
	}
	if len(b) < HeaderSize+int(b[2]) {
		return io.ErrUnexpectedEOF
	}
	p.SetPayload(b[HeaderSize : HeaderSize+int(b[2])])
	p.Seal()
	return nil
}

// IsError checks if the packet is an error response.
func (p *Packet) IsError() bool {
	return p.Flags == 0 && p.Len == 0 && p.Address >= BadChecksum
}

// ErrorResponse encodes the error response carrying code.
func ErrorResponse(code byte) []byte {
	pkt := Packet{Address: code}
	return pkt.Seal().Bytes()
}
