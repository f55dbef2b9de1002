package comm

// Parser parses bytes received into a caller-owned Packet.
// The zero value is ready to use.
type Parser struct {
	state   ParseState
	recvLen byte
}

// ParseState indicates which field the parser expects next.
type ParseState int

const (
	// StateFlags waits for the first byte of a packet.
	StateFlags ParseState = iota
	// StateAddress waits for the address byte.
	StateAddress
	// StateLength waits for the payload length.
	StateLength
	// StatePayload waits for payload bytes.
	StatePayload
	// StateChecksumHi waits for the high byte of checksum.
	StateChecksumHi
	// StateChecksumLo waits for the low byte of checksum.
	StateChecksumLo
)

// IsIdle indicates no packet is partially received.
func (s ParseState) IsIdle() bool {
	return s == StateFlags
}

// ParseResult indicates the result after one parsing step.
type ParseResult struct {
	State ParseState
	// Complete is set when the last byte of a packet is consumed.
	Complete bool
	// Err is set on framing errors. The parser is already reset.
	Err error
}

// State gets the current parse state.
func (p *Parser) State() ParseState {
	return p.state
}

// Reset restarts the parser so the next byte starts a new packet.
func (p *Parser) Reset() {
	p.state, p.recvLen = StateFlags, 0
}

// Parse consumes one byte and stores fields into pkt.
func (p *Parser) Parse(b byte, pkt *Packet) (pr ParseResult) {
	switch p.state {
	case StateFlags:
		pkt.Reset()
		pkt.Flags = b
		p.state = StateAddress
	case StateAddress:
		pkt.Address = b
		p.state = StateLength
	case StateLength:
		if int(b) > MaxPayload {
			p.Reset()
			pr.Err = ErrPayloadTooLong
			break
		}
		pkt.Len, p.recvLen = b, 0
		if b == 0 {
			p.state = StateChecksumHi
		} else {
			p.state = StatePayload
		}
	case StatePayload:
		pkt.Data[p.recvLen] = b
		p.recvLen++
		if p.recvLen >= pkt.Len {
			p.state = StateChecksumHi
		}
	case StateChecksumHi:
		pkt.Checksum = uint16(b) << 8
		p.state = StateChecksumLo
	case StateChecksumLo:
		pkt.Checksum |= uint16(b)
		p.Reset()
		pr.Complete = true
	}
	pr.State = p.state
	return
}
