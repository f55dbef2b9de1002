// Package comm provides L0 protocol support.
package comm

// L0 protocol is communicated between the register device and a host
// over a peer-to-peer channel (e.g. serial port). It is single-packet
// request/response without retransmission.
//
// Every packet is framed as:
//
//   flags | address | length | payload[length] | checksum (2 bytes, big-endian)
//
// The checksum is the 16-bit wrapping sum of all preceding bytes.
// There is no start-of-frame marker: the parser is restarted after each
// complete packet or framing error.
//
// Error responses carry flags 0, length 0 and one of the error codes
// (BadChecksum, UnknownAddress, InvalidBatchSize) in the address field.
