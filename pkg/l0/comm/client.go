package comm

import (
	"context"
	"io"
	"sync"
	"time"
)

// DefaultTimeout is the default time to wait for a reply.
const DefaultTimeout = time.Second

// Client provides host side request/reply over a serial stream.
// The stream is expected to return from Read periodically (e.g. serial
// port read timeout) so the reply deadline can be enforced.
type Client struct {
	ReadWriter io.ReadWriter
	Timeout    time.Duration

	lock   sync.Mutex
	parser Parser
	reply  Packet
}

// NewClient creates client and wraps the stream.
func NewClient(rw io.ReadWriter) *Client {
	return &Client{ReadWriter: rw, Timeout: DefaultTimeout}
}

// Do sends a request and waits for the reply.
// Error responses are returned as *CommandError.
func (c *Client) Do(ctx context.Context, req *Packet) (*Packet, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if _, err := req.WriteTo(c.ReadWriter); err != nil {
		return nil, err
	}

	timeout := c.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	deadline := time.Now().Add(timeout)
	c.parser.Reset()
	buf := make([]byte, 1)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if time.Now().After(deadline) {
			return nil, ErrNoReply
		}
		n, err := c.ReadWriter.Read(buf)
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			continue
		}
		pr := c.parser.Parse(buf[0], &c.reply)
		if pr.Err != nil {
			return nil, pr.Err
		}
		if !pr.Complete {
			continue
		}
		if !c.reply.ChecksumMatches() {
			return nil, ErrBadReply
		}
		if c.reply.IsError() {
			return nil, &CommandError{Code: c.reply.Address}
		}
		reply := c.reply
		return &reply, nil
	}
}
