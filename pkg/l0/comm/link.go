package comm

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/golang/glog"
)

// DefaultBacklog is the number of received bytes buffered by a Link.
const DefaultBacklog = 1024

// Link pumps bytes from a serial stream and sends encoded packets.
// Run reads in the background while the owner polls received bytes
// without blocking.
type Link struct {
	ReadWriter io.ReadWriter
	// OnReceive is called after a byte is queued, e.g. to wake a loop.
	OnReceive func()

	recvCh chan byte
	lock   sync.Mutex
}

// NewLink creates a Link.
func NewLink(rw io.ReadWriter) *Link {
	return &Link{
		ReadWriter: rw,
		recvCh:     make(chan byte, DefaultBacklog),
	}
}

// Name implements framework.Named.
func (l *Link) Name() string {
	return "link"
}

// Run reads the stream until error or ctx is done.
// Read timeouts and empty reads are ignored.
func (l *Link) Run(ctx context.Context) error {
	buf := make([]byte, 1)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := l.ReadWriter.Read(buf)
		if err != nil {
			if os.IsTimeout(err) {
				glog.V(5).Info("link: read timeout")
				continue
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			glog.Errorf("link: read error: %v", err)
			return err
		}
		if n == 0 {
			continue
		}
		select {
		case l.recvCh <- buf[0]:
		case <-ctx.Done():
			return ctx.Err()
		}
		if fn := l.OnReceive; fn != nil {
			fn()
		}
	}
}

// Poll retrieves a received byte if one is available.
func (l *Link) Poll() (byte, bool) {
	select {
	case b := <-l.recvCh:
		return b, true
	default:
		return 0, false
	}
}

// Send writes p as a whole.
func (l *Link) Send(p []byte) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	_, err := l.ReadWriter.Write(p)
	return err
}
