// Package router validates packets assembled from serial bytes and stages
// them for the device or answers with protocol error responses.
package router

import (
	"github.com/golang/glog"

	"github.com/robotalks/nvreg/pkg/l0/comm"
	"github.com/robotalks/nvreg/pkg/regmap"
)

// Staging queue sizes in bytes.
const (
	RxQueueSize = 1024
	TxQueueSize = 512
)

// Stats counts router outcomes.
type Stats struct {
	Packets        int
	BadChecksum    int
	UnknownAddress int
	InvalidBatch   int
	Dropped        int
}

// Router consumes received bytes.
// Staged rx records are flags, address, length and payload.
// Staged tx records are complete encoded packets.
type Router struct {
	pkt    comm.Packet
	parser comm.Parser
	rx     *Ring
	tx     *Ring
	stats  Stats
}

// New creates a Router with default queue sizes.
func New() *Router {
	return &Router{
		rx: NewRing(RxQueueSize),
		tx: NewRing(TxQueueSize),
	}
}

// ReceiveByte feeds one byte to the parser and handles a completed packet.
func (r *Router) ReceiveByte(b byte) comm.ParseResult {
	pr := r.parser.Parse(b, &r.pkt)
	if pr.Err != nil {
		glog.V(1).Infof("framing error: %v", pr.Err)
		r.stats.InvalidBatch++
		r.RaiseError(comm.InvalidBatchSize)
		r.parser.Reset()
		pr.State = r.parser.State()
		return pr
	}
	if !pr.Complete {
		return pr
	}

	r.stats.Packets++
	switch {
	case !r.pkt.ChecksumMatches():
		glog.V(1).Infof("bad checksum: addr=%d got=0x%04x want=0x%04x",
			r.pkt.Address, r.pkt.Checksum, r.pkt.ComputeChecksum())
		r.stats.BadChecksum++
		r.RaiseError(comm.BadChecksum)
	case regmap.Classify(r.pkt.Address) == regmap.Unknown:
		glog.V(1).Infof("unknown address %d", r.pkt.Address)
		r.stats.UnknownAddress++
		r.RaiseError(comm.UnknownAddress)
	default:
		if err := r.rx.Push(r.pkt.Record()); err != nil {
			r.stats.Dropped++
			glog.Warningf("rx packet addr=%d dropped: %v", r.pkt.Address, err)
		}
	}
	r.parser.Reset()
	pr.State = r.parser.State()
	return pr
}

// RaiseError stages an error response carrying code.
func (r *Router) RaiseError(code byte) {
	r.Reply(comm.ErrorResponse(code))
}

// Reply stages an encoded packet for transmission.
func (r *Router) Reply(b []byte) error {
	err := r.tx.Push(b)
	if err != nil {
		r.stats.Dropped++
		glog.Warningf("tx packet dropped: %v", err)
	}
	return err
}

// PopRx takes the oldest staged packet record.
func (r *Router) PopRx() ([]byte, bool) {
	return r.rx.Pop()
}

// PopTx takes the oldest staged response.
func (r *Router) PopTx() ([]byte, bool) {
	return r.tx.Pop()
}

// Pending returns the number of staged rx and tx records.
func (r *Router) Pending() (rx, tx int) {
	return r.rx.Len(), r.tx.Len()
}

// Stats returns counters.
func (r *Router) Stats() Stats {
	return r.stats
}
