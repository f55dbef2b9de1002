package router

import "errors"

var (
	// ErrQueueFull indicates a record does not fit into the free space.
	ErrQueueFull = errors.New("queue full")
	// ErrRecordTooLarge indicates a record exceeds MaxRecord.
	ErrRecordTooLarge = errors.New("record too large")
)

// MaxRecord is the largest record a Ring accepts.
const MaxRecord = 255

// Ring is a bounded FIFO of byte records stored in a fixed buffer.
// Each record occupies one length byte plus its content.
type Ring struct {
	buf   []byte
	head  int
	used  int
	count int
}

// NewRing creates a Ring with capacity bytes of storage.
func NewRing(capacity int) *Ring {
	return &Ring{buf: make([]byte, capacity)}
}

// Cap returns the storage size in bytes.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Used returns the bytes occupied, including length bytes.
func (r *Ring) Used() int {
	return r.used
}

// Free returns the bytes available.
func (r *Ring) Free() int {
	return len(r.buf) - r.used
}

// Len returns the number of queued records.
func (r *Ring) Len() int {
	return r.count
}

// Push appends a copy of rec.
func (r *Ring) Push(rec []byte) error {
	if len(rec) > MaxRecord {
		return ErrRecordTooLarge
	}
	if len(rec)+1 > r.Free() {
		return ErrQueueFull
	}
	tail := (r.head + r.used) % len(r.buf)
	r.buf[tail] = byte(len(rec))
	tail = (tail + 1) % len(r.buf)
	n := copy(r.buf[tail:], rec)
	copy(r.buf, rec[n:])
	r.used += len(rec) + 1
	r.count++
	return nil
}

// Pop removes and returns the oldest record.
func (r *Ring) Pop() ([]byte, bool) {
	if r.count == 0 {
		return nil, false
	}
	size := int(r.buf[r.head])
	start := (r.head + 1) % len(r.buf)
	rec := make([]byte, size)
	n := copy(rec, r.buf[start:])
	copy(rec[n:], r.buf)
	r.head = (start + size) % len(r.buf)
	r.used -= size + 1
	r.count--
	if r.count == 0 {
		r.head = 0
	}
	return rec, true
}
