package sci

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// Pool manages a fixed set of transfer slots. The index of a slot is used as
// the sequence id of its messages.
type Pool struct {
	desc  Desc
	slots []Transfer
	table []uint64
	gate  *semaphore.Weighted
	log   *logrus.Entry
	mutex sync.Mutex
}

// NewPool creates a new pool for the specified description.
func NewPool(desc Desc) (*Pool, error) {
	return newPool(desc, logrus.NewEntry(logrus.StandardLogger()))
}

func newPool(desc Desc, log *logrus.Entry) (*Pool, error) {
	// check description
	err := desc.Validate()
	if err != nil {
		return nil, err
	}

	// prepare pool
	p := &Pool{
		desc:  desc,
		slots: make([]Transfer, desc.MaxMsgs),
		table: make([]uint64, (desc.MaxMsgs+63)/64),
		gate:  semaphore.NewWeighted(int64(desc.MaxMsgs)),
		log:   log,
	}

	// preallocate buffers
	for i := range p.slots {
		p.slots[i] = Transfer{
			seq:  uint8(i),
			buf:  make([]byte, desc.MaxMsgSize),
			done: make(chan struct{}, 1),
		}
	}

	// mark bits beyond the capacity as used
	if rem := desc.MaxMsgs % 64; rem != 0 {
		p.table[len(p.table)-1] = ^uint64(0) << rem
	}

	return p, nil
}

// Capacity returns the number of slots.
func (p *Pool) Capacity() int {
	return len(p.slots)
}

// InUse returns the number of allocated slots.
func (p *Pool) InUse() int {
	// acquire mutex
	p.mutex.Lock()
	defer p.mutex.Unlock()

	// count bits
	n := 0
	for _, word := range p.table {
		n += bits.OnesCount64(word)
	}

	// subtract padding
	if rem := len(p.slots) % 64; rem != 0 {
		n -= 64 - rem
	}

	return n
}

// Acquire allocates a transfer for a message of the specified type. It blocks
// up to five times the response timeout while all slots are in use.
func (p *Pool) Acquire(typ uint16, flags uint32, txSize, rxSize int) (*Transfer, error) {
	return p.AcquireContext(context.Background(), typ, flags, txSize, rxSize)
}

// AcquireContext is like Acquire but also returns early when the context is
// cancelled.
func (p *Pool) AcquireContext(ctx context.Context, typ uint16, flags uint32, txSize, rxSize int) (*Transfer, error) {
	// check sizes
	if txSize < HeaderSize || txSize > p.desc.MaxMsgSize {
		return nil, fmt.Errorf("%w: tx size %d", ErrOutOfRange, txSize)
	} else if rxSize < HeaderSize || rxSize > p.desc.MaxMsgSize {
		return nil, fmt.Errorf("%w: rx size %d", ErrOutOfRange, rxSize)
	}

	// several callers may be queued, wait for more than a single response
	wait, cancel := context.WithTimeout(ctx, 5*p.desc.Timeout)
	defer cancel()

	// acquire permit
	err := p.gate.Acquire(wait, 1)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		} else if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrNoSlot
		}
		return nil, err
	}

	// acquire mutex
	p.mutex.Lock()
	defer p.mutex.Unlock()

	// find lowest free slot
	index := -1
	for i, word := range p.table {
		if word != ^uint64(0) {
			index = i*64 + bits.TrailingZeros64(^word)
			break
		}
	}
	if index < 0 {
		p.gate.Release(1)
		return nil, fmt.Errorf("pool table exhausted with free permit")
	}

	// mark slot
	p.table[index/64] |= 1 << (index % 64)

	// prepare transfer
	xfer := &p.slots[index]
	xfer.reset(Header{
		Type:  typ,
		Host:  p.desc.HostID,
		Seq:   uint8(index),
		Flags: flags,
	}, txSize, rxSize)

	return xfer, nil
}

// Release returns the transfer to the pool. It reports whether a slot was
// freed, releasing an unallocated transfer only logs a warning.
func (p *Pool) Release(xfer *Transfer) bool {
	// check transfer
	if xfer == nil {
		p.log.Warn("release of missing transfer")
		return false
	}

	// acquire mutex
	p.mutex.Lock()

	// check slot
	index := int(xfer.seq)
	if index >= len(p.slots) || xfer != &p.slots[index] || !p.used(index) {
		p.mutex.Unlock()
		p.log.WithField("seq", xfer.seq).Warn("release of unallocated transfer")
		return false
	}

	// clear slot
	p.table[index/64] &^= 1 << (index % 64)
	xfer.pending = false

	// release mutex
	p.mutex.Unlock()

	// let the next caller through
	p.gate.Release(1)

	return true
}

func (p *Pool) used(index int) bool {
	return p.table[index/64]&(1<<(index%64)) != 0
}

func (p *Pool) arm(xfer *Transfer) {
	// acquire mutex
	p.mutex.Lock()
	defer p.mutex.Unlock()

	// set flag
	xfer.pending = true
}

func (p *Pool) disarm(xfer *Transfer) bool {
	// acquire mutex
	p.mutex.Lock()
	defer p.mutex.Unlock()

	// clear flag
	pending := xfer.pending
	xfer.pending = false

	return pending
}

func (p *Pool) deliver(hdr Header, msg []byte) string {
	// acquire mutex
	p.mutex.Lock()
	defer p.mutex.Unlock()

	// check if the message is expected at all
	index := int(hdr.Seq)
	if index >= len(p.slots) || !p.used(index) || !p.slots[index].pending {
		return DropUnexpected
	}

	// get transfer
	xfer := &p.slots[index]

	// check length
	if len(msg) > p.desc.MaxMsgSize {
		return DropOversized
	} else if len(msg) < xfer.rxLen {
		return DropTruncated
	}

	// copy response
	copy(xfer.buf, msg[:xfer.rxLen])
	xfer.pending = false

	// signal completion
	select {
	case xfer.done <- struct{}{}:
	default:
	}

	return ""
}
