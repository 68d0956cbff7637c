package mbox

import "sync"

// PipeDepth is the number of messages a pipe end buffers before rejecting
// further sends.
const PipeDepth = 256

// Pipe is one end of an in-memory mailbox. Messages sent on any channel of one
// end are delivered asynchronously and in order to the receivers of the other
// end.
type Pipe struct {
	*Hub
	peer  *Pipe
	queue chan []byte
	done  chan struct{}
	once  sync.Once
}

// NewPipe creates a connected pair of pipe ends.
func NewPipe() (*Pipe, *Pipe) {
	// create ends
	a := newPipe()
	b := newPipe()

	// connect ends
	a.peer = b
	b.peer = a

	// run dispatchers
	go a.dispatch()
	go b.dispatch()

	return a, b
}

func newPipe() *Pipe {
	p := &Pipe{
		queue: make(chan []byte, PipeDepth),
		done:  make(chan struct{}),
	}
	p.Hub = NewHub(p.transmit)
	return p
}

// Close implements the Controller interface. Closing one end stops delivery
// to it, sends from the other end will fail with ErrClosed.
func (p *Pipe) Close() error {
	p.once.Do(func() {
		p.Shutdown()
		close(p.done)
	})

	return nil
}

func (p *Pipe) transmit(msg []byte) error {
	// check peer
	select {
	case <-p.peer.done:
		return ErrClosed
	default:
	}

	// copy message
	buf := make([]byte, len(msg))
	copy(buf, msg)

	// queue message
	select {
	case p.peer.queue <- buf:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pipe) dispatch() {
	for {
		select {
		case msg := <-p.queue:
			p.Deliver(msg)
		case <-p.done:
			return
		}
	}
}
