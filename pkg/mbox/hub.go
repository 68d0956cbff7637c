package mbox

import "sync"

// Hub multiplexes named channels over a single link. The link carries no
// channel names, so every inbound message is passed to the receivers of all
// requested channels and outbound messages of all channels are written with
// the same send function. Channel names only reserve a slot on the hub.
type Hub struct {
	send   func([]byte) error
	chans  map[string]*hubChannel
	closed bool
	mutex  sync.Mutex
}

// NewHub creates a new hub that writes messages using the provided function.
func NewHub(send func([]byte) error) *Hub {
	return &Hub{
		send:  send,
		chans: make(map[string]*hubChannel),
	}
}

// Request implements the Controller interface.
func (h *Hub) Request(name string, rx Receiver) (Channel, error) {
	// acquire mutex
	h.mutex.Lock()
	defer h.mutex.Unlock()

	// check state
	if h.closed {
		return nil, ErrClosed
	}

	// check name
	if _, ok := h.chans[name]; ok {
		return nil, ErrChannelUsed
	}

	// add channel
	ch := &hubChannel{hub: h, name: name, rx: rx}
	h.chans[name] = ch

	return ch, nil
}

// Deliver passes a message to all receivers.
func (h *Hub) Deliver(msg []byte) {
	// collect receivers
	h.mutex.Lock()
	receivers := make([]Receiver, 0, len(h.chans))
	for _, ch := range h.chans {
		if ch.rx != nil {
			receivers = append(receivers, ch.rx)
		}
	}
	h.mutex.Unlock()

	// call receivers
	for _, rx := range receivers {
		rx(msg)
	}
}

// Shutdown frees all channels and rejects further requests.
func (h *Hub) Shutdown() {
	// acquire mutex
	h.mutex.Lock()
	defer h.mutex.Unlock()

	// mark channels
	for _, ch := range h.chans {
		ch.freed = true
	}

	// clear state
	h.chans = map[string]*hubChannel{}
	h.closed = true
}

// Close implements the Controller interface.
func (h *Hub) Close() error {
	h.Shutdown()
	return nil
}

// Closed returns whether the hub has been shut down.
func (h *Hub) Closed() bool {
	// acquire mutex
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.closed
}

func (h *Hub) write(ch *hubChannel, msg []byte) error {
	// check state
	h.mutex.Lock()
	freed := ch.freed
	h.mutex.Unlock()
	if freed {
		return ErrFreed
	}

	return h.send(msg)
}

func (h *Hub) free(ch *hubChannel) {
	// acquire mutex
	h.mutex.Lock()
	defer h.mutex.Unlock()

	// remove channel
	if !ch.freed {
		ch.freed = true
		delete(h.chans, ch.name)
	}
}

type hubChannel struct {
	hub   *Hub
	name  string
	rx    Receiver
	freed bool
}

func (c *hubChannel) Name() string {
	return c.name
}

func (c *hubChannel) Send(msg []byte) error {
	return c.hub.write(c, msg)
}

func (c *hubChannel) TxDone() {}

func (c *hubChannel) Free() {
	c.hub.free(c)
}
