package sci

// Transfer is a single request/response exchange. The same buffer carries the
// outgoing request and, once completed, the incoming response.
type Transfer struct {
	seq     uint8
	buf     []byte
	txLen   int
	rxLen   int
	pending bool
	done    chan struct{}
}

// Seq returns the sequence id, which is also the slot index.
func (t *Transfer) Seq() uint8 {
	return t.seq
}

// Header returns the header of the buffered message.
func (t *Transfer) Header() Header {
	h, _ := ParseHeader(t.buf)
	return h
}

// Payload returns the writable request payload following the header.
func (t *Transfer) Payload() []byte {
	return t.buf[HeaderSize:t.txLen]
}

// Message returns the request including the header.
func (t *Transfer) Message() []byte {
	return t.buf[:t.txLen]
}

// Response returns the received response including the header. It is only
// valid after a successful execution and until the transfer is released.
func (t *Transfer) Response() []byte {
	return t.buf[:t.rxLen]
}

// ExpectedLen returns the expected response length.
func (t *Transfer) ExpectedLen() int {
	return t.rxLen
}

func (t *Transfer) reset(h Header, txLen, rxLen int) {
	// clear buffer
	clear(t.buf)

	// set state
	t.txLen = txLen
	t.rxLen = rxLen
	t.pending = false

	// drain stale signal
	select {
	case <-t.done:
	default:
	}

	// write header
	h.Encode(t.buf)
}
