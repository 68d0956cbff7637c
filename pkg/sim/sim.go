// Package sim provides a simulated system controller firmware.
package sim

import (
	"bytes"
	"sync/atomic"
	"time"

	"github.com/256dpi/sci/pkg/mbox"
	"github.com/256dpi/sci/pkg/sci"
)

// Firmware answers requests received through a mailbox.
type Firmware struct {
	// The version reported to version queries.
	Version sci.Version

	// Delay returns how long to wait before answering a request.
	Delay func(sci.Header) time.Duration

	// Drop returns whether a request should be left unanswered.
	Drop func(sci.Header) bool

	requests atomic.Int64
}

// Requests returns the number of requests received so far.
func (f *Firmware) Requests() int {
	return int(f.requests.Load())
}

// Attach serves requests arriving on the "tx" channel of the controller and
// answers on its "rx" channel. The returned function detaches the firmware.
func (f *Firmware) Attach(ctrl mbox.Controller) (func(), error) {
	// request response channel
	out, err := ctrl.Request("rx", nil)
	if err != nil {
		return nil, err
	}

	// request request channel
	in, err := ctrl.Request("tx", func(msg []byte) {
		f.receive(out, bytes.Clone(msg))
	})
	if err != nil {
		out.Free()
		return nil, err
	}

	return func() {
		in.Free()
		out.Free()
	}, nil
}

// Respond returns the response for a request or nil if the request is
// malformed.
func (f *Firmware) Respond(req []byte) []byte {
	// parse header
	hdr, err := sci.ParseHeader(req)
	if err != nil {
		return nil
	}

	switch hdr.Type {
	case sci.MsgVersion:
		hdr.Flags = sci.FlagRespGenericAck
		return sci.EncodeVersion(hdr, f.Version)
	default:
		hdr.Flags = 0
		buf := make([]byte, sci.HeaderSize)
		hdr.Encode(buf)
		return buf
	}
}

func (f *Firmware) receive(out mbox.Channel, req []byte) {
	// count request
	f.requests.Add(1)

	// parse header
	hdr, err := sci.ParseHeader(req)
	if err != nil {
		return
	}

	// check drop
	if f.Drop != nil && f.Drop(hdr) {
		return
	}

	// determine delay
	var delay time.Duration
	if f.Delay != nil {
		delay = f.Delay(hdr)
	}

	// answer asynchronously to not block the mailbox
	go func() {
		if delay > 0 {
			time.Sleep(delay)
		}
		res := f.Respond(req)
		if res != nil {
			_ = out.Send(res)
			out.TxDone()
		}
	}()
}
