package sci

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/256dpi/sci/pkg/mbox"
)

// Instance represents a single system controller reached through a mailbox.
type Instance struct {
	key   string
	desc  Desc
	opts  options
	pool  *Pool
	tx    mbox.Channel
	rx    mbox.Channel
	log   *logrus.Entry
	users int // guarded by the registry

	version Version
	mutex   sync.Mutex
}

// NewInstance connects to the controller using the provided mailbox and
// queries its revision. The key identifies the instance in a registry.
func NewInstance(key string, desc Desc, ctrl mbox.Controller, opts ...Option) (*Instance, error) {
	// prepare options
	o := buildOptions(opts)

	// prepare logger
	log := o.logger.WithField("instance", key)

	// create pool
	pool, err := newPool(desc, log)
	if err != nil {
		return nil, err
	}

	// prepare instance
	inst := &Instance{
		key:  key,
		desc: desc,
		opts: o,
		pool: pool,
		log:  log,
	}

	// request receive channel
	inst.rx, err = ctrl.Request(o.rxName, inst.receive)
	if err != nil {
		return nil, fmt.Errorf("request %q channel: %w", o.rxName, err)
	}

	// request transmit channel
	inst.tx, err = ctrl.Request(o.txName, nil)
	if err != nil {
		inst.rx.Free()
		return nil, fmt.Errorf("request %q channel: %w", o.txName, err)
	}

	// query revision
	ver, err := inst.GetRevision()
	if err != nil {
		log.WithError(err).Error("unable to communicate with controller")
		inst.Close()
		return nil, err
	}

	// log version
	log.Infof("ABI: %d.%d (firmware rev 0x%04x '%s')", ver.ABIMajor, ver.ABIMinor, ver.FirmwareRevision, ver.FirmwareDescription)

	return inst, nil
}

// Key returns the key of the instance.
func (i *Instance) Key() string {
	return i.key
}

// Desc returns the description of the instance.
func (i *Instance) Desc() Desc {
	return i.desc
}

// Pool returns the transfer pool of the instance.
func (i *Instance) Pool() *Pool {
	return i.pool
}

// Version returns the version reported by the last revision query.
func (i *Instance) Version() Version {
	// acquire mutex
	i.mutex.Lock()
	defer i.mutex.Unlock()

	return i.version
}

// Acquire allocates a transfer from the pool of the instance.
func (i *Instance) Acquire(typ uint16, flags uint32, txSize, rxSize int) (*Transfer, error) {
	// allocate transfer
	xfer, err := i.pool.Acquire(typ, flags, txSize, rxSize)
	if err != nil {
		i.log.WithError(err).Error("message alloc failed")
		return nil, err
	}

	// update metrics
	i.opts.metrics.acquired(i.key, 1)

	return xfer, nil
}

// Release returns a transfer to the pool of the instance.
func (i *Instance) Release(xfer *Transfer) {
	if i.pool.Release(xfer) {
		i.opts.metrics.acquired(i.key, -1)
	}
}

// Execute sends the transfer and waits for its response. On success the
// response is available via the transfer until it is released.
func (i *Instance) Execute(xfer *Transfer) error {
	// get start
	start := time.Now()

	// expect response
	i.pool.arm(xfer)

	// send message
	err := i.tx.Send(xfer.Message())
	if err != nil {
		i.pool.disarm(xfer)
		i.opts.metrics.transfer(i.key, ResultTransport, start)
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}

	// the protocol queues by itself, submit the next message right away
	i.tx.TxDone()

	// prepare timer
	timer := time.NewTimer(i.desc.Timeout)
	defer timer.Stop()

	// await response
	select {
	case <-xfer.done:
	case <-timer.C:
		if i.pool.disarm(xfer) {
			i.log.WithFields(xfer.Header().fields()).Error("mailbox timed out in response")
			i.opts.metrics.transfer(i.key, ResultTimeout, start)
			return ErrResponseTimeout
		}

		// response arrived while timing out
		<-xfer.done
	}

	// update metrics
	i.opts.metrics.transfer(i.key, ResultOK, start)

	return nil
}

// Close frees the mailbox channels. Pending transfers will time out.
func (i *Instance) Close() {
	i.tx.Free()
	i.rx.Free()
}

func (i *Instance) receive(msg []byte) {
	// parse header
	hdr, err := ParseHeader(msg)
	if err != nil {
		i.drop(DropShort, hdr, len(msg))
		return
	}

	// deliver message
	reason := i.pool.deliver(hdr, msg)
	if reason != "" {
		i.drop(reason, hdr, len(msg))
		return
	}

	// dump header
	i.log.WithFields(hdr.fields()).Debug("received message")
}

func (i *Instance) drop(reason string, hdr Header, size int) {
	// log message
	i.log.WithFields(hdr.fields()).WithFields(logrus.Fields{
		"reason": reason,
		"len":    size,
		"max":    i.desc.MaxMsgSize,
	}).Error("dropped inbound message")

	// update metrics
	i.opts.metrics.dropped(i.key, reason)
}
