package sci

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/256dpi/sci/pkg/mbox"
)

var testVersion = Version{
	ABIMajor:            3,
	ABIMinor:            1,
	FirmwareRevision:    0x0007,
	FirmwareDescription: "test-firmware",
}

// serve answers requests received on the remote end of a pipe with fn.
func serve(t *testing.T, remote mbox.Controller, fn func(hdr Header, out mbox.Channel)) {
	out, err := remote.Request("rx", nil)
	require.NoError(t, err)

	_, err = remote.Request("tx", func(msg []byte) {
		hdr, err := ParseHeader(msg)
		if err == nil {
			fn(hdr, out)
		}
	})
	require.NoError(t, err)
}

func reply(hdr Header, out mbox.Channel, ver Version) {
	hdr.Flags = FlagRespGenericAck
	_ = out.Send(EncodeVersion(hdr, ver))
}

func newTestInstance(t *testing.T, desc Desc, fn func(n int, hdr Header, out mbox.Channel)) (*Instance, *mbox.Pipe, *Metrics) {
	local, remote := mbox.NewPipe()
	t.Cleanup(func() {
		_ = local.Close()
		_ = remote.Close()
	})

	var counter atomic.Int64
	serve(t, remote, func(hdr Header, out mbox.Channel) {
		n := int(counter.Add(1))
		if n == 1 {
			reply(hdr, out, testVersion)
			return
		}
		fn(n, hdr, out)
	})

	metrics := NewMetrics()
	inst, err := NewInstance("test", desc, local, WithMetrics(metrics))
	require.NoError(t, err)

	return inst, remote, metrics
}

func TestInstanceProbe(t *testing.T) {
	inst, _, metrics := newTestInstance(t, testDesc(4, 50*time.Millisecond), func(_ int, hdr Header, out mbox.Channel) {
		reply(hdr, out, testVersion)
	})
	assert.Equal(t, "test", inst.Key())
	assert.Equal(t, testVersion, inst.Version())
	assert.Equal(t, 4, inst.Pool().Capacity())

	ver, err := inst.GetRevision()
	assert.NoError(t, err)
	assert.Equal(t, testVersion, ver)
	assert.Equal(t, 0, inst.Pool().InUse())

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Transfers.WithLabelValues("test", ResultOK)))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.InFlight.WithLabelValues("test")))
}

func TestInstanceProbeTimeout(t *testing.T) {
	local, remote := mbox.NewPipe()
	defer local.Close()
	defer remote.Close()

	serve(t, remote, func(Header, mbox.Channel) {})

	inst, err := NewInstance("test", testDesc(4, 20*time.Millisecond), local)
	assert.Nil(t, inst)
	assert.ErrorIs(t, err, ErrResponseTimeout)
	assert.ErrorIs(t, err, ErrTimeout)

	ch, err := local.Request("rx", nil)
	assert.NoError(t, err)
	ch.Free()
}

func TestInstanceChannels(t *testing.T) {
	local, remote := mbox.NewPipe()
	defer local.Close()
	defer remote.Close()

	out, err := remote.Request("down", nil)
	require.NoError(t, err)
	_, err = remote.Request("up", func(msg []byte) {
		hdr, _ := ParseHeader(msg)
		reply(hdr, out, testVersion)
	})
	require.NoError(t, err)

	inst, err := NewInstance("test", testDesc(4, 50*time.Millisecond), local, WithChannels("up", "down"))
	require.NoError(t, err)
	assert.Equal(t, testVersion, inst.Version())

	_, err = local.Request("up", nil)
	assert.ErrorIs(t, err, mbox.ErrChannelUsed)

	inst.Close()

	ch, err := local.Request("up", nil)
	assert.NoError(t, err)
	ch.Free()
}

func TestInstanceTimeout(t *testing.T) {
	inst, _, metrics := newTestInstance(t, testDesc(4, 20*time.Millisecond), func(int, Header, mbox.Channel) {})

	_, err := inst.GetRevision()
	assert.ErrorIs(t, err, ErrResponseTimeout)
	assert.Equal(t, 0, inst.Pool().InUse())
	assert.Equal(t, testVersion, inst.Version())

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Transfers.WithLabelValues("test", ResultTimeout)))
}

func TestInstanceLateResponse(t *testing.T) {
	inst, _, metrics := newTestInstance(t, testDesc(4, 20*time.Millisecond), func(_ int, hdr Header, out mbox.Channel) {
		go func() {
			time.Sleep(60 * time.Millisecond)
			reply(hdr, out, testVersion)
		}()
	})

	_, err := inst.GetRevision()
	assert.ErrorIs(t, err, ErrResponseTimeout)

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.Dropped.WithLabelValues("test", DropUnexpected)) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestInstanceDrops(t *testing.T) {
	inst, _, metrics := newTestInstance(t, testDesc(4, 50*time.Millisecond), func(int, Header, mbox.Channel) {})

	dropped := func(reason string) float64 {
		return testutil.ToFloat64(metrics.Dropped.WithLabelValues("test", reason))
	}

	inst.receive([]byte{1, 2, 3})
	assert.Equal(t, 1.0, dropped(DropShort))

	msg := EncodeVersion(Header{Type: MsgVersion, Host: 2, Seq: 3}, testVersion)
	inst.receive(msg)
	assert.Equal(t, 1.0, dropped(DropUnexpected))

	xfer, err := inst.Acquire(MsgVersion, 0, HeaderSize, VersionResponseSize)
	require.NoError(t, err)
	defer inst.Release(xfer)

	inst.receive(EncodeVersion(xfer.Header(), testVersion))
	assert.Equal(t, 2.0, dropped(DropUnexpected))

	inst.pool.arm(xfer)

	inst.receive(append(EncodeVersion(xfer.Header(), testVersion), make([]byte, 21)...))
	assert.Equal(t, 1.0, dropped(DropOversized))

	inst.receive(EncodeVersion(xfer.Header(), testVersion)[:20])
	assert.Equal(t, 1.0, dropped(DropTruncated))

	inst.receive(EncodeVersion(xfer.Header(), testVersion))
	ver, err := DecodeVersion(xfer.Response())
	assert.NoError(t, err)
	assert.Equal(t, testVersion, ver)
}

func TestInstanceConcurrent(t *testing.T) {
	var mutex sync.Mutex
	var queue []Header

	inst, _, _ := newTestInstance(t, testDesc(2, 200*time.Millisecond), func(_ int, hdr Header, out mbox.Channel) {
		mutex.Lock()
		defer mutex.Unlock()

		queue = append(queue, hdr)
		if len(queue) < 2 {
			return
		}

		// answer in reverse order
		for i := len(queue) - 1; i >= 0; i-- {
			reply(queue[i], out, Version{FirmwareDescription: fmt.Sprintf("seq-%d", queue[i].Seq)})
		}
	})

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			xfer, err := inst.Acquire(MsgVersion, 0, HeaderSize, VersionResponseSize)
			if !assert.NoError(t, err) {
				return
			}
			defer inst.Release(xfer)

			err = inst.Execute(xfer)
			if !assert.NoError(t, err) {
				return
			}

			ver, err := DecodeVersion(xfer.Response())
			assert.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("seq-%d", xfer.Seq()), ver.FirmwareDescription)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, inst.Pool().InUse())
}

func TestInstanceConcurrentRevision(t *testing.T) {
	var mutex sync.Mutex
	var queue []Header

	inst, _, _ := newTestInstance(t, testDesc(2, 200*time.Millisecond), func(_ int, hdr Header, out mbox.Channel) {
		mutex.Lock()
		defer mutex.Unlock()

		queue = append(queue, hdr)
		if len(queue) < 2 {
			return
		}

		// answer in reverse order, the revision tells the requests apart
		for i := len(queue) - 1; i >= 0; i-- {
			reply(queue[i], out, Version{
				FirmwareRevision:    uint16(queue[i].Seq),
				FirmwareDescription: fmt.Sprintf("seq-%d", queue[i].Seq),
			})
		}
	})

	results := make([]Version, 2)
	errs := make([]error, 2)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = inst.GetRevision()
		}()
	}
	wg.Wait()

	for i := 0; i < 2; i++ {
		assert.NoError(t, errs[i])
		assert.Equal(t, fmt.Sprintf("seq-%d", results[i].FirmwareRevision), results[i].FirmwareDescription)
	}
	assert.ElementsMatch(t, []string{"seq-0", "seq-1"}, []string{
		results[0].FirmwareDescription,
		results[1].FirmwareDescription,
	})
	assert.Equal(t, 0, inst.Pool().InUse())
}

func TestInstanceTransportError(t *testing.T) {
	inst, remote, metrics := newTestInstance(t, testDesc(4, 50*time.Millisecond), func(int, Header, mbox.Channel) {})

	require.NoError(t, remote.Close())

	_, err := inst.GetRevision()
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, mbox.ErrClosed)
	assert.Equal(t, 0, inst.Pool().InUse())

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Transfers.WithLabelValues("test", ResultTransport)))
}

func TestInstanceDoubleRelease(t *testing.T) {
	inst, _, metrics := newTestInstance(t, testDesc(4, 50*time.Millisecond), func(int, Header, mbox.Channel) {})

	xfer, err := inst.Acquire(MsgVersion, 0, HeaderSize, VersionResponseSize)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.InFlight.WithLabelValues("test")))

	inst.Release(xfer)
	inst.Release(xfer)
	inst.Release(nil)

	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.InFlight.WithLabelValues("test")))
	assert.Equal(t, 0, inst.Pool().InUse())
}

func TestInstanceErrorLogging(t *testing.T) {
	logger, hook := logtest.NewNullLogger()

	local, remote := mbox.NewPipe()
	defer local.Close()

	var counter atomic.Int64
	serve(t, remote, func(hdr Header, out mbox.Channel) {
		if counter.Add(1) == 1 {
			reply(hdr, out, testVersion)
		}
	})

	inst, err := NewInstance("test", testDesc(4, 20*time.Millisecond), local, WithLogger(logger))
	require.NoError(t, err)

	messages := func() []string {
		return lo.Map(hook.AllEntries(), func(e *logrus.Entry, _ int) string {
			return e.Message
		})
	}

	hook.Reset()
	_, err = inst.GetRevision()
	assert.ErrorIs(t, err, ErrResponseTimeout)
	assert.Equal(t, []string{"mailbox timed out in response"}, messages())

	require.NoError(t, remote.Close())

	hook.Reset()
	_, err = inst.GetRevision()
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, []string{"mailbox send failed"}, messages())
}

func TestInstanceDebugLog(t *testing.T) {
	region := bytes.NewReader(append([]byte("boot ok\nready\n"), make([]byte, 18)...))

	local, remote := mbox.NewPipe()
	defer local.Close()
	defer remote.Close()

	serve(t, remote, func(hdr Header, out mbox.Channel) {
		reply(hdr, out, testVersion)
	})

	inst, err := NewInstance("test", testDesc(4, 50*time.Millisecond), local, WithDebugRegion(region, region.Size()))
	require.NoError(t, err)

	log, err := inst.DebugLog()
	assert.NoError(t, err)
	assert.Equal(t, "boot ok\nready\n", log)

	inst.Close()

	inst2, err := NewInstance("test", testDesc(4, 50*time.Millisecond), local)
	require.NoError(t, err)

	_, err = inst2.DebugLog()
	assert.ErrorIs(t, err, ErrNoDebugRegion)
}
