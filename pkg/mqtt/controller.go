// Package mqtt provides a mailbox controller that exchanges messages through
// an MQTT broker.
package mqtt

import (
	"crypto/rand"
	"encoding/hex"
	"net/url"
	"strings"
	"sync"

	"github.com/256dpi/gomqtt/packet"

	"github.com/256dpi/sci/pkg/mbox"
)

// Controller maps mailbox channels to topics below a base topic. A channel
// named "tx" publishes to and receives from "<base>/sci/tx".
type Controller struct {
	router *Router
	base   string
	chans  map[string]*channel
	closed bool
	mutex  sync.Mutex
}

// Dial connects to the broker at the specified URL. The path part of the URL
// is used as the base topic.
func Dial(uri string, qos int) (*Controller, error) {
	// generate client id
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)

	// connect router
	router, err := Connect(uri, "sci-"+hex.EncodeToString(buf), packet.QOS(qos))
	if err != nil {
		return nil, err
	}

	return NewController(router, baseTopic(uri)), nil
}

// NewController creates a controller that uses the provided router.
func NewController(router *Router, base string) *Controller {
	return &Controller{
		router: router,
		base:   base,
		chans:  make(map[string]*channel),
	}
}

// Topic returns the topic used for the named channel.
func (c *Controller) Topic(name string) string {
	if c.base == "" {
		return "sci/" + name
	}
	return c.base + "/sci/" + name
}

// Request implements the mbox.Controller interface.
func (c *Controller) Request(name string, rx mbox.Receiver) (mbox.Channel, error) {
	// acquire mutex
	c.mutex.Lock()
	defer c.mutex.Unlock()

	// check state
	if c.closed {
		return nil, mbox.ErrClosed
	} else if _, ok := c.chans[name]; ok {
		return nil, mbox.ErrChannelUsed
	}

	// prepare channel
	ch := &channel{
		ctrl:  c,
		name:  name,
		topic: c.Topic(name),
	}

	// subscribe topic
	if rx != nil {
		id, err := c.router.Subscribe(ch.topic, rx)
		if err != nil {
			return nil, err
		}
		ch.sub = id
	}

	// add channel
	c.chans[name] = ch

	return ch, nil
}

// Close implements the mbox.Controller interface.
func (c *Controller) Close() error {
	// acquire mutex
	c.mutex.Lock()
	defer c.mutex.Unlock()

	// check state
	if c.closed {
		return nil
	}

	// clear channels
	for _, ch := range c.chans {
		ch.freed = true
	}
	c.chans = map[string]*channel{}
	c.closed = true

	return c.router.Close()
}

func (c *Controller) free(ch *channel) {
	// acquire mutex
	c.mutex.Lock()
	defer c.mutex.Unlock()

	// check state
	if ch.freed {
		return
	}

	// unsubscribe
	if ch.sub != 0 {
		_ = c.router.Unsubscribe(ch.topic, ch.sub)
	}

	// remove channel
	ch.freed = true
	delete(c.chans, ch.name)
}

func baseTopic(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return strings.Trim(u.Path, "/")
}

type channel struct {
	ctrl  *Controller
	name  string
	topic string
	sub   uint64
	freed bool
}

func (c *channel) Name() string {
	return c.name
}

func (c *channel) Send(msg []byte) error {
	// check state
	c.ctrl.mutex.Lock()
	freed := c.freed
	c.ctrl.mutex.Unlock()
	if freed {
		return mbox.ErrFreed
	}

	return c.ctrl.router.Publish(c.topic, msg)
}

func (c *channel) TxDone() {}

func (c *channel) Free() {
	c.ctrl.free(c)
}
