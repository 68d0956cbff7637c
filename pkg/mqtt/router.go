package mqtt

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/256dpi/gomqtt/client"
	"github.com/256dpi/gomqtt/packet"
	"github.com/sirupsen/logrus"
)

type callback struct {
	id uint64
	fn func([]byte)
}

// Router provides a multiplexed MQTT client with topic based callbacks.
type Router struct {
	client    *client.Client
	qos       packet.QOS
	counter   uint64
	callbacks map[string][]callback
	mutex     sync.Mutex
}

// Connect creates a new Router connected to the given MQTT broker URL
// using the provided client ID and QOS level.
func Connect(url, cid string, qos packet.QOS) (*Router, error) {
	// check QOS
	if !qos.Successful() {
		return nil, fmt.Errorf("invalid QOS: %d", qos)
	}

	// create client
	c := client.New()

	// create router
	r := &Router{
		client:    c,
		qos:       qos,
		callbacks: make(map[string][]callback),
	}

	// set handler
	c.Callback = func(msg *packet.Message, err error) error {
		// handle errors
		if err != nil {
			logrus.WithError(err).Error("mqtt client failed")
			return err
		}

		// collect callbacks
		r.mutex.Lock()
		cbs := append([]callback(nil), r.callbacks[msg.Topic]...)
		r.mutex.Unlock()

		// call callbacks
		for _, cb := range cbs {
			cb.fn(msg.Payload)
		}

		return nil
	}

	// connect to the broker using the provided url
	cf, err := c.Connect(client.NewConfigWithClientID(url, cid))
	if err != nil {
		return nil, err
	}
	err = cf.Wait(5 * time.Second)
	if err != nil {
		return nil, err
	}

	return r, nil
}

// Subscribe subscribes to the given topic and registers the provided callback
// function. It returns a handle that can be used to unsubscribe later.
func (r *Router) Subscribe(topic string, fn func([]byte)) (uint64, error) {
	// acquire mutex
	r.mutex.Lock()
	defer r.mutex.Unlock()

	// generate id
	r.counter++
	id := r.counter

	// subscribe topic if first subscriber
	if len(r.callbacks[topic]) == 0 {
		sf, err := r.client.Subscribe(topic, r.qos)
		if err != nil {
			return 0, err
		}
		err = sf.Wait(5 * time.Second)
		if err != nil {
			return 0, err
		}
	}

	// register callback
	r.callbacks[topic] = append(r.callbacks[topic], callback{
		id: id,
		fn: fn,
	})

	return id, nil
}

// Publish publishes the given payload to the specified topic.
func (r *Router) Publish(topic string, payload []byte) error {
	// publish a copy, the caller may reuse the buffer
	pf, err := r.client.Publish(topic, bytes.Clone(payload), r.qos, false)
	if err != nil {
		return err
	}

	// await acknowledgement
	if r.qos > 0 {
		err = pf.Wait(5 * time.Second)
		if err != nil {
			return err
		}
	}

	return nil
}

// Unsubscribe removes the callback with the given handle from the topic and
// unsubscribes from the topic if there are no more subscribers.
func (r *Router) Unsubscribe(topic string, id uint64) error {
	// acquire mutex
	r.mutex.Lock()
	defer r.mutex.Unlock()

	// remove callback
	callbacks := r.callbacks[topic]
	for i, cb := range callbacks {
		if cb.id == id {
			r.callbacks[topic] = append(callbacks[:i], callbacks[i+1:]...)
			break
		}
	}

	// unsubscribe topic if no more subscribers
	if len(r.callbacks[topic]) == 0 {
		delete(r.callbacks, topic)
		sf, err := r.client.Unsubscribe(topic)
		if err != nil {
			return err
		}
		err = sf.Wait(5 * time.Second)
		if err != nil {
			return err
		}
	}

	return nil
}

// Close closes the router and disconnects the underlying client.
func (r *Router) Close() error {
	// acquire mutex
	r.mutex.Lock()
	defer r.mutex.Unlock()

	// clear callbacks
	r.callbacks = map[string][]callback{}

	// disconnect client
	return r.client.Disconnect()
}
