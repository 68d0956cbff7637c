package mqtt

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopic(t *testing.T) {
	ctrl := NewController(nil, "site/k2g")
	assert.Equal(t, "site/k2g/sci/tx", ctrl.Topic("tx"))
	assert.Equal(t, "site/k2g/sci/rx", ctrl.Topic("rx"))

	ctrl = NewController(nil, "")
	assert.Equal(t, "sci/tx", ctrl.Topic("tx"))
}

func TestBaseTopic(t *testing.T) {
	assert.Equal(t, "site/k2g", baseTopic("mqtt://localhost:1883/site/k2g/"))
	assert.Equal(t, "", baseTopic("mqtt://localhost:1883"))
}

func TestControllerLoopback(t *testing.T) {
	broker := os.Getenv("SCI_MQTT_BROKER")
	if broker == "" {
		t.Skip("set SCI_MQTT_BROKER to run against a broker")
	}

	host, err := Dial(broker+"/sci-test", 0)
	require.NoError(t, err)
	defer host.Close()

	remote, err := Dial(broker+"/sci-test", 0)
	require.NoError(t, err)
	defer remote.Close()

	received := make(chan []byte, 1)
	_, err = host.Request("rx", func(msg []byte) {
		received <- append([]byte(nil), msg...)
	})
	require.NoError(t, err)

	out, err := remote.Request("rx", nil)
	require.NoError(t, err)

	err = out.Send([]byte("hello"))
	assert.NoError(t, err)

	select {
	case msg := <-received:
		assert.Equal(t, []byte("hello"), msg)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}

	out.Free()
	err = out.Send([]byte("hello"))
	assert.Error(t, err)
}
