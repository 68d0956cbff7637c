package mdns

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocationURL(t *testing.T) {
	loc := Location{Address: "10.0.1.7", Port: 8080, Path: "/sci"}
	assert.Equal(t, "ws://10.0.1.7:8080/sci", loc.URL())

	loc = Location{Address: "10.0.1.7", Port: 80}
	assert.Equal(t, "ws://10.0.1.7:80/", loc.URL())
}

func TestTXTValue(t *testing.T) {
	assert.Equal(t, "/sci", txtValue([]string{"foo=bar", "path=/sci"}, "path"))
	assert.Equal(t, "", txtValue([]string{"path"}, "path"))
	assert.Equal(t, "", txtValue(nil, "path"))
}

func TestAnnounceDiscover(t *testing.T) {
	if os.Getenv("SCI_MDNS_TEST") == "" {
		t.Skip("set SCI_MDNS_TEST to run against the local network")
	}

	stop, err := Announce("sci-test", 42424, "/sci")
	require.NoError(t, err)
	defer stop()

	locations, err := Discover(2 * time.Second)
	assert.NoError(t, err)

	var found bool
	for _, loc := range locations {
		if loc.Instance == "sci-test" {
			found = true
			assert.Equal(t, 42424, loc.Port)
			assert.Equal(t, "/sci", loc.Path)
		}
	}
	assert.True(t, found)
}
