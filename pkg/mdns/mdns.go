// Package mdns discovers and announces networked mailbox endpoints.
package mdns

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

// Service is the DNS-SD service type of mailbox endpoints.
const Service = "_sci._tcp"

// Location represents a discovered endpoint.
type Location struct {
	Instance string
	Hostname string
	Address  string
	Port     int
	Path     string
}

// URL returns the websocket URL of the endpoint.
func (l Location) URL() string {
	return fmt.Sprintf("ws://%s/%s", net.JoinHostPort(l.Address, fmt.Sprint(l.Port)), strings.TrimPrefix(l.Path, "/"))
}

// Discover searches for endpoints for the specified duration.
func Discover(duration time.Duration) ([]Location, error) {
	// create resolver
	resolver, err := zeroconf.NewResolver(zeroconf.SelectIPTraffic(zeroconf.IPv4))
	if err != nil {
		return nil, err
	}

	// prepare context
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	// prepare channels
	done := make(chan struct{})
	entries := make(chan *zeroconf.ServiceEntry, 8)

	// collect addresses
	var locations []Location
	go func() {
		for entry := range entries {
			if len(entry.AddrIPv4) == 0 {
				continue
			}
			locations = append(locations, Location{
				Instance: entry.Instance,
				Hostname: entry.HostName,
				Address:  entry.AddrIPv4[0].String(),
				Port:     entry.Port,
				Path:     txtValue(entry.Text, "path"),
			})
		}
		close(done)
	}()

	// perform lookup
	err = resolver.Browse(ctx, Service, "local.", entries)
	if err != nil {
		return nil, err
	}

	// wait for done
	<-done

	return locations, nil
}

// Announce registers an endpoint until the returned function is called.
func Announce(instance string, port int, path string) (func(), error) {
	// register service
	server, err := zeroconf.Register(instance, Service, "local.", port, []string{"path=" + path}, nil)
	if err != nil {
		return nil, err
	}

	return server.Shutdown, nil
}

func txtValue(records []string, key string) string {
	for _, record := range records {
		k, v, ok := strings.Cut(record, "=")
		if ok && k == key {
			return v
		}
	}
	return ""
}
