// Package serial provides a mailbox controller over a serial port.
package serial

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"github.com/256dpi/sci/pkg/mbox"
)

// The line prefix that marks mailbox messages. Other lines are ignored, which
// allows the firmware console to share the port.
var prefix = []byte("SCI!")

// The name fragments of ports that may be wired to a controller UART.
var portPatterns = []string{"ttyUSB", "ttyACM", "ttyS", "cu.usbserial", "cu.usbmodem", "cu.SLAB"}

// ListPorts returns the sorted paths of ports that may be wired to a
// controller.
func ListPorts() ([]string, error) {
	// get list
	list, err := serial.GetPortsList()
	if err != nil {
		return nil, err
	}

	// filter names
	ports := lo.Filter(list, func(name string, _ int) bool {
		return lo.ContainsBy(portPatterns, func(pattern string) bool {
			return strings.Contains(name, pattern)
		})
	})
	slices.Sort(ports)

	return ports, nil
}

// Controller is a mailbox controller that exchanges base64 encoded, prefixed
// lines over a serial connection.
type Controller struct {
	*mbox.Hub
	port  io.ReadWriteCloser
	done  chan struct{}
	once  sync.Once
	mutex sync.Mutex
}

// Open opens the serial port at the specified path.
func Open(path string, baudRate int) (*Controller, error) {
	// get port list
	ports, err := ListPorts()
	if err != nil {
		return nil, err
	}

	// check port
	if !slices.Contains(ports, path) {
		return nil, fmt.Errorf("serial port %q not found", path)
	}

	// open device
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: baudRate,
	})
	if err != nil {
		return nil, err
	}

	return NewController(port), nil
}

// NewController creates a controller that uses the provided connection.
func NewController(port io.ReadWriteCloser) *Controller {
	// prepare controller
	c := &Controller{
		port: port,
		done: make(chan struct{}),
	}
	c.Hub = mbox.NewHub(c.write)

	// run reader
	go c.reader()

	return c
}

// Done is closed once the reader has stopped.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Close implements the mbox.Controller interface.
func (c *Controller) Close() error {
	var err error
	c.once.Do(func() {
		c.Shutdown()
		err = c.port.Close()
	})

	return err
}

func (c *Controller) write(msg []byte) error {
	// acquire mutex
	c.mutex.Lock()
	defer c.mutex.Unlock()

	// encode message
	line := append([]byte{'\n'}, prefix...)
	line = append(base64.StdEncoding.AppendEncode(line, msg), '\n')

	// write to port
	_, err := c.port.Write(line)
	if err != nil {
		return err
	}

	return nil
}

func (c *Controller) reader() {
	defer close(c.done)

	// scan lines
	scanner := bufio.NewScanner(c.port)
	for scanner.Scan() {
		// get line
		line := scanner.Bytes()
		if len(line) <= len(prefix) || !bytes.HasPrefix(line, prefix) {
			continue
		}

		// strip prefix and decode
		data, err := base64.StdEncoding.AppendDecode(nil, line[len(prefix):])
		if err != nil {
			logrus.WithError(err).Warn("skipping malformed mailbox line")
			continue
		}

		// yield message
		c.Deliver(data)
	}

	// free channels
	c.Shutdown()
}
