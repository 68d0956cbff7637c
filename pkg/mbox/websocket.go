package mbox

import (
	"context"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

// Subprotocol is the websocket subprotocol spoken by mailbox endpoints.
const Subprotocol = "sci"

// Websocket is a mailbox controller backed by a websocket connection. Each
// binary message carries exactly one mailbox message.
type Websocket struct {
	*Hub
	url    string
	ctx    context.Context
	conn   *websocket.Conn
	cancel context.CancelFunc
}

// DialWebsocket connects to the mailbox endpoint at the specified URL.
func DialWebsocket(url string) (*Websocket, error) {
	// create context
	var ok bool
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		if !ok {
			cancel()
		}
	}()

	// connect to server
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		Subprotocols: []string{Subprotocol},
	})
	if err != nil {
		return nil, err
	}

	// prepare controller
	ws := &Websocket{
		url:    url,
		ctx:    ctx,
		conn:   conn,
		cancel: cancel,
	}
	ws.Hub = NewHub(ws.write)

	// set flag
	ok = true

	// run reader
	go ws.reader()

	return ws, nil
}

// URL returns the endpoint URL.
func (w *Websocket) URL() string {
	return w.url
}

// Close implements the Controller interface.
func (w *Websocket) Close() error {
	// cancel context
	defer w.cancel()

	// free channels
	w.Shutdown()

	// close connection
	return w.conn.Close(websocket.StatusNormalClosure, "")
}

func (w *Websocket) write(msg []byte) error {
	return w.conn.Write(w.ctx, websocket.MessageBinary, msg)
}

func (w *Websocket) reader() {
	for {
		// read message
		typ, data, err := w.conn.Read(w.ctx)
		if err != nil {
			if w.ctx.Err() == nil {
				logrus.WithError(err).WithField("url", w.url).Error("mailbox connection lost")
			}
			w.Shutdown()
			return
		}

		// skip text messages
		if typ != websocket.MessageBinary {
			continue
		}

		// yield message
		w.Deliver(data)
	}
}
