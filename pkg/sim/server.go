package sim

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/256dpi/sci/pkg/mbox"
)

// Handler returns an HTTP handler that serves the firmware to websocket
// mailbox clients.
func (f *Firmware) Handler() http.Handler {
	// prepare upgrader
	upgrader := websocket.Upgrader{
		Subprotocols: []string{mbox.Subprotocol},
		CheckOrigin: func(*http.Request) bool {
			return true
		},
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// upgrade connection
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logrus.WithError(err).Warn("websocket upgrade failed")
			return
		}
		defer conn.Close()

		// prepare hub
		var mutex sync.Mutex
		hub := mbox.NewHub(func(msg []byte) error {
			mutex.Lock()
			defer mutex.Unlock()
			return conn.WriteMessage(websocket.BinaryMessage, msg)
		})
		defer hub.Shutdown()

		// attach firmware
		detach, err := f.Attach(hub)
		if err != nil {
			logrus.WithError(err).Error("attach failed")
			return
		}
		defer detach()

		// log connection
		log := logrus.WithField("remote", r.RemoteAddr)
		log.Info("mailbox client connected")

		for {
			// read message
			typ, data, err := conn.ReadMessage()
			if err != nil {
				log.WithError(err).Info("mailbox client disconnected")
				return
			}

			// deliver binary messages
			if typ == websocket.BinaryMessage {
				hub.Deliver(data)
			}
		}
	})
}
