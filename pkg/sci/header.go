// Package sci implements a client for the system control interface of a
// remote system controller firmware reached through a mailbox.
package sci

import (
	"encoding/binary"

	"github.com/sirupsen/logrus"
)

// HeaderSize is the size of the header that starts every message.
const HeaderSize = 8

// The available message types.
const (
	MsgVersion uint16 = 0x0002
)

// The available request and response flags.
const (
	FlagReqAckOnReceived  uint32 = 1 << 0
	FlagReqAckOnProcessed uint32 = 1 << 1
	FlagRespGenericAck    uint32 = 1 << 1
)

// Header is the fixed header embedded in every message.
type Header struct {
	Type  uint16
	Host  uint8
	Seq   uint8
	Flags uint32
}

// ParseHeader reads the header at the start of a message.
func ParseHeader(msg []byte) (Header, error) {
	// check length
	if len(msg) < HeaderSize {
		return Header{}, ErrShortMessage
	}

	return Header{
		Type:  binary.LittleEndian.Uint16(msg[0:2]),
		Host:  msg[2],
		Seq:   msg[3],
		Flags: binary.LittleEndian.Uint32(msg[4:8]),
	}, nil
}

// Encode writes the header to the start of the buffer, which must hold at
// least HeaderSize bytes.
func (h Header) Encode(buf []byte) {
	binary.LittleEndian.PutUint16(buf[0:2], h.Type)
	buf[2] = h.Host
	buf[3] = h.Seq
	binary.LittleEndian.PutUint32(buf[4:8], h.Flags)
}

// Ack returns whether the generic acknowledgement flag is set.
func (h Header) Ack() bool {
	return h.Flags&FlagRespGenericAck != 0
}

func (h Header) fields() logrus.Fields {
	return logrus.Fields{
		"type":  h.Type,
		"host":  h.Host,
		"seq":   h.Seq,
		"flags": h.Flags,
	}
}
