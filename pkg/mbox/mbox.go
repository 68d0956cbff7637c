// Package mbox defines the mailbox boundary between a host and a remote system
// controller and provides in-memory and network backed implementations.
package mbox

import "errors"

// The available mailbox errors.
var (
	ErrClosed      = errors.New("mailbox closed")
	ErrChannelUsed = errors.New("channel already requested")
	ErrFreed       = errors.New("channel freed")
	ErrQueueFull   = errors.New("mailbox queue full")
)

// Receiver is invoked for every message delivered to a channel. It must not
// block and must not retain the buffer after returning.
type Receiver func([]byte)

// Channel is a single named mailbox channel.
type Channel interface {
	// Name returns the channel name.
	Name() string

	// Send submits a message. The buffer is not retained after Send returns.
	Send([]byte) error

	// TxDone tells the mailbox that the sender is ready for the next
	// submission.
	TxDone()

	// Free releases the channel.
	Free()
}

// Controller hands out named channels of a single mailbox.
type Controller interface {
	// Request claims the named channel. Messages delivered by the remote
	// side are passed to rx if not nil.
	Request(name string, rx Receiver) (Channel, error)

	// Close shuts down the mailbox and frees all channels.
	Close() error
}
