package sci

import (
	"errors"
	"fmt"
)

// The available errors.
var (
	// ErrInvalidArgument is returned for malformed requests before any
	// resource is consumed.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrOutOfRange is returned when a transfer size is not supported.
	ErrOutOfRange = fmt.Errorf("size out of range: %w", ErrInvalidArgument)

	// ErrTimeout is wrapped by all timeout errors.
	ErrTimeout = errors.New("timeout")

	// ErrNoSlot is returned when no transfer slot became available in time.
	ErrNoSlot = fmt.Errorf("no free transfer slot: %w", ErrTimeout)

	// ErrResponseTimeout is returned when no matching response arrived in time.
	ErrResponseTimeout = fmt.Errorf("response: %w", ErrTimeout)

	// ErrTransport is returned when the mailbox rejected a message.
	ErrTransport = errors.New("transport error")

	// ErrShortMessage is returned when a message cannot hold a header or
	// the expected record.
	ErrShortMessage = errors.New("short message")

	ErrNotFound        = errors.New("instance not found")
	ErrNotReady        = errors.New("instance not ready")
	ErrExists          = errors.New("instance already exists")
	ErrBusy            = errors.New("instance busy")
	ErrAlreadyReleased = errors.New("handle already released")
	ErrNoDebugRegion   = errors.New("no debug region")
)

// The reasons an inbound message is dropped.
const (
	DropShort      = "short"
	DropUnexpected = "unexpected"
	DropOversized  = "oversized"
	DropTruncated  = "truncated"
)
