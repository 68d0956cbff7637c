package sci

import (
	"fmt"
	"time"
)

// Desc describes the integration of a system controller.
type Desc struct {
	// The host identifier of this processor as seen by the firmware.
	HostID uint8

	// The maximum time to wait for a response.
	Timeout time.Duration

	// The maximum number of concurrently pending messages.
	MaxMsgs int

	// The maximum size of a single message including the header.
	MaxMsgSize int
}

// MaxMsgSizeLimit is the largest supported message size.
const MaxMsgSizeLimit = 64 << 10

// K2G is the description of the K2G power management controller.
var K2G = Desc{
	HostID:     2,
	Timeout:    200 * time.Millisecond,
	MaxMsgs:    128,
	MaxMsgSize: 64,
}

var compatibles = map[string]Desc{
	"k2g": K2G,
}

// Compatible returns the description registered for the compatible string.
func Compatible(name string) (Desc, bool) {
	desc, ok := compatibles[name]
	return desc, ok
}

// Validate checks the description.
func (d Desc) Validate() error {
	// the sequence id doubles as pool index
	if d.MaxMsgs < 1 || d.MaxMsgs > 256 {
		return fmt.Errorf("%w: max msgs %d not in [1, 256]", ErrInvalidArgument, d.MaxMsgs)
	}

	// check size
	if d.MaxMsgSize < HeaderSize {
		return fmt.Errorf("%w: max msg size %d below header size", ErrInvalidArgument, d.MaxMsgSize)
	} else if d.MaxMsgSize > MaxMsgSizeLimit {
		return fmt.Errorf("%w: max msg size %d above %d", ErrInvalidArgument, d.MaxMsgSize, MaxMsgSizeLimit)
	}

	// check timeout
	if d.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidArgument)
	}

	return nil
}
