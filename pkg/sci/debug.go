package sci

import (
	"bytes"
	"errors"
	"io"
)

// DebugLog returns the contents of the firmware debug region up to the first
// zero byte. The firmware does not report wrap arounds of its log.
func (i *Instance) DebugLog() (string, error) {
	// check region
	if i.opts.debugRegion == nil || i.opts.debugSize <= 0 {
		return "", ErrNoDebugRegion
	}

	// read region
	buf := make([]byte, i.opts.debugSize)
	n, err := i.opts.debugRegion.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	buf = buf[:n]

	// cut at terminator
	if end := bytes.IndexByte(buf, 0); end >= 0 {
		buf = buf[:end]
	}

	return string(buf), nil
}
