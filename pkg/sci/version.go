package sci

import (
	"bytes"
	"errors"
)

// DescriptionSize is the size of the firmware description field.
const DescriptionSize = 32

// VersionResponseSize is the size of a version response including the header.
const VersionResponseSize = HeaderSize + DescriptionSize + 4

// Version describes the firmware of a controller.
type Version struct {
	ABIMajor            uint8
	ABIMinor            uint8
	FirmwareRevision    uint16
	FirmwareDescription string
}

// GetRevision queries the firmware version of the controller.
func (i *Instance) GetRevision() (Version, error) {
	// allocate transfer, no flags needed since a response is expected anyway
	xfer, err := i.Acquire(MsgVersion, 0, HeaderSize, VersionResponseSize)
	if err != nil {
		return Version{}, err
	}

	// ensure release
	defer i.Release(xfer)

	// execute transfer
	err = i.Execute(xfer)
	if errors.Is(err, ErrTransport) {
		i.log.WithError(err).Error("mailbox send failed")
		return Version{}, err
	} else if err != nil {
		return Version{}, err
	}

	// decode response
	ver, err := DecodeVersion(xfer.Response())
	if err != nil {
		return Version{}, err
	}

	// store version
	i.mutex.Lock()
	i.version = ver
	i.mutex.Unlock()

	return ver, nil
}

// DecodeVersion decodes a version response.
func DecodeVersion(msg []byte) (Version, error) {
	// check length
	if len(msg) < VersionResponseSize {
		return Version{}, ErrShortMessage
	}

	// get description
	desc := msg[HeaderSize : HeaderSize+DescriptionSize]
	if n := bytes.IndexByte(desc, 0); n >= 0 {
		desc = desc[:n]
	}

	// unpack numbers
	args := Unpack("hoo", msg[HeaderSize+DescriptionSize:])

	return Version{
		ABIMajor:            args[1].(uint8),
		ABIMinor:            args[2].(uint8),
		FirmwareRevision:    args[0].(uint16),
		FirmwareDescription: string(desc),
	}, nil
}

// EncodeVersion encodes a version response with the provided header. The
// description is truncated to fit its field.
func EncodeVersion(hdr Header, ver Version) []byte {
	// prepare description
	desc := make([]byte, DescriptionSize)
	copy(desc, ver.FirmwareDescription)

	return Pack("hooibhoo", hdr.Type, hdr.Host, hdr.Seq, hdr.Flags, desc, ver.FirmwareRevision, ver.ABIMajor, ver.ABIMinor)
}
