package sci

import (
	"bytes"
	"encoding/binary"
)

// Pack encodes the arguments according to the format. The codes are
// "s" (string), "b" (bytes), "o" (uint8), "h" (uint16), "i" (uint32) and
// "q" (uint64). Integers are written in little endian.
func Pack(fmt string, args ...any) []byte {
	// calculate size
	size := 0
	for i, code := range fmt {
		switch code {
		case 's':
			size += len(args[i].(string))
		case 'b':
			size += len(args[i].([]byte))
		case 'o':
			size += 1
		case 'h':
			size += 2
		case 'i':
			size += 4
		case 'q':
			size += 8
		default:
			panic("invalid format")
		}
	}

	// create buffer
	buffer := make([]byte, size)

	// write arguments
	pos := 0
	for i, code := range fmt {
		switch code {
		case 's':
			pos += copy(buffer[pos:], args[i].(string))
		case 'b':
			pos += copy(buffer[pos:], args[i].([]byte))
		case 'o':
			buffer[pos] = args[i].(uint8)
			pos++
		case 'h':
			binary.LittleEndian.PutUint16(buffer[pos:], args[i].(uint16))
			pos += 2
		case 'i':
			binary.LittleEndian.PutUint32(buffer[pos:], args[i].(uint32))
			pos += 4
		case 'q':
			binary.LittleEndian.PutUint64(buffer[pos:], args[i].(uint64))
			pos += 8
		}
	}

	return buffer
}

// Unpack decodes the buffer according to the format, see Pack. A string ends
// before the next zero byte or at the end of the buffer, bytes consume the
// rest of the buffer. It returns nil if the buffer is too short.
func Unpack(fmt string, buf []byte) []any {
	// prepare list
	args := make([]any, 0, len(fmt))

	// read arguments
	pos := 0
	for _, code := range fmt {
		// determine fixed size
		var size int
		switch code {
		case 'o':
			size = 1
		case 'h':
			size = 2
		case 'i':
			size = 4
		case 'q':
			size = 8
		}

		// check length
		if pos+size > len(buf) {
			return nil
		}

		switch code {
		case 's':
			end := bytes.IndexByte(buf[pos:], 0)
			if end < 0 {
				end = len(buf) - pos
			}
			args = append(args, string(buf[pos:pos+end]))
			pos += end
		case 'b':
			args = append(args, bytes.Clone(buf[pos:]))
			pos = len(buf)
		case 'o':
			args = append(args, buf[pos])
		case 'h':
			args = append(args, binary.LittleEndian.Uint16(buf[pos:]))
		case 'i':
			args = append(args, binary.LittleEndian.Uint32(buf[pos:]))
		case 'q':
			args = append(args, binary.LittleEndian.Uint64(buf[pos:]))
		default:
			panic("invalid format")
		}

		// advance
		pos += size
	}

	return args
}
