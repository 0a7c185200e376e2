/*
 * MIT License
 *
 * Copyright (c) 2022-2025 Arsene Tochemey Gandote
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package stream

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"

	"github.com/tochemey/enginebridge/errors"
)

// Framing splits the byte stream into frames. Both peers must use the same framing.
type Framing int

const (
	// LengthPrefixed frames carry a 4-byte big-endian payload length
	LengthPrefixed Framing = iota
	// NewlineDelimited frames are text terminated by '\n' and never contain one
	NewlineDelimited
)

const (
	lengthPrefixSize = 4
	// DefaultMaxFrameSize bounds a single frame
	DefaultMaxFrameSize = 16 << 20
)

// String returns the framing name
func (f Framing) String() string {
	switch f {
	case LengthPrefixed:
		return "length-prefixed"
	case NewlineDelimited:
		return "newline"
	default:
		return "unknown"
	}
}

// appendFrame appends the framed payload to dst
func (f Framing) appendFrame(dst *bytes.Buffer, payload []byte, maxFrameSize int) error {
	if len(payload) == 0 {
		return errors.NewErrCorruptFrame("empty frame")
	}
	if len(payload) > maxFrameSize {
		return errors.NewErrCorruptFrame("frame of %d bytes exceeds %d", len(payload), maxFrameSize)
	}

	switch f {
	case NewlineDelimited:
		if bytes.IndexByte(payload, '\n') >= 0 {
			return errors.NewErrCorruptFrame("frame contains a newline")
		}
		dst.Write(payload)
		dst.WriteByte('\n')
	default:
		var header [lengthPrefixSize]byte
		binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
		dst.Write(header[:])
		dst.Write(payload)
	}
	return nil
}

// readFrame blocks until one full frame is buffered. The reader accumulates
// partial reads and keeps any bytes of the following frames.
func (f Framing) readFrame(reader *bufio.Reader, maxFrameSize int) ([]byte, error) {
	switch f {
	case NewlineDelimited:
		return readLine(reader, maxFrameSize)
	default:
		return readLengthPrefixed(reader, maxFrameSize)
	}
}

func readLengthPrefixed(reader *bufio.Reader, maxFrameSize int) ([]byte, error) {
	var header [lengthPrefixSize]byte
	if _, err := io.ReadFull(reader, header[:]); err != nil {
		return nil, err
	}

	size := binary.BigEndian.Uint32(header[:])
	if size == 0 || uint64(size) > uint64(maxFrameSize) {
		return nil, errors.NewErrCorruptFrame("length prefix %d outside (0, %d]", size, maxFrameSize)
	}

	frame := make([]byte, size)
	if _, err := io.ReadFull(reader, frame); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return frame, nil
}

func readLine(reader *bufio.Reader, maxFrameSize int) ([]byte, error) {
	var frame []byte
	for {
		chunk, err := reader.ReadSlice('\n')
		if len(frame)+len(chunk) > maxFrameSize+1 {
			return nil, errors.NewErrCorruptFrame("frame exceeds %d bytes", maxFrameSize)
		}
		frame = append(frame, chunk...)

		switch err {
		case nil:
			frame = frame[:len(frame)-1]
			if len(frame) == 0 {
				return nil, errors.NewErrCorruptFrame("empty frame")
			}
			return frame, nil
		case bufio.ErrBufferFull:
			continue
		default:
			if err == io.EOF && len(frame) > 0 {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
}
