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

// Package codec encodes and decodes bridge messages.
//
// Two encodings share the same envelope semantics: Text is a JSON document
// and Binary is a protobuf wire envelope whose values are CBOR items. Both
// sides of a bridge must use the same encoding.
package codec

import (
	"github.com/tochemey/enginebridge/message"
)

// Codec converts messages to and from frames. Implementations are stateless
// and safe for concurrent use.
type Codec interface {
	// Encode serializes the message into a single frame payload
	Encode(msg *message.Message) ([]byte, error)
	// Decode parses a frame payload
	Decode(frame []byte) (*message.Message, error)
	// Name returns the encoding name
	Name() string
}

// Encoding selects a codec
type Encoding int

const (
	// TextEncoding is the JSON encoding, framed newline-delimited on streams
	TextEncoding Encoding = iota
	// BinaryEncoding is the protobuf wire encoding, framed with a length prefix on streams
	BinaryEncoding
)

// String returns the encoding name
func (e Encoding) String() string {
	switch e {
	case TextEncoding:
		return "text"
	case BinaryEncoding:
		return "binary"
	default:
		return "unknown"
	}
}

// New returns the codec for the given encoding, nil when the encoding is unknown.
func New(encoding Encoding) Codec {
	switch encoding {
	case TextEncoding:
		return NewText()
	case BinaryEncoding:
		return NewBinary()
	default:
		return nil
	}
}
