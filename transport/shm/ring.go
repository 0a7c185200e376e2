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

package shm

import (
	"encoding/binary"
	"sync/atomic"
	"unsafe"

	"github.com/tochemey/enginebridge/errors"
)

const (
	// headerSize is the size of the region header: capacity, readOffset and
	// writeOffset as little-endian u32, padded to 16 bytes.
	headerSize = 16
	lengthSize = 4
	// slack keeps a future length prefix from ever filling the ring, so that
	// readOffset == writeOffset always means empty.
	slack = 2 * lengthSize

	capacityOffset = 0
	readOffset     = 4
	writeOffset    = 8
)

// ring is a single-producer single-consumer circular buffer laid over a
// shared region. The producer only stores writeOffset and the consumer only
// stores readOffset, each after the data bytes are fully written or consumed.
type ring struct {
	capacity uint32
	readPos  *uint32
	writePos *uint32
	data     []byte
}

// initRing formats region as an empty ring
func initRing(region []byte) (*ring, error) {
	if len(region) <= headerSize+slack {
		return nil, errors.NewErrCorruptFrame("region of %d bytes is too small", len(region))
	}
	capacity := uint32(len(region) - headerSize)
	r := overlay(region, capacity)
	atomic.StoreUint32(r.readPos, 0)
	atomic.StoreUint32(r.writePos, 0)
	atomic.StoreUint32(capacityWord(region), capacity)
	return r, nil
}

// attachRing reads the header of an already formatted region
func attachRing(region []byte) (*ring, error) {
	if len(region) <= headerSize+slack {
		return nil, errors.NewErrCorruptFrame("region of %d bytes is too small", len(region))
	}
	capacity := atomic.LoadUint32(capacityWord(region))
	if capacity != uint32(len(region)-headerSize) {
		return nil, errors.NewErrCorruptFrame("header capacity %d does not match region of %d bytes", capacity, len(region))
	}
	r := overlay(region, capacity)
	if atomic.LoadUint32(r.readPos) >= capacity || atomic.LoadUint32(r.writePos) >= capacity {
		return nil, errors.NewErrCorruptFrame("header offsets outside capacity %d", capacity)
	}
	return r, nil
}

func overlay(region []byte, capacity uint32) *ring {
	return &ring{
		capacity: capacity,
		readPos:  (*uint32)(unsafe.Pointer(&region[readOffset])),
		writePos: (*uint32)(unsafe.Pointer(&region[writeOffset])),
		data:     region[headerSize : headerSize+int(capacity)],
	}
}

func capacityWord(region []byte) *uint32 {
	return (*uint32)(unsafe.Pointer(&region[capacityOffset]))
}

// maxMessage is the largest payload the ring accepts
func (r *ring) maxMessage() int {
	return int(r.capacity) - slack
}

// used returns the number of unread bytes
func (r *ring) used() uint32 {
	w := atomic.LoadUint32(r.writePos)
	rd := atomic.LoadUint32(r.readPos)
	if w >= rd {
		return w - rd
	}
	return r.capacity - rd + w
}

// tryWrite appends one length-prefixed message. It returns false, leaving the
// ring untouched, when the free space does not cover the message plus slack.
func (r *ring) tryWrite(payload []byte) bool {
	free := r.capacity - r.used()
	if uint64(len(payload))+slack > uint64(free) {
		return false
	}

	var prefix [lengthSize]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(len(payload)))

	c := cursor{data: r.data, pos: atomic.LoadUint32(r.writePos)}
	c.put(prefix[:])
	c.put(payload)

	// publish only once every byte is in place
	atomic.StoreUint32(r.writePos, c.pos)
	return true
}

// read consumes one message. It returns nil when the ring is empty and
// ErrCorruptFrame when the length prefix is inconsistent with the ring.
func (r *ring) read() ([]byte, error) {
	used := r.used()
	if used == 0 {
		return nil, nil
	}
	if used < lengthSize {
		return nil, errors.NewErrCorruptFrame("%d unread bytes cannot hold a length prefix", used)
	}

	c := cursor{data: r.data, pos: atomic.LoadUint32(r.readPos)}
	var prefix [lengthSize]byte
	c.get(prefix[:])

	length := binary.LittleEndian.Uint32(prefix[:])
	if length == 0 || int(length) > r.maxMessage() || length > used-lengthSize {
		return nil, errors.NewErrCorruptFrame("length prefix %d outside (0, %d]", length, min(r.maxMessage(), int(used-lengthSize)))
	}

	payload := make([]byte, length)
	c.get(payload)

	atomic.StoreUint32(r.readPos, c.pos)
	return payload, nil
}

// cursor walks the data area, splitting any access that straddles the end
// into two bounded copies.
type cursor struct {
	data []byte
	pos  uint32
}

func (c *cursor) put(p []byte) {
	n := copy(c.data[c.pos:], p)
	if n < len(p) {
		copy(c.data, p[n:])
	}
	c.advance(len(p))
}

func (c *cursor) get(p []byte) {
	n := copy(p, c.data[c.pos:])
	if n < len(p) {
		copy(p[n:], c.data)
	}
	c.advance(len(p))
}

func (c *cursor) advance(n int) {
	c.pos = uint32((uint64(c.pos) + uint64(n)) % uint64(len(c.data)))
}
