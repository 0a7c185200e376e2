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

//go:build linux || darwin || freebsd

package shm

import (
	stderrors "errors"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"

	"github.com/tochemey/enginebridge/errors"
)

// fifoSemaphore is a counting semaphore shared across processes through a
// named pipe: one byte in the pipe is one unit of count.
type fifoSemaphore struct {
	file *os.File
	path string
	own  bool
}

var _ Semaphore = (*fifoSemaphore)(nil)

// openFifoSemaphore opens the named pipe at path, creating it when create is set.
// The pipe is opened read-write so opening never waits for the peer.
func openFifoSemaphore(path string, create bool) (*fifoSemaphore, error) {
	if create {
		if err := unix.Mkfifo(path, 0o600); err != nil && !stderrors.Is(err, fs.ErrExist) {
			return nil, err
		}
	}

	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &fifoSemaphore{file: file, path: path, own: create}, nil
}

var token = []byte{1}

func (s *fifoSemaphore) Post() error {
	if _, err := s.file.Write(token); err != nil {
		return errors.NewErrTransportDisconnected(err)
	}
	return nil
}

func (s *fifoSemaphore) Wait() error {
	var buf [1]byte
	if _, err := s.file.Read(buf[:]); err != nil {
		return errors.NewErrTransportDisconnected(err)
	}
	return nil
}

func (s *fifoSemaphore) Close() error {
	err := s.file.Close()
	if s.own {
		if rerr := os.Remove(s.path); rerr != nil && !stderrors.Is(rerr, fs.ErrNotExist) && err == nil {
			err = rerr
		}
	}
	return err
}
