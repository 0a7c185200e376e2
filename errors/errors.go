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

package errors

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	// ErrTimeout is returned when no reply arrived before the call deadline.
	// The pending request has been evicted by the time the caller sees it.
	ErrTimeout = errors.New("request timed out")

	// ErrPeer indicates the peer executed the call and returned an error text.
	ErrPeer = errors.New("peer error")

	// ErrCorruptFrame is returned when a length prefix is inconsistent with the
	// buffer capacity or the stream state. It is fatal to the connection.
	ErrCorruptFrame = errors.New("corrupt frame")

	// ErrTransportDisconnected is returned when a read or a write on the transport failed.
	ErrTransportDisconnected = errors.New("transport disconnected")

	// ErrDuplicateID is returned when a request id is registered twice while outstanding.
	ErrDuplicateID = errors.New("duplicate request id")

	// ErrUnknownCallback indicates the peer invoked a callback that is not registered.
	ErrUnknownCallback = errors.New("unknown callback")

	// ErrMarshal is returned when a value cannot cross the boundary.
	ErrMarshal = errors.New("value cannot be marshalled")

	// ErrBridgeClosed is returned when an operation is attempted on a closed bridge.
	ErrBridgeClosed = errors.New("bridge is closed")

	// ErrInvalidMessage indicates a decoded message is malformed or unsupported.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrNoHandler is returned when an inbound request arrives and no handler is set.
	ErrNoHandler = errors.New("no handler registered for inbound requests")

	// ErrClassNotFound is returned by the object host for an unregistered class name.
	ErrClassNotFound = errors.New("class not found")

	// ErrInstanceNotFound is returned by the object host for an unknown instance id.
	ErrInstanceNotFound = errors.New("instance not found")

	// ErrFrameTooLarge is returned when a frame exceeds the transport capacity.
	ErrFrameTooLarge = errors.New("frame too large")

	// ErrTransportRequired is returned when a bridge is created without a transport.
	ErrTransportRequired = errors.New("transport is required")
)

// NewErrCorruptFrame formats an ErrCorruptFrame with the offending detail.
func NewErrCorruptFrame(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrCorruptFrame)
}

// NewErrTransportDisconnected wraps an I/O failure with ErrTransportDisconnected.
func NewErrTransportDisconnected(err error) error {
	return errors.Join(ErrTransportDisconnected, err)
}

// NewErrDuplicateID formats an ErrDuplicateID with the given id.
func NewErrDuplicateID(id uint64) error {
	return fmt.Errorf("id=(%d) %w", id, ErrDuplicateID)
}

// NewErrUnknownCallback formats an ErrUnknownCallback with the given callback id.
func NewErrUnknownCallback(callbackID string) error {
	return fmt.Errorf("callbackId=(%s) %w", callbackID, ErrUnknownCallback)
}

// NewErrMarshal wraps the underlying conversion failure with ErrMarshal.
func NewErrMarshal(err error) error {
	return errors.Join(ErrMarshal, err)
}

// NewErrInvalidMessage wraps a base error with ErrInvalidMessage for additional context.
func NewErrInvalidMessage(err error) error {
	return errors.Join(ErrInvalidMessage, err)
}

// NewErrClassNotFound formats an ErrClassNotFound with the given class name.
func NewErrClassNotFound(class string) error {
	return fmt.Errorf("class=(%s) %w", class, ErrClassNotFound)
}

// NewErrInstanceNotFound formats an ErrInstanceNotFound with the given instance id.
func NewErrInstanceNotFound(instanceID string) error {
	return fmt.Errorf("instanceId=(%s) %w", instanceID, ErrInstanceNotFound)
}

// TimeoutError is returned when a call did not get its reply in time.
// Request is the rendering of the outgoing message so the failure can be
// correlated with the peer's logs.
type TimeoutError struct {
	After   time.Duration
	Request string
}

var _ error = (*TimeoutError)(nil)

// NewTimeoutError creates an instance of TimeoutError
func NewTimeoutError(after time.Duration, request string) *TimeoutError {
	return &TimeoutError{After: after, Request: request}
}

// Error implements the standard error interface
func (e *TimeoutError) Error() string {
	seconds := strconv.FormatFloat(e.After.Seconds(), 'f', -1, 64)
	return "Operation timed out after " + seconds + "s, request data: " + e.Request
}

// Is reports whether target is ErrTimeout
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// PeerError carries the error text returned by the peer. The text is never parsed.
type PeerError struct {
	Message string
}

var _ error = (*PeerError)(nil)

// NewPeerError creates an instance of PeerError
func NewPeerError(message string) *PeerError {
	return &PeerError{Message: message}
}

// Error returns the peer's text verbatim
func (e *PeerError) Error() string {
	return e.Message
}

// Is reports whether target is ErrPeer
func (e *PeerError) Is(target error) bool {
	return target == ErrPeer
}

// PanicError defines the panic error
// wrapping the underlying error
type PanicError struct {
	err error
}

// enforce compilation error
var _ error = (*PanicError)(nil)

// NewPanicError creates an instance of PanicError from a recovered value
func NewPanicError(recovered any) *PanicError {
	if err, ok := recovered.(error); ok {
		return &PanicError{err: err}
	}
	return &PanicError{err: fmt.Errorf("%v", recovered)}
}

// Error implements the standard error interface
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.err)
}

// Unwrap returns the recovered error
func (e *PanicError) Unwrap() error {
	return e.err
}
