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

package message

import (
	"errors"
	"fmt"
	"strings"
)

// Message is the unit of exchange between the two sides of a bridge.
//
// ID correlates a request with its reply. An ID of zero marks a message for
// which the sender does not expect any reply.
type Message struct {
	ID         uint64
	Kind       Kind
	Class      string
	InstanceID string
	Action     string
	Property   PropertyDirection
	Params     []any
	Result     any
	Error      string
	CallbackID string
	Block      bool
}

// NewResponse creates a successful Response to the request id
func NewResponse(id uint64, result any) *Message {
	return &Message{ID: id, Kind: Response, Result: result}
}

// NewConstructed creates the Response to a Constructor request
func NewConstructed(id uint64, instanceID string) *Message {
	return &Message{ID: id, Kind: Response, InstanceID: instanceID}
}

// NewErrorResponse creates a failed Response to the request id
func NewErrorResponse(id uint64, err error) *Message {
	return &Message{ID: id, Kind: Response, Error: errorText(err)}
}

// NewCallbackReply creates the reply to an EmitCallback. A non-nil err marks the reply failed.
func NewCallbackReply(id uint64, callbackID string, result any, err error) *Message {
	reply := &Message{ID: id, Kind: CallbackReply, CallbackID: callbackID}
	if err != nil {
		reply.Error = errorText(err)
		return reply
	}
	reply.Result = result
	return reply
}

// Failed reports whether the message carries a peer error
func (m *Message) Failed() bool {
	return m.Error != ""
}

// ExpectsReply reports whether the sender waits for a reply to m
func (m *Message) ExpectsReply() bool {
	if m.ID == 0 || m.Kind.IsReply() {
		return false
	}
	if m.Kind == EmitCallback {
		return m.Block
	}
	return true
}

// Validate checks that the fields required by the message kind are set
func (m *Message) Validate() error {
	switch m.Kind {
	case Constructor:
		if m.Class == "" {
			return errors.New("constructor requires a class name")
		}
	case Static:
		if m.Class == "" || m.Action == "" {
			return errors.New("static call requires a class name and an action")
		}
	case Dynamic, DynamicProperty:
		if m.InstanceID == "" || m.Action == "" {
			return fmt.Errorf("%s requires an instance id and an action", m.Kind)
		}
		if m.Kind == DynamicProperty && m.Property == Set && len(m.Params) != 1 {
			return errors.New("property set requires exactly one value")
		}
	case EmitCallback:
		if m.CallbackID == "" {
			return errors.New("emit callback requires a callback id")
		}
	case Response, CallbackReply:
		if m.ID == 0 {
			return fmt.Errorf("%s requires an id", m.Kind)
		}
	default:
		return fmt.Errorf("unknown message kind %d", m.Kind)
	}
	return nil
}

// String renders the message for diagnostics
func (m *Message) String() string {
	var sb strings.Builder
	sb.WriteString(m.Kind.String())
	sb.WriteString("{id=")
	fmt.Fprintf(&sb, "%d", m.ID)
	if m.Class != "" {
		sb.WriteString(" clazz=")
		sb.WriteString(m.Class)
	}
	if m.InstanceID != "" {
		sb.WriteString(" instanceId=")
		sb.WriteString(m.InstanceID)
	}
	if m.Action != "" {
		sb.WriteString(" action=")
		sb.WriteString(m.Action)
	}
	if m.Kind == DynamicProperty {
		sb.WriteString(" propertyAction=")
		sb.WriteString(m.Property.String())
	}
	if m.CallbackID != "" {
		sb.WriteString(" callbackId=")
		sb.WriteString(m.CallbackID)
	}
	if m.Kind == EmitCallback {
		fmt.Fprintf(&sb, " block=%t", m.Block)
	}
	if len(m.Params) > 0 {
		fmt.Fprintf(&sb, " params=%v", m.Params)
	}
	if m.Kind.IsReply() {
		if m.Failed() {
			fmt.Fprintf(&sb, " error=%q", m.Error)
		} else {
			fmt.Fprintf(&sb, " result=%v", m.Result)
		}
	}
	sb.WriteByte('}')
	return sb.String()
}

func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	if text := err.Error(); text != "" {
		return text
	}
	return "unknown error"
}
