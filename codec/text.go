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

package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/tochemey/enginebridge/errors"
	"github.com/tochemey/enginebridge/message"
)

// bytesKey tags a base64 byte buffer, {"$bytes":"AQID"}, so it decodes back
// as []byte instead of a string
const bytesKey = "$bytes"

// textEnvelope is the JSON layout of a message.
//
//	{"id":1,"type":"DynamicProperty","instanceId":"n1","action":"text",
//	 "data":{"propertyAction":"set","params":["hello"]}}
type textEnvelope struct {
	ID         uint64          `json:"id"`
	Type       string          `json:"type"`
	Clazz      string          `json:"clazz,omitempty"`
	Action     string          `json:"action,omitempty"`
	InstanceID string          `json:"instanceId,omitempty"`
	Data       *textData       `json:"data,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
}

type textData struct {
	Params         []json.RawMessage `json:"params,omitempty"`
	InstanceID     string            `json:"instanceId,omitempty"`
	PropertyAction string            `json:"propertyAction,omitempty"`
	CallbackID     string            `json:"callbackId,omitempty"`
	Block          bool              `json:"block,omitempty"`
}

func (d *textData) empty() bool {
	return len(d.Params) == 0 && d.InstanceID == "" && d.PropertyAction == "" && d.CallbackID == "" && !d.Block
}

// Text is the JSON codec. Encoded frames never contain a newline, which makes
// them suitable for newline-delimited framing.
type Text struct{}

var _ Codec = Text{}

// NewText creates the JSON codec
func NewText() Text {
	return Text{}
}

// Name returns the encoding name
func (Text) Name() string {
	return TextEncoding.String()
}

// Encode serializes the message as a single-line JSON document
func (Text) Encode(msg *message.Message) ([]byte, error) {
	if msg == nil || !msg.Kind.Valid() {
		return nil, errors.NewErrInvalidMessage(fmt.Errorf("cannot encode %v", msg))
	}

	env := textEnvelope{
		ID:    msg.ID,
		Type:  msg.Kind.String(),
		Error: msg.Error,
	}

	data := new(textData)
	switch msg.Kind {
	case message.Constructor:
		env.Clazz = msg.Class
	case message.Static:
		env.Clazz = msg.Class
		env.Action = msg.Action
	case message.Dynamic:
		env.InstanceID = msg.InstanceID
		env.Action = msg.Action
	case message.DynamicProperty:
		env.InstanceID = msg.InstanceID
		env.Action = msg.Action
		data.PropertyAction = msg.Property.String()
	case message.EmitCallback:
		data.CallbackID = msg.CallbackID
		data.Block = msg.Block
	case message.CallbackReply:
		data.CallbackID = msg.CallbackID
	case message.Response:
		data.InstanceID = msg.InstanceID
	}

	params, err := encodeJSONValues(msg.Params)
	if err != nil {
		return nil, err
	}
	data.Params = params

	if msg.Kind.IsReply() && !msg.Failed() && msg.Result != nil {
		raw, err := json.Marshal(tagBytes(msg.Result))
		if err != nil {
			return nil, errors.NewErrMarshal(err)
		}
		env.Result = raw
	}

	if !data.empty() {
		env.Data = data
	}

	// json.Marshal escapes control characters inside strings, so the
	// document never contains a raw newline.
	out, err := json.Marshal(env)
	if err != nil {
		return nil, errors.NewErrMarshal(err)
	}
	return out, nil
}

// Decode parses a JSON document. Integral numbers decode as int64, other
// numbers as float64 and objects as map[string]any.
func (Text) Decode(frame []byte) (*message.Message, error) {
	var env textEnvelope
	if err := json.Unmarshal(bytes.TrimSpace(frame), &env); err != nil {
		return nil, errors.NewErrInvalidMessage(err)
	}

	kind := message.ParseKind(env.Type)
	if !kind.Valid() {
		return nil, errors.NewErrInvalidMessage(fmt.Errorf("unknown message type %q", env.Type))
	}

	msg := &message.Message{
		ID:         env.ID,
		Kind:       kind,
		Class:      env.Clazz,
		InstanceID: env.InstanceID,
		Action:     env.Action,
		Error:      env.Error,
	}

	if env.Data != nil {
		params, err := decodeJSONValues(env.Data.Params)
		if err != nil {
			return nil, err
		}
		msg.Params = params
		msg.CallbackID = env.Data.CallbackID
		msg.Block = env.Data.Block
		if kind == message.Response && env.Data.InstanceID != "" {
			msg.InstanceID = env.Data.InstanceID
		}
		if kind == message.DynamicProperty {
			direction, ok := message.ParseDirection(env.Data.PropertyAction)
			if !ok {
				return nil, errors.NewErrInvalidMessage(fmt.Errorf("unknown property action %q", env.Data.PropertyAction))
			}
			msg.Property = direction
		}
	}

	if len(env.Result) > 0 {
		result, err := decodeJSONValue(env.Result)
		if err != nil {
			return nil, err
		}
		msg.Result = result
	}

	return msg, nil
}

func encodeJSONValues(values []any) ([]json.RawMessage, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make([]json.RawMessage, len(values))
	for i, v := range values {
		raw, err := json.Marshal(tagBytes(v))
		if err != nil {
			return nil, errors.NewErrMarshal(fmt.Errorf("param %d: %w", i, err))
		}
		out[i] = raw
	}
	return out, nil
}

func decodeJSONValues(raws []json.RawMessage) ([]any, error) {
	if len(raws) == 0 {
		return nil, nil
	}
	out := make([]any, len(raws))
	for i, raw := range raws {
		v, err := decodeJSONValue(raw)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func decodeJSONValue(raw json.RawMessage) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var v any
	if err := decoder.Decode(&v); err != nil {
		return nil, errors.NewErrInvalidMessage(err)
	}
	return normalizeNumbers(v), nil
}

func normalizeNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case []any:
		for i := range x {
			x[i] = normalizeNumbers(x[i])
		}
		return x
	case map[string]any:
		if buf, ok := untagBytes(x); ok {
			return buf
		}
		for k, val := range x {
			x[k] = normalizeNumbers(val)
		}
		return x
	default:
		return v
	}
}

// tagBytes copies v with every byte buffer replaced by its tagged form
func tagBytes(v any) any {
	switch x := v.(type) {
	case []byte:
		return map[string]string{bytesKey: base64.StdEncoding.EncodeToString(x)}
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = tagBytes(x[i])
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = tagBytes(val)
		}
		return out
	default:
		return v
	}
}

func untagBytes(m map[string]any) ([]byte, bool) {
	if len(m) != 1 {
		return nil, false
	}
	encoded, ok := m[bytesKey].(string)
	if !ok {
		return nil, false
	}
	buf, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, false
	}
	return buf, true
}
