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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/enginebridge/errors"
	"github.com/tochemey/enginebridge/message"
)

func sampleMessages() []*message.Message {
	return []*message.Message{
		{ID: 1, Kind: message.Constructor, Class: "Node", Params: []any{"div", int64(3)}},
		{ID: 2, Kind: message.Static, Class: "Math", Action: "max", Params: []any{int64(1), 2.5}},
		{ID: 3, Kind: message.Dynamic, InstanceID: "n1", Action: "setText", Params: []any{"hello"}},
		{ID: 4, Kind: message.DynamicProperty, InstanceID: "n1", Action: "text", Property: message.Get},
		{ID: 5, Kind: message.DynamicProperty, InstanceID: "n1", Action: "text", Property: message.Set, Params: []any{"bye"}},
		{ID: 6, Kind: message.EmitCallback, CallbackID: "c1", Block: true, Params: []any{int64(42)}},
		{ID: 7, Kind: message.EmitCallback, CallbackID: "c2", Params: []any{map[string]any{"x": int64(1), "y": []any{true, nil}}}},
		{ID: 6, Kind: message.CallbackReply, CallbackID: "c1", Result: int64(84)},
		{ID: 8, Kind: message.CallbackReply, CallbackID: "c1", Error: "callback failed"},
		{ID: 1, Kind: message.Response, InstanceID: "3f2a"},
		{ID: 3, Kind: message.Response},
		{ID: 2, Kind: message.Response, Result: 2.5},
		{ID: 9, Kind: message.Response, Result: map[string]any{"w": int64(10), "tags": []any{"a", "b"}}},
		{ID: 10, Kind: message.Response, Error: "TypeError: undefined is not a function"},
		{ID: 0, Kind: message.Dynamic, InstanceID: "n1", Action: "flush"},
		{ID: 1<<53 + 1, Kind: message.Dynamic, InstanceID: "n2", Action: "blur"},
		{ID: 11, Kind: message.Dynamic, InstanceID: "n3", Action: "write", Params: []any{[]byte{1, 2, 3}, map[string]any{"chunk": []byte("abc"), "list": []any{[]byte{0xff}}}}},
		{ID: 11, Kind: message.Response, Result: []byte{0, 10, 255}},
	}
}

func TestCodecs(t *testing.T) {
	for _, c := range []Codec{NewText(), NewBinary()} {
		t.Run(c.Name(), func(t *testing.T) {
			for _, msg := range sampleMessages() {
				frame, err := c.Encode(msg)
				require.NoError(t, err)
				require.NotEmpty(t, frame)

				actual, err := c.Decode(frame)
				require.NoError(t, err, msg.String())
				assert.Equal(t, msg, actual, msg.String())
			}
		})
	}
}

func TestText(t *testing.T) {
	codec := NewText()
	t.Run("With wire layout", func(t *testing.T) {
		frame, err := codec.Encode(&message.Message{
			ID: 5, Kind: message.DynamicProperty, InstanceID: "n1", Action: "text",
			Property: message.Set, Params: []any{"a\nb"},
		})
		require.NoError(t, err)
		assert.False(t, bytes.ContainsRune(frame, '\n'))
		assert.JSONEq(t,
			`{"id":5,"type":"DynamicProperty","instanceId":"n1","action":"text","data":{"params":["a\nb"],"propertyAction":"set"}}`,
			string(frame))
	})
	t.Run("With tagged byte buffers", func(t *testing.T) {
		frame, err := codec.Encode(&message.Message{ID: 2, Kind: message.Response, Result: []byte{1, 2, 3}})
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":2,"type":"Response","result":{"$bytes":"AQID"}}`, string(frame))

		msg, err := codec.Decode([]byte(`{"id":2,"type":"Response","result":{"$bytes":"not base64!"}}`))
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"$bytes": "not base64!"}, msg.Result)
	})
	t.Run("With constructor response instance id in data", func(t *testing.T) {
		msg, err := codec.Decode([]byte(`{"id":1,"type":"Response","data":{"instanceId":"n9"}}`))
		require.NoError(t, err)
		assert.Equal(t, "n9", msg.InstanceID)
	})
	t.Run("With trailing newline", func(t *testing.T) {
		msg, err := codec.Decode([]byte("{\"id\":3,\"type\":\"Response\",\"result\":null}\n"))
		require.NoError(t, err)
		assert.Nil(t, msg.Result)
		assert.EqualValues(t, 3, msg.ID)
	})
	t.Run("With invalid documents", func(t *testing.T) {
		_, err := codec.Decode([]byte(`{"id":1,"type":"Teleport"}`))
		assert.ErrorIs(t, err, errors.ErrInvalidMessage)
		_, err = codec.Decode([]byte(`not json`))
		assert.ErrorIs(t, err, errors.ErrInvalidMessage)
		_, err = codec.Decode([]byte(`{"id":1,"type":"DynamicProperty","data":{"propertyAction":"delete"}}`))
		assert.ErrorIs(t, err, errors.ErrInvalidMessage)
	})
	t.Run("With unsupported values", func(t *testing.T) {
		_, err := codec.Encode(&message.Message{ID: 1, Kind: message.Dynamic, InstanceID: "n", Action: "a", Params: []any{make(chan int)}})
		assert.ErrorIs(t, err, errors.ErrMarshal)
		_, err = codec.Encode(&message.Message{ID: 1})
		assert.ErrorIs(t, err, errors.ErrInvalidMessage)
	})
}

func TestBinary(t *testing.T) {
	codec := NewBinary()
	t.Run("With byte buffers", func(t *testing.T) {
		msg := &message.Message{ID: 4, Kind: message.Response, Result: []byte{0, 1, 2}}
		frame, err := codec.Encode(msg)
		require.NoError(t, err)
		actual, err := codec.Decode(frame)
		require.NoError(t, err)
		assert.Equal(t, []byte{0, 1, 2}, actual.Result)
	})
	t.Run("With truncated frame", func(t *testing.T) {
		frame, err := codec.Encode(&message.Message{ID: 3, Kind: message.Dynamic, InstanceID: "n1", Action: "setText", Params: []any{"hello"}})
		require.NoError(t, err)
		_, err = codec.Decode(frame[:len(frame)-2])
		assert.ErrorIs(t, err, errors.ErrInvalidMessage)
	})
	t.Run("With unknown kind", func(t *testing.T) {
		_, err := codec.Decode([]byte{0x10, 0x63})
		assert.ErrorIs(t, err, errors.ErrInvalidMessage)
	})
	t.Run("With mismatched payload", func(t *testing.T) {
		frame, err := codec.Encode(&message.Message{ID: 3, Kind: message.Response})
		require.NoError(t, err)
		// rewrite kind varint from Response to Dynamic
		frame[3] = byte(message.Dynamic)
		_, err = codec.Decode(frame)
		assert.ErrorIs(t, err, errors.ErrInvalidMessage)
	})
	t.Run("With unsupported values", func(t *testing.T) {
		_, err := codec.Encode(&message.Message{ID: 1, Kind: message.Static, Class: "c", Action: "a", Params: []any{func() {}}})
		assert.ErrorIs(t, err, errors.ErrMarshal)
	})
}

func TestNew(t *testing.T) {
	assert.Equal(t, "text", New(TextEncoding).Name())
	assert.Equal(t, "binary", New(BinaryEncoding).Name())
	assert.Nil(t, New(Encoding(9)))
	assert.Equal(t, "unknown", Encoding(9).String())
}
