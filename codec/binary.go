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
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/tochemey/enginebridge/errors"
	"github.com/tochemey/enginebridge/message"
)

// envelope fields
const (
	fieldID                  protowire.Number = 1
	fieldKind                protowire.Number = 2
	fieldConstructorData     protowire.Number = 10
	fieldStaticData          protowire.Number = 11
	fieldDynamicData         protowire.Number = 12
	fieldDynamicPropertyData protowire.Number = 13
	fieldCallbackData        protowire.Number = 14
	fieldResponseData        protowire.Number = 15
)

// payload fields. ConstructorData{clazz,params}, StaticData{clazz,action,params},
// DynamicData{instanceId,action,params}, DynamicPropertyData{instanceId,action,
// propertyAction,params}, CallbackData{callbackId,args,block} and
// ResponseData{returnValue|instanceId|error,callbackId} share these numbers.
const (
	fieldTarget         protowire.Number = 1
	fieldAction         protowire.Number = 2
	fieldParams         protowire.Number = 3
	fieldPropertyAction protowire.Number = 4
	fieldBlock          protowire.Number = 5

	fieldReturnValue        protowire.Number = 1
	fieldResponseInstanceID protowire.Number = 2
	fieldError              protowire.Number = 3
	fieldReplyCallbackID    protowire.Number = 4
)

var (
	cborEncOpts = cbor.EncOptions{
		Sort:        cbor.SortNone,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeUnixDynamic,
	}
	cborDecOpts = cbor.DecOptions{
		MaxNestedLevels: 64,
		IndefLength:     cbor.IndefLengthForbidden,
		UTF8:            cbor.UTF8DecodeInvalid,
		DefaultMapType:  reflect.TypeOf(map[string]any(nil)),
		IntDec:          cbor.IntDecConvertSigned,
	}
)

// Binary is the protobuf wire codec. Each parameter and return value is an
// embedded CBOR item so values keep their structure without a schema.
type Binary struct {
	encMode cbor.EncMode
	decMode cbor.DecMode
}

var _ Codec = (*Binary)(nil)

// NewBinary creates the binary codec
func NewBinary() *Binary {
	encMode, _ := cborEncOpts.EncMode()
	decMode, _ := cborDecOpts.DecMode()
	return &Binary{encMode: encMode, decMode: decMode}
}

// Name returns the encoding name
func (*Binary) Name() string {
	return BinaryEncoding.String()
}

// Encode serializes the message into a protobuf wire envelope
func (b *Binary) Encode(msg *message.Message) ([]byte, error) {
	if msg == nil || !msg.Kind.Valid() {
		return nil, errors.NewErrInvalidMessage(fmt.Errorf("cannot encode %v", msg))
	}

	var payload []byte
	var field protowire.Number
	var err error

	switch msg.Kind {
	case message.Constructor:
		field = fieldConstructorData
		payload = appendString(payload, fieldTarget, msg.Class)
		payload, err = b.appendValues(payload, fieldParams, msg.Params)
	case message.Static:
		field = fieldStaticData
		payload = appendString(payload, fieldTarget, msg.Class)
		payload = appendString(payload, fieldAction, msg.Action)
		payload, err = b.appendValues(payload, fieldParams, msg.Params)
	case message.Dynamic:
		field = fieldDynamicData
		payload = appendString(payload, fieldTarget, msg.InstanceID)
		payload = appendString(payload, fieldAction, msg.Action)
		payload, err = b.appendValues(payload, fieldParams, msg.Params)
	case message.DynamicProperty:
		field = fieldDynamicPropertyData
		payload = appendString(payload, fieldTarget, msg.InstanceID)
		payload = appendString(payload, fieldAction, msg.Action)
		payload = protowire.AppendTag(payload, fieldPropertyAction, protowire.VarintType)
		payload = protowire.AppendVarint(payload, uint64(msg.Property))
		payload, err = b.appendValues(payload, fieldParams, msg.Params)
	case message.EmitCallback:
		field = fieldCallbackData
		payload = appendString(payload, fieldTarget, msg.CallbackID)
		payload, err = b.appendValues(payload, fieldParams, msg.Params)
		if msg.Block {
			payload = protowire.AppendTag(payload, fieldBlock, protowire.VarintType)
			payload = protowire.AppendVarint(payload, protowire.EncodeBool(true))
		}
	case message.Response, message.CallbackReply:
		field = fieldResponseData
		payload, err = b.appendResponse(payload, msg)
	}
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(payload)+24)
	if msg.ID != 0 {
		out = protowire.AppendTag(out, fieldID, protowire.VarintType)
		out = protowire.AppendVarint(out, msg.ID)
	}
	out = protowire.AppendTag(out, fieldKind, protowire.VarintType)
	out = protowire.AppendVarint(out, uint64(msg.Kind))
	out = protowire.AppendTag(out, field, protowire.BytesType)
	out = protowire.AppendBytes(out, payload)
	return out, nil
}

// Decode parses a protobuf wire envelope. Unknown fields are skipped.
func (b *Binary) Decode(frame []byte) (*message.Message, error) {
	msg := new(message.Message)
	var payload []byte
	var payloadField protowire.Number

	for len(frame) > 0 {
		num, typ, n := protowire.ConsumeTag(frame)
		if n < 0 {
			return nil, errors.NewErrInvalidMessage(protowire.ParseError(n))
		}
		frame = frame[n:]

		switch {
		case num == fieldID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(frame)
			if n < 0 {
				return nil, errors.NewErrInvalidMessage(protowire.ParseError(n))
			}
			msg.ID = v
			frame = frame[n:]
		case num == fieldKind && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(frame)
			if n < 0 {
				return nil, errors.NewErrInvalidMessage(protowire.ParseError(n))
			}
			msg.Kind = message.Kind(v)
			frame = frame[n:]
		case num >= fieldConstructorData && num <= fieldResponseData && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(frame)
			if n < 0 {
				return nil, errors.NewErrInvalidMessage(protowire.ParseError(n))
			}
			payload, payloadField = v, num
			frame = frame[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, frame)
			if n < 0 {
				return nil, errors.NewErrInvalidMessage(protowire.ParseError(n))
			}
			frame = frame[n:]
		}
	}

	if !msg.Kind.Valid() {
		return nil, errors.NewErrInvalidMessage(fmt.Errorf("unknown message kind %d", msg.Kind))
	}

	if want := payloadFieldOf(msg.Kind); payloadField != want {
		return nil, errors.NewErrInvalidMessage(fmt.Errorf("%s carries payload field %d", msg.Kind, payloadField))
	}

	if err := b.decodePayload(msg, payload); err != nil {
		return nil, err
	}
	return msg, nil
}

func (b *Binary) decodePayload(msg *message.Message, payload []byte) error {
	response := msg.Kind.IsReply()
	for len(payload) > 0 {
		num, typ, n := protowire.ConsumeTag(payload)
		if n < 0 {
			return errors.NewErrInvalidMessage(protowire.ParseError(n))
		}
		payload = payload[n:]

		if typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(payload)
			if n < 0 {
				return errors.NewErrInvalidMessage(protowire.ParseError(n))
			}
			payload = payload[n:]
			switch {
			case !response && num == fieldPropertyAction:
				msg.Property = message.PropertyDirection(v)
			case !response && num == fieldBlock:
				msg.Block = protowire.DecodeBool(v)
			}
			continue
		}

		if typ != protowire.BytesType {
			n := protowire.ConsumeFieldValue(num, typ, payload)
			if n < 0 {
				return errors.NewErrInvalidMessage(protowire.ParseError(n))
			}
			payload = payload[n:]
			continue
		}

		v, n := protowire.ConsumeBytes(payload)
		if n < 0 {
			return errors.NewErrInvalidMessage(protowire.ParseError(n))
		}
		payload = payload[n:]

		if response {
			switch num {
			case fieldReturnValue:
				value, err := b.decodeValue(v)
				if err != nil {
					return err
				}
				msg.Result = value
			case fieldResponseInstanceID:
				msg.InstanceID = string(v)
			case fieldError:
				msg.Error = string(v)
			case fieldReplyCallbackID:
				msg.CallbackID = string(v)
			}
			continue
		}

		switch num {
		case fieldTarget:
			switch msg.Kind {
			case message.Constructor, message.Static:
				msg.Class = string(v)
			case message.EmitCallback:
				msg.CallbackID = string(v)
			default:
				msg.InstanceID = string(v)
			}
		case fieldAction:
			msg.Action = string(v)
		case fieldParams:
			value, err := b.decodeValue(v)
			if err != nil {
				return err
			}
			msg.Params = append(msg.Params, value)
		}
	}
	return nil
}

func (b *Binary) appendResponse(payload []byte, msg *message.Message) ([]byte, error) {
	switch {
	case msg.Failed():
		payload = appendString(payload, fieldError, msg.Error)
	case msg.InstanceID != "":
		payload = appendString(payload, fieldResponseInstanceID, msg.InstanceID)
	case msg.Result != nil:
		raw, err := b.encMode.Marshal(msg.Result)
		if err != nil {
			return nil, errors.NewErrMarshal(err)
		}
		payload = protowire.AppendTag(payload, fieldReturnValue, protowire.BytesType)
		payload = protowire.AppendBytes(payload, raw)
	}
	return appendString(payload, fieldReplyCallbackID, msg.CallbackID), nil
}

func (b *Binary) appendValues(payload []byte, field protowire.Number, values []any) ([]byte, error) {
	for i, v := range values {
		raw, err := b.encMode.Marshal(v)
		if err != nil {
			return nil, errors.NewErrMarshal(fmt.Errorf("param %d: %w", i, err))
		}
		payload = protowire.AppendTag(payload, field, protowire.BytesType)
		payload = protowire.AppendBytes(payload, raw)
	}
	return payload, nil
}

func (b *Binary) decodeValue(raw []byte) (any, error) {
	var v any
	if err := b.decMode.Unmarshal(raw, &v); err != nil {
		return nil, errors.NewErrInvalidMessage(err)
	}
	return v, nil
}

func appendString(payload []byte, field protowire.Number, value string) []byte {
	if value == "" {
		return payload
	}
	payload = protowire.AppendTag(payload, field, protowire.BytesType)
	return protowire.AppendString(payload, value)
}

func payloadFieldOf(kind message.Kind) protowire.Number {
	switch kind {
	case message.Constructor:
		return fieldConstructorData
	case message.Static:
		return fieldStaticData
	case message.Dynamic:
		return fieldDynamicData
	case message.DynamicProperty:
		return fieldDynamicPropertyData
	case message.EmitCallback:
		return fieldCallbackData
	default:
		return fieldResponseData
	}
}
