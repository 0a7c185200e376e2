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

// Kind determines which fields of a Message are populated.
type Kind uint8

const (
	// KindUnknown is the zero value and never valid on the wire.
	KindUnknown Kind = iota
	// Constructor creates a remote instance of Class and returns its instance id.
	Constructor
	// Static invokes Action on Class.
	Static
	// Dynamic invokes Action on the instance identified by InstanceID.
	Dynamic
	// DynamicProperty reads or writes the property Action of InstanceID.
	DynamicProperty
	// EmitCallback invokes a callback previously registered by the receiving side.
	EmitCallback
	// CallbackReply carries the result of a blocking EmitCallback.
	CallbackReply
	// Response carries the result of Constructor, Static, Dynamic or DynamicProperty.
	Response
)

var kindNames = [...]string{
	KindUnknown:     "Unknown",
	Constructor:     "Constructor",
	Static:          "Static",
	Dynamic:         "Dynamic",
	DynamicProperty: "DynamicProperty",
	EmitCallback:    "EmitCallback",
	CallbackReply:   "CallbackReply",
	Response:        "Response",
}

// String returns the wire name of the kind
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return kindNames[KindUnknown]
}

// Valid reports whether k is one of the defined kinds
func (k Kind) Valid() bool {
	return k > KindUnknown && k <= Response
}

// IsReply reports whether k resolves a pending request on the receiving side
func (k Kind) IsReply() bool {
	return k == Response || k == CallbackReply
}

// ParseKind returns the Kind for its wire name, KindUnknown when the name is not defined.
func ParseKind(name string) Kind {
	for i, n := range kindNames {
		if n == name {
			return Kind(i)
		}
	}
	return KindUnknown
}

// PropertyDirection selects between reading and writing a property.
type PropertyDirection uint8

const (
	// Get reads the property
	Get PropertyDirection = iota
	// Set writes the property; the value is the single parameter
	Set
)

// String returns the wire name of the direction
func (d PropertyDirection) String() string {
	if d == Set {
		return "set"
	}
	return "get"
}

// ParseDirection returns the direction for its wire name.
func ParseDirection(name string) (PropertyDirection, bool) {
	switch name {
	case "get":
		return Get, true
	case "set":
		return Set, true
	default:
		return Get, false
	}
}
