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

package validation

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// AddressValidator checks a host:port TCP address. Port 0 is accepted so
// listeners can pick a free port.
type AddressValidator struct {
	address string
}

var _ Validator = (*AddressValidator)(nil)

// NewAddressValidator creates an AddressValidator
func NewAddressValidator(address string) *AddressValidator {
	return &AddressValidator{address: address}
}

// Validate implements Validator
func (a *AddressValidator) Validate() error {
	host, port, err := net.SplitHostPort(strings.TrimSpace(a.address))
	if err != nil {
		return fmt.Errorf("invalid address=(%s): %w", a.address, err)
	}

	number, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("invalid address=(%s): %w", a.address, err)
	}

	if host == "" || number < 0 || number > 65535 {
		return fmt.Errorf("invalid address=(%s): %w", a.address, errors.New("host or port out of range"))
	}
	return nil
}
