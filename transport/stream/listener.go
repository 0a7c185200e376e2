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

package stream

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/hashicorp/go-sockaddr"
)

// Listener accepts bridge connections. The bridge is a 1:1 link so callers
// serve one Transport at a time.
type Listener struct {
	listener  net.Listener
	advertise string
	cfg       *config
}

// Listen binds address. When the host is unspecified the advertised address is
// resolved to a private interface address, falling back to a public one.
func Listen(ctx context.Context, address string, opts ...Option) (*Listener, error) {
	cfg := newConfig(opts...)
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}

	tcpAddr := ln.Addr().(*net.TCPAddr)
	host, err := advertiseHost(tcpAddr.IP)
	if err != nil {
		_ = ln.Close()
		return nil, err
	}

	return &Listener{
		listener:  ln,
		advertise: net.JoinHostPort(host, strconv.Itoa(tcpAddr.Port)),
		cfg:       cfg,
	}, nil
}

// Accept blocks until a peer connects and returns its Transport
func (l *Listener) Accept() (*Transport, error) {
	conn, err := l.listener.Accept()
	if err != nil {
		return nil, err
	}
	l.cfg.logger.Infof("stream transport: accepted %s", conn.RemoteAddr())
	return newTransport(conn, l.cfg)
}

// Addr returns the bound address
func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

// AdvertisedAddress returns the address a peer should dial
func (l *Listener) AdvertisedAddress() string {
	return l.advertise
}

// Close stops listening. A blocked Accept returns an error.
func (l *Listener) Close() error {
	return l.listener.Close()
}

func advertiseHost(ip net.IP) (string, error) {
	if !ip.IsUnspecified() {
		return ip.String(), nil
	}

	ipStr, err := sockaddr.GetPrivateIP()
	if err != nil {
		return "", fmt.Errorf("failed to get private interface addresses: %w", err)
	}

	if ipStr == "" {
		ipStr, err = sockaddr.GetPublicIP()
		if err != nil {
			return "", fmt.Errorf("failed to get public interface addresses: %w", err)
		}
	}

	if ipStr == "" {
		return "", fmt.Errorf("no private IP address found, and explicit IP not provided")
	}

	parsed := net.ParseIP(ipStr)
	if parsed == nil {
		return "", fmt.Errorf("failed to parse IP address: %q", ipStr)
	}
	return parsed.String(), nil
}
