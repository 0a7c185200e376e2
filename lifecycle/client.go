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

package lifecycle

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/flowchartsman/retry"
	"golang.org/x/net/http2"

	"github.com/tochemey/enginebridge/log"
)

// Client drives the peer's lifecycle endpoints
type Client struct {
	baseURL  string
	client   *http.Client
	attempts int
	logger   log.Logger
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithH2C talks cleartext HTTP/2 to the peer
func WithH2C() ClientOption {
	return func(c *Client) {
		dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
		c.client.Transport = &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				return dialer.DialContext(ctx, network, addr)
			},
		}
	}
}

// WithAttempts sets how many times WaitReady calls /start
func WithAttempts(attempts int) ClientOption {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
	}
}

// WithClientLogger sets the logger
func WithClientLogger(logger log.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a Client for the peer at address (host:port). An empty
// address selects DefaultAddress.
func NewClient(address string, opts ...ClientOption) *Client {
	if address == "" {
		address = DefaultAddress
	}
	c := &Client{
		baseURL: "http://" + address,
		client: &http.Client{
			Timeout: 10 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		attempts: 20,
		logger:   log.DiscardLogger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start calls /start
func (c *Client) Start(ctx context.Context) error {
	return c.get(ctx, PathStart)
}

// Restart calls /restart
func (c *Client) Restart(ctx context.Context) error {
	return c.get(ctx, PathRestart)
}

// Destroy calls /destroy
func (c *Client) Destroy(ctx context.Context) error {
	return c.get(ctx, PathDestroy)
}

// WaitReady calls /start with backoff until the peer answers "ok"
func (c *Client) WaitReady(ctx context.Context) error {
	retrier := retry.NewRetrier(c.attempts, 50*time.Millisecond, time.Second)
	return retrier.RunContext(ctx, func(ctx context.Context) error {
		err := c.Start(ctx)
		if err != nil {
			c.logger.Debugf("lifecycle: peer not ready: %v", err)
		}
		return err
	})
}

// Close releases idle connections
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}

func (c *Client) get(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
	if err != nil {
		return err
	}
	return checkResponse(resp, body)
}
