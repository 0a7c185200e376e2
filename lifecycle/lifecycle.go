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

// Package lifecycle is the HTTP surface sequencing process bring-up and
// bring-down around the bridge connection. Each endpoint answers a literal
// "ok" body when its hook succeeds.
package lifecycle

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/tochemey/enginebridge/log"
)

// Endpoints served by the lifecycle server
const (
	PathStart   = "/start"
	PathRestart = "/restart"
	PathDestroy = "/destroy"
)

// OK is the body of a successful lifecycle response
const OK = "ok"

// DefaultAddress is the loopback address of the lifecycle server
const DefaultAddress = "127.0.0.1:9232"

// ErrUnexpectedResponse is returned when the peer answers anything but 200 "ok"
var ErrUnexpectedResponse = stderrors.New("unexpected lifecycle response")

// Hook runs when its endpoint is hit. A nil hook always succeeds.
type Hook func(ctx context.Context) error

// Hooks binds the endpoints to the process actions
type Hooks struct {
	Start   Hook
	Restart Hook
	Destroy Hook
}

// Server serves the lifecycle endpoints over HTTP/1.1 and cleartext HTTP/2
type Server struct {
	address  string
	hooks    Hooks
	logger   log.Logger
	server   *http.Server
	listener net.Listener
	done     chan error
}

// NewServer creates a Server bound to address once started. An empty
// address selects DefaultAddress.
func NewServer(address string, hooks Hooks, logger log.Logger) *Server {
	if address == "" {
		address = DefaultAddress
	}
	if logger == nil {
		logger = log.DiscardLogger
	}
	return &Server{
		address: address,
		hooks:   hooks,
		logger:  logger,
		done:    make(chan error, 1),
	}
}

// Start binds the address and serves in the background
func (s *Server) Start(ctx context.Context) error {
	listener, err := new(net.ListenConfig).Listen(ctx, "tcp", s.address)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc(PathStart, s.handle(PathStart, s.hooks.Start))
	mux.HandleFunc(PathRestart, s.handle(PathRestart, s.hooks.Restart))
	mux.HandleFunc(PathDestroy, s.handle(PathDestroy, s.hooks.Destroy))

	s.listener = listener
	s.server = &http.Server{
		Handler: h2c.NewHandler(mux, &http2.Server{
			IdleTimeout: 30 * time.Second,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		err := s.server.Serve(listener)
		if stderrors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
	}()

	s.logger.Infof("lifecycle: serving on %s", listener.Addr())
	return nil
}

// Addr returns the bound address, nil before Start
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	return <-s.done
}

func (s *Server) handle(path string, hook Hook) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if hook != nil {
			if err := hook(r.Context()); err != nil {
				s.logger.Errorf("lifecycle: %s failed: %v", path, err)
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
		}

		s.logger.Debugf("lifecycle: %s ok", path)
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(OK))
	}
}

func checkResponse(resp *http.Response, body []byte) error {
	text := strings.TrimSpace(string(body))
	if resp.StatusCode != http.StatusOK || text != OK {
		return fmt.Errorf("%w: status=%d body=%q", ErrUnexpectedResponse, resp.StatusCode, text)
	}
	return nil
}
