// Copyright (c) 2025 The Gnet Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build linux

package sockmux

import (
	"context"
	"net"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/panjf2000/sockmux/internal/socket"
	errorx "github.com/panjf2000/sockmux/pkg/errors"
	"github.com/panjf2000/sockmux/pkg/pool/goroutine"
)

// Dial starts a non-blocking connect to addr and returns the socket right
// away. Completion is observed through the controller: the first DataOut
// means connected, a failed attempt shows up as an error or a hangup.
func Dial(network, addr string, h Handler, opts ...Option) (*Socket, error) {
	options := loadOptions(opts...)
	var sockOpts []socket.Option
	if network != "unix" {
		noDelay := 1
		if options.TCPNoDelay == TCPDelay {
			noDelay = 0
		}
		sockOpts = append(sockOpts, socket.Option{SetSockOpt: socket.SetNoDelay, Opt: noDelay})
	}
	if options.SocketRecvBuffer > 0 {
		sockOpts = append(sockOpts, socket.Option{SetSockOpt: socket.SetRecvBuffer, Opt: options.SocketRecvBuffer})
	}
	if options.SocketSendBuffer > 0 {
		sockOpts = append(sockOpts, socket.Option{SetSockOpt: socket.SetSendBuffer, Opt: options.SocketSendBuffer})
	}

	fd, netAddr, err := socket.Socket(network, addr, false, sockOpts...)
	if err != nil {
		return nil, err
	}
	s := newSocket(fd, h, options)
	s.remoteAddr = netAddr
	return s, nil
}

// Enroll adopts the connection behind c: its descriptor is duplicated into a
// new Socket and c itself is closed.
func Enroll(c net.Conn, h Handler, opts ...Option) (*Socket, error) {
	if c == nil {
		return nil, errorx.ErrInvalidNetConn
	}
	defer c.Close() //nolint:errcheck

	sc, ok := c.(syscall.Conn)
	if !ok {
		return nil, errorx.ErrInvalidNetConn
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return nil, err
	}

	dupFD := -1
	var dupErr error
	if err = rc.Control(func(fd uintptr) {
		dupFD, dupErr = unix.Dup(int(fd))
	}); err != nil {
		return nil, err
	}
	if dupErr != nil {
		return nil, errorx.NewSocketError("dup", dupFD, dupErr)
	}
	unix.CloseOnExec(dupFD)

	s, err := NewSocket(dupFD, h, opts...)
	if err != nil {
		_ = unix.Close(dupFD)
		return nil, err
	}
	s.remoteAddr = c.RemoteAddr()
	return s, nil
}

// DialResult is the outcome of DialAsync.
type DialResult struct {
	Socket *Socket
	Err    error
}

// DialAsync dials addr with the blocking net.Dialer on the shared worker pool,
// so name resolution and connection setup never stall the event loop, then
// adopts the connection like Enroll. Receive from the channel and register
// the socket on the goroutine driving the controller.
func DialAsync(ctx context.Context, network, addr string, h Handler, opts ...Option) <-chan DialResult {
	resCh := make(chan DialResult, 1)
	err := goroutine.DefaultWorkerPool.Submit(func() {
		var d net.Dialer
		c, err := d.DialContext(ctx, network, addr)
		if err != nil {
			resCh <- DialResult{Err: err}
			return
		}
		s, err := Enroll(c, h, opts...)
		resCh <- DialResult{Socket: s, Err: err}
	})
	if err != nil {
		resCh <- DialResult{Err: err}
	}
	return resCh
}
