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
	"net"

	"golang.org/x/sys/unix"

	"github.com/panjf2000/sockmux/internal/socket"
	errorx "github.com/panjf2000/sockmux/pkg/errors"
)

// Listener is a listening Socket that hands out accepted connections.
type Listener struct {
	*Socket

	network string
	addr    net.Addr
	opts    *Options
}

// Listen creates a listening socket on addr for network "tcp", "tcp4", "tcp6"
// or "unix". Register it with a Controller and accept from the DataReceived
// hook of h.
func Listen(network, addr string, h Handler, opts ...Option) (*Listener, error) {
	options := loadOptions(opts...)

	var sockOpts []socket.Option
	if options.ReuseAddr {
		sockOpts = append(sockOpts, socket.Option{SetSockOpt: socket.SetReuseAddr, Opt: 1})
	}
	if options.ReusePort && network != "unix" {
		sockOpts = append(sockOpts, socket.Option{SetSockOpt: socket.SetReuseport, Opt: 1})
	}
	if options.SocketRecvBuffer > 0 {
		sockOpts = append(sockOpts, socket.Option{SetSockOpt: socket.SetRecvBuffer, Opt: options.SocketRecvBuffer})
	}
	if options.SocketSendBuffer > 0 {
		sockOpts = append(sockOpts, socket.Option{SetSockOpt: socket.SetSendBuffer, Opt: options.SocketSendBuffer})
	}

	fd, netAddr, err := socket.Socket(network, addr, true, sockOpts...)
	if err != nil {
		return nil, err
	}
	ln := &Listener{
		Socket:  newSocket(fd, h, options),
		network: network,
		addr:    netAddr,
		opts:    options,
	}
	ln.listening = true
	return ln, nil
}

// Addr returns the address the listener is bound to.
func (ln *Listener) Addr() net.Addr {
	return ln.addr
}

// Accept takes the next pending connection and wraps it in a Socket driven
// by h. It returns ErrSocketNoneConnecting once the backlog is empty.
func (ln *Listener) Accept(h Handler) (*Socket, error) {
	if ln.IsClosed() {
		return nil, errorx.ErrInvalidState
	}
	nfd, sa, err := socket.Accept(ln.fd)
	if err != nil {
		if err == unix.EAGAIN {
			return nil, errorx.ErrSocketNoneConnecting
		}
		return nil, errorx.NewSocketError("accept", ln.fd, err)
	}
	if err = applyConnOptions(nfd, ln.network, ln.opts); err != nil {
		_ = unix.Close(nfd)
		return nil, errorx.NewSocketError("setsockopt", nfd, err)
	}
	s := newSocket(nfd, h, ln.opts)
	s.remoteAddr = socket.SockaddrToTCPOrUnixAddr(sa)
	return s, nil
}

// AcceptAll accepts until the backlog is empty and registers every new
// connection with m, newHandler picks the handler of each one.
func (ln *Listener) AcceptAll(m *Multiplexer, newHandler func() Handler) (accepted []*Socket, err error) {
	for {
		var h Handler
		if newHandler != nil {
			h = newHandler()
		}
		s, err := ln.Accept(h)
		if err == errorx.ErrSocketNoneConnecting {
			return accepted, nil
		}
		if err != nil {
			return accepted, err
		}
		if err = m.Register(s); err != nil {
			s.Dispose()
			return accepted, err
		}
		accepted = append(accepted, s)
	}
}

func applyConnOptions(fd int, network string, opts *Options) error {
	if network != "unix" {
		noDelay := 1
		if opts.TCPNoDelay == TCPDelay {
			noDelay = 0
		}
		if err := socket.SetNoDelay(fd, noDelay); err != nil {
			return err
		}
	}
	if opts.SocketRecvBuffer > 0 {
		if err := socket.SetRecvBuffer(fd, opts.SocketRecvBuffer); err != nil {
			return err
		}
	}
	if opts.SocketSendBuffer > 0 {
		if err := socket.SetSendBuffer(fd, opts.SocketSendBuffer); err != nil {
			return err
		}
	}
	return nil
}
