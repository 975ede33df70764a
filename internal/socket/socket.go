// Copyright (c) 2020 The Gnet Authors. All rights reserved.
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

// Package socket creates, connects and accepts the non-blocking descriptors
// that sockmux sockets are built on.
package socket

import (
	"net"
	"os"

	"golang.org/x/sys/unix"

	"github.com/panjf2000/sockmux/pkg/errors"
)

// Option is used for setting an option on socket.
type Option struct {
	SetSockOpt func(int, int) error
	Opt        int
}

func execSockOpts(fd int, opts []Option) error {
	for _, opt := range opts {
		if err := opt.SetSockOpt(fd, opt.Opt); err != nil {
			return err
		}
	}
	return nil
}

// Socket creates a stream socket for proto ("tcp", "tcp4", "tcp6" or "unix").
// A passive socket is bound and listening, otherwise a non-blocking connect is
// started and EINPROGRESS is not reported as an error.
func Socket(proto, addr string, passive bool, sockOpts ...Option) (int, net.Addr, error) {
	switch proto {
	case "tcp", "tcp4", "tcp6":
		return tcpSocket(proto, addr, passive, sockOpts...)
	case "unix":
		return udsSocket(proto, addr, passive, sockOpts...)
	default:
		return -1, nil, errors.ErrUnsupportedProtocol
	}
}

// Accept accepts the next incoming socket along with setting
// O_NONBLOCK and O_CLOEXEC flags on it.
func Accept(fd int) (int, unix.Sockaddr, error) {
	return sysAccept(fd)
}

// LocalAddr returns the address fd is bound to, nil if it can't be determined.
func LocalAddr(fd int) net.Addr {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return nil
	}
	return SockaddrToTCPOrUnixAddr(sa)
}

// RemoteAddr returns the address of the peer of fd, nil if there is none.
func RemoteAddr(fd int) net.Addr {
	sa, err := unix.Getpeername(fd)
	if err != nil {
		return nil
	}
	return SockaddrToTCPOrUnixAddr(sa)
}

func connect(fd int, sa unix.Sockaddr) error {
	switch err := unix.Connect(fd, sa); err {
	// An interrupted connect keeps going asynchronously, just like EINPROGRESS.
	case nil, unix.EINPROGRESS, unix.EINTR:
		return nil
	default:
		return os.NewSyscallError("connect", err)
	}
}

func listen(fd int, sa unix.Sockaddr) error {
	if err := os.NewSyscallError("bind", unix.Bind(fd, sa)); err != nil {
		return err
	}
	// Set backlog size to the maximum.
	return os.NewSyscallError("listen", unix.Listen(fd, listenerBacklogMaxSize))
}
