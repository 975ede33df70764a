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

// Package errors defines common errors for sockmux.
package errors

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

var (
	// ErrInvalidState occurs when operating on a socket whose descriptor has been closed.
	ErrInvalidState = errors.New("sockmux: operation on a closed socket")
	// ErrSocketClosedByPeer occurs when the remote end resets the connection or the pipe is broken while writing.
	ErrSocketClosedByPeer = errors.New("sockmux: socket closed by peer")
	// ErrSocketNoneConnecting occurs when accepting on a listener that has no pending connection.
	ErrSocketNoneConnecting = errors.New("sockmux: no pending connection to accept")
	// ErrShortBuffer occurs when asking for more bytes than the inbound buffer currently holds.
	ErrShortBuffer = errors.New("sockmux: not enough buffered bytes")
	// ErrNotRegistered occurs when the socket doesn't belong to the multiplexer it is handed to.
	ErrNotRegistered = errors.New("sockmux: socket is not registered")
	// ErrAlreadyRegistered occurs when registering a socket more than once.
	ErrAlreadyRegistered = errors.New("sockmux: socket is already registered")
	// ErrMultiplexerClosed occurs when using a multiplexer after it has been closed.
	ErrMultiplexerClosed = errors.New("sockmux: multiplexer is closed")
	// ErrUnsupportedProtocol occurs when trying to use protocol that is not supported.
	ErrUnsupportedProtocol = errors.New("sockmux: only unix, tcp/tcp4/tcp6 are supported")
	// ErrUnsupportedTCPProtocol occurs when trying to use an unsupported TCP protocol.
	ErrUnsupportedTCPProtocol = errors.New("sockmux: only tcp/tcp4/tcp6 are supported")
	// ErrInvalidNetConn occurs when trying to enroll a net.Conn that exposes no descriptor.
	ErrInvalidNetConn = errors.New("sockmux: the net.Conn is empty or has no descriptor")
	// ErrInvalidDescriptor occurs when constructing a socket from a negative descriptor.
	ErrInvalidDescriptor = errors.New("sockmux: invalid file descriptor")
)

// SocketError is a fatal failure on a socket, it usually wraps an *os.SyscallError.
type SocketError struct {
	Op  string
	Fd  int
	Err error
}

// NewSocketError wraps errno returned by syscall op on fd.
func NewSocketError(op string, fd int, err error) *SocketError {
	if errno, ok := err.(unix.Errno); ok {
		err = os.NewSyscallError(op, errno)
	}
	return &SocketError{Op: op, Fd: fd, Err: err}
}

func (e *SocketError) Error() string {
	return fmt.Sprintf("sockmux: %s on fd=%d: %v", e.Op, e.Fd, e.Err)
}

func (e *SocketError) Unwrap() error { return e.Err }

// IsClosedByPeerErrno reports whether err carries EPIPE or ECONNRESET.
func IsClosedByPeerErrno(err error) bool {
	return errors.Is(err, unix.EPIPE) || errors.Is(err, unix.ECONNRESET)
}
