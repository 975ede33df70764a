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
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"

	"github.com/panjf2000/sockmux/internal/socket"
	"github.com/panjf2000/sockmux/pkg/buffer/linkedlist"
	errorx "github.com/panjf2000/sockmux/pkg/errors"
	"github.com/panjf2000/sockmux/pkg/logging"
)

// The default value of UIO_MAXIOV/IOV_MAX is 1024 on Linux.
const iovMax = 1024

// Socket owns one non-blocking descriptor along with its outbound and inbound
// byte queues. A Socket is not safe for concurrent use, it belongs to the
// goroutine driving its Controller.
type Socket struct {
	fd            int               // -1 once closed
	handle        Handle            // slot in mux, InvalidHandle when unregistered
	mux           *Multiplexer      // multiplexer the socket is registered with
	listening     bool              // SO_ACCEPTCONN at construction
	handler       Handler           // role behavior
	inbox         linkedlist.Buffer // received bytes not yet claimed
	outbox        linkedlist.Buffer // bytes waiting for the kernel
	totalSent     uint64
	totalReceived uint64
	localAddr     net.Addr
	remoteAddr    net.Addr
	ctx           any
	logger        logging.Logger
}

// NewSocket takes ownership of an opened stream descriptor. The descriptor is
// switched to non-blocking mode; a listening descriptor is detected and will
// report incoming connections instead of data. A nil handler does nothing.
func NewSocket(fd int, h Handler, opts ...Option) (*Socket, error) {
	if fd < 0 {
		return nil, errorx.ErrInvalidDescriptor
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, errorx.NewSocketError("fcntl nonblock", fd, err)
	}
	return newSocket(fd, h, loadOptions(opts...)), nil
}

func newSocket(fd int, h Handler, opts *Options) *Socket {
	if h == nil {
		h = BuiltinHandler{}
	}
	return &Socket{
		fd:        fd,
		handle:    InvalidHandle,
		listening: socket.IsListening(fd),
		handler:   h,
		localAddr: socket.LocalAddr(fd),
		logger:    opts.logger(),
	}
}

// Fd returns the descriptor, -1 once the socket is closed.
func (s *Socket) Fd() int { return s.fd }

// Handle returns the slot of the socket in its multiplexer.
func (s *Socket) Handle() Handle { return s.handle }

// IsClosed reports whether the descriptor has been released.
func (s *Socket) IsClosed() bool { return s.fd < 0 }

// IsListening reports whether the socket accepts connections rather than carrying data.
func (s *Socket) IsListening() bool { return s.listening }

// Handler returns the role behavior of the socket.
func (s *Socket) Handler() Handler { return s.handler }

// SetHandler replaces the role behavior, nil restores BuiltinHandler.
func (s *Socket) SetHandler(h Handler) {
	if h == nil {
		h = BuiltinHandler{}
	}
	s.handler = h
}

// Context returns a user-defined context.
func (s *Socket) Context() any { return s.ctx }

// SetContext sets a user-defined context.
func (s *Socket) SetContext(ctx any) { s.ctx = ctx }

// LocalAddr returns the local address the socket is bound to.
func (s *Socket) LocalAddr() net.Addr { return s.localAddr }

// RemoteAddr returns the address of the peer, nil for a listening socket or
// a socket that isn't connected yet.
func (s *Socket) RemoteAddr() net.Addr {
	if s.remoteAddr == nil && s.fd >= 0 && !s.listening {
		s.remoteAddr = socket.RemoteAddr(s.fd)
	}
	return s.remoteAddr
}

// BytesAvailable returns the number of received bytes waiting in the inbox.
func (s *Socket) BytesAvailable() int { return s.inbox.Buffered() }

// BytesPending returns the number of bytes waiting in the outbox.
func (s *Socket) BytesPending() int { return s.outbox.Buffered() }

// TotalSent returns the number of bytes handed to the kernel over the socket's lifetime.
func (s *Socket) TotalSent() uint64 { return s.totalSent }

// TotalReceived returns the number of bytes read over the socket's lifetime.
func (s *Socket) TotalReceived() uint64 { return s.totalReceived }

// Send queues p and immediately tries to flush the outbox. It reports true if
// everything went out, false if bytes remain queued; those are flushed when
// the socket becomes writable again. ErrSocketClosedByPeer is returned when
// the peer reset the connection.
func (s *Socket) Send(p []byte) (flushed bool, err error) {
	if s.fd < 0 {
		return false, errorx.ErrInvalidState
	}
	s.outbox.PushBack(p)
	if flushed, err = s.writeFromBuffer(); err != nil {
		return
	}
	if s.mux != nil {
		err = s.mux.setWritable(s, !flushed)
	}
	return
}

// Receive removes and returns exactly the first n buffered bytes. It never
// reads from the descriptor, it fails if fewer than n bytes are buffered.
func (s *Socket) Receive(n int) ([]byte, error) {
	if s.fd < 0 {
		return nil, errorx.ErrInvalidState
	}
	p, ok := s.inbox.Next(n)
	if !ok {
		return nil, &errorx.SocketError{
			Op:  "receive",
			Fd:  s.fd,
			Err: fmt.Errorf("%w: want %d, have %d", errorx.ErrShortBuffer, n, s.inbox.Buffered()),
		}
	}
	return p, nil
}

// ReceiveAll removes and returns every buffered byte.
func (s *Socket) ReceiveAll() ([]byte, error) {
	if s.fd < 0 {
		return nil, errorx.ErrInvalidState
	}
	return s.inbox.ReadAll(), nil
}

// Close shuts the connection down and releases the descriptor. Closing a
// closed socket is a no-op. The socket is closed afterwards even when an
// error is returned.
func (s *Socket) Close() error {
	return s.close(true)
}

// Dispose is Close for teardown paths: failures are logged, not returned.
func (s *Socket) Dispose() {
	_ = s.close(false)
}

func (s *Socket) close(report bool) error {
	if s.fd < 0 {
		return nil
	}
	fd := s.fd
	logger := s.log()
	// The kernel forgets the registration along with the descriptor.
	if s.mux != nil {
		s.mux.release(s)
	}
	s.fd = -1
	s.inbox.Reset()
	s.outbox.Reset()

	var err error
	for {
		e := unix.Shutdown(fd, unix.SHUT_RDWR)
		if e == unix.EINTR {
			continue
		}
		if e != nil && e != unix.ENOTCONN {
			err = errorx.NewSocketError("shutdown", fd, e)
		}
		break
	}
	// close(2) must not be retried on Linux: the descriptor is gone even when EINTR is returned.
	if e := unix.Close(fd); e != nil && e != unix.EINTR && err == nil {
		err = errorx.NewSocketError("close", fd, e)
	}
	if err != nil && !report {
		logger.Warnf("failed to close fd=%d cleanly, treating it as closed: %v", fd, err)
		return nil
	}
	return err
}

func (s *Socket) log() logging.Logger {
	if s.mux != nil {
		return s.mux.logger
	}
	return s.logger
}

// readToBuffer drains the descriptor into the inbox until the kernel has
// nothing more (EAGAIN) or the peer finished sending (eof). DataReceived fires
// after every non-empty read; the drain stops if the hook closes the socket.
func (s *Socket) readToBuffer(buf []byte) (eof bool, err error) {
	for s.fd >= 0 {
		n, e := unix.Read(s.fd, buf)
		switch {
		case e == unix.EINTR:
			continue
		case e == unix.EAGAIN:
			return false, nil
		case e != nil:
			return false, errorx.NewSocketError("read", s.fd, e)
		case n == 0:
			return true, nil
		}
		s.inbox.PushBack(buf[:n])
		s.totalReceived += uint64(n)
		if err = s.handler.DataReceived(s); err != nil {
			return false, err
		}
	}
	return false, nil
}

// writeFromBuffer flushes the outbox until it is empty or the kernel pushes back.
// It reports whether the outbox is empty afterwards.
func (s *Socket) writeFromBuffer() (flushed bool, err error) {
	if s.fd < 0 {
		return false, errorx.ErrInvalidState
	}
	for !s.outbox.IsEmpty() {
		var (
			n int
			e error
		)
		if iov := s.outbox.Peek(0, iovMax); len(iov) == 1 {
			n, e = unix.Write(s.fd, iov[0])
		} else {
			n, e = unix.Writev(s.fd, iov)
		}
		if e == unix.EINTR {
			continue
		}
		if n > 0 {
			s.outbox.Discard(n)
			s.totalSent += uint64(n)
		}
		if e != nil {
			if e == unix.EAGAIN {
				break
			}
			if errorx.IsClosedByPeerErrno(e) {
				return false, fmt.Errorf("%w (%w)", errorx.ErrSocketClosedByPeer, os.NewSyscallError("write", e))
			}
			return false, errorx.NewSocketError("write", s.fd, e)
		}
		if n <= 0 {
			break
		}
	}
	return s.outbox.IsEmpty(), nil
}
