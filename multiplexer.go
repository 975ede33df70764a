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
	"math"
	"time"

	"github.com/panjf2000/sockmux/internal/netpoll"
	errorx "github.com/panjf2000/sockmux/pkg/errors"
	"github.com/panjf2000/sockmux/pkg/logging"
)

type slot struct {
	socket   *Socket
	writable bool // EPOLLOUT is part of the interest set
}

// Multiplexer watches registered sockets through one edge-triggered epoll
// instance and classifies what the kernel reports into Events.
//
// Sockets live in an arena of slots; the kernel registration carries the
// slot index, never a pointer. A slot freed while a batch is being serviced
// is only reused after the next Wait, so a stale notification finds either
// the original socket or an empty slot, in which case nothing is reported.
type Multiplexer struct {
	poller  *netpoll.Poller
	slots   []slot
	free    []Handle // reusable slots
	retired []Handle // freed during the current batch
	count   int
	events  []Event
	buffer  []byte // read scratch shared by every drain
	logger  logging.Logger
	flusher logging.Flusher
	closed  bool
}

// NewMultiplexer opens an epoll instance.
func NewMultiplexer(opts ...Option) (*Multiplexer, error) {
	options := loadOptions(opts...)

	logger, flusher := options.Logger, logging.Flusher(nil)
	if logger == nil {
		logger = logging.GetDefaultLogger()
		if options.LogPath != "" {
			var err error
			if logger, flusher, err = logging.CreateLoggerAsLocalFile(options.LogPath, options.LogLevel); err != nil {
				return nil, err
			}
		}
	}

	p, err := netpoll.OpenPoller(options.InitEventsCap)
	if err != nil {
		return nil, err
	}
	return &Multiplexer{
		poller:  p,
		buffer:  make([]byte, options.readBufferCap()),
		logger:  logger,
		flusher: flusher,
	}, nil
}

// Len returns the number of registered sockets.
func (m *Multiplexer) Len() int {
	return m.count
}

// Lookup returns the socket registered under h, nil if the slot is vacant.
func (m *Multiplexer) Lookup(h Handle) *Socket {
	if h < 0 || int(h) >= len(m.slots) {
		return nil
	}
	return m.slots[h].socket
}

// IsPending reports whether writable interest is currently registered for s.
func (m *Multiplexer) IsPending(s *Socket) bool {
	return s.mux == m && m.slots[s.handle].writable
}

// Register starts watching s for readability. If s already has bytes queued
// for sending, writable interest is added as well.
func (m *Multiplexer) Register(s *Socket) error {
	if m.closed {
		return errorx.ErrMultiplexerClosed
	}
	if s.IsClosed() {
		return errorx.ErrInvalidState
	}
	if s.mux != nil {
		return errorx.ErrAlreadyRegistered
	}

	h := m.alloc()
	if err := m.poller.AddRead(s.fd, int32(h)); err != nil {
		m.free = append(m.free, h)
		return &errorx.SocketError{Op: "register", Fd: s.fd, Err: err}
	}
	m.slots[h] = slot{socket: s}
	m.count++
	s.mux, s.handle = m, h
	m.logger.Debugf("registered fd=%d as handle %d, listening=%t", s.fd, h, s.listening)

	if !s.outbox.IsEmpty() {
		return m.MarkPending(s)
	}
	return nil
}

// Deregister stops watching s. Closing a socket deregisters it implicitly.
func (m *Multiplexer) Deregister(s *Socket) error {
	if s.mux != m {
		return errorx.ErrNotRegistered
	}
	// The slot stays taken while the kernel may still report its handle.
	if !s.IsClosed() {
		if err := m.poller.Delete(s.fd); err != nil {
			return &errorx.SocketError{Op: "deregister", Fd: s.fd, Err: err}
		}
	}
	m.release(s)
	return nil
}

// MarkPending adds writable interest for s, it is called when s has bytes
// the kernel did not take yet.
func (m *Multiplexer) MarkPending(s *Socket) error {
	return m.setWritable(s, true)
}

// MarkIdle removes writable interest for s, it is called once s has nothing left to send.
func (m *Multiplexer) MarkIdle(s *Socket) error {
	return m.setWritable(s, false)
}

func (m *Multiplexer) setWritable(s *Socket, writable bool) error {
	if s.mux != m {
		return errorx.ErrNotRegistered
	}
	if s.IsClosed() {
		return errorx.ErrInvalidState
	}
	sl := &m.slots[s.handle]
	if sl.writable == writable {
		return nil
	}
	var err error
	if writable {
		err = m.poller.ModReadWrite(s.fd, int32(s.handle))
	} else {
		err = m.poller.ModRead(s.fd, int32(s.handle))
	}
	if err != nil {
		return &errorx.SocketError{Op: "interest", Fd: s.fd, Err: err}
	}
	sl.writable = writable
	return nil
}

// Wait blocks until at least one registered socket is ready or timeout
// elapses, a negative timeout blocks indefinitely and zero returns at once.
// The returned slice is reused by the next call.
func (m *Multiplexer) Wait(timeout time.Duration) ([]Event, error) {
	if m.closed {
		return nil, errorx.ErrMultiplexerClosed
	}
	m.free = append(m.free, m.retired...)
	m.retired = m.retired[:0]

	raw, err := m.poller.Wait(toMillis(timeout))
	if err != nil {
		return nil, &errorx.SocketError{Op: "wait", Fd: m.poller.Fd(), Err: err}
	}

	m.events = m.events[:0]
	for _, ev := range raw {
		h := Handle(ev.Tag)
		s := m.Lookup(h)
		if s == nil {
			m.logger.Debugf("dropping readiness 0x%x for vacant handle %d", ev.Events, h)
			continue
		}
		m.events = appendClassified(m.events, h, s, ev.Events)
	}
	return m.events, nil
}

// appendClassified turns one notification into events: hangups and errors
// take precedence over everything else, readability is reported before
// writability.
func appendClassified(events []Event, h Handle, s *Socket, ev netpoll.IOEvent) []Event {
	switch {
	case ev&netpoll.ReadHangupEvent != 0:
		return append(events, Event{h, s, EventReadHangup})
	case ev&netpoll.HangupEvent != 0:
		return append(events, Event{h, s, EventHangup})
	case ev&netpoll.ErrorEvent != 0:
		return append(events, Event{h, s, EventError})
	case s.listening && ev&netpoll.ReadEvents != 0:
		return append(events, Event{h, s, EventIncomingConnection})
	}
	if ev&netpoll.ReadEvents != 0 {
		events = append(events, Event{h, s, EventDataIn})
	}
	if ev&netpoll.WriteEvents != 0 {
		events = append(events, Event{h, s, EventDataOut})
	}
	return events
}

// Close disposes every registered socket and closes the epoll instance.
func (m *Multiplexer) Close() error {
	if m.closed {
		return nil
	}
	for i := range m.slots {
		if s := m.slots[i].socket; s != nil {
			s.Dispose()
		}
	}
	m.closed = true
	err := m.poller.Close()
	if m.flusher != nil {
		_ = m.flusher()
	}
	return err
}

func (m *Multiplexer) alloc() Handle {
	if n := len(m.free); n > 0 {
		h := m.free[n-1]
		m.free = m.free[:n-1]
		return h
	}
	m.slots = append(m.slots, slot{})
	return Handle(len(m.slots) - 1)
}

func (m *Multiplexer) release(s *Socket) {
	h := s.handle
	m.slots[h] = slot{}
	m.retired = append(m.retired, h)
	m.count--
	s.mux, s.handle = nil, InvalidHandle
	m.logger.Debugf("released handle %d", h)
}

func toMillis(timeout time.Duration) int {
	if timeout < 0 {
		return -1
	}
	ms := timeout / time.Millisecond
	if ms == 0 && timeout > 0 {
		ms = 1
	}
	if ms > math.MaxInt32 {
		ms = math.MaxInt32
	}
	return int(ms)
}
