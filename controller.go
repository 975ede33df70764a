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
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/sockmux/internal/socket"
	errorx "github.com/panjf2000/sockmux/pkg/errors"
)

// Controller drives a Multiplexer: it waits for readiness, drains the ready
// sockets, runs their hooks and reports what the application must act on.
type Controller struct {
	*Multiplexer

	controls []ControlEvent
}

// NewController opens a Multiplexer and wraps it.
func NewController(opts ...Option) (*Controller, error) {
	m, err := NewMultiplexer(opts...)
	if err != nil {
		return nil, err
	}
	return &Controller{Multiplexer: m}, nil
}

// WaitAndControl waits at most timeout for readiness and services every
// reported event allowed by mode. A failure while servicing one event is
// reported as a ControlException event and doesn't stop the rest of the batch.
// The returned slice is reused by the next call.
func (c *Controller) WaitAndControl(timeout time.Duration, mode Mode) ([]ControlEvent, error) {
	events, err := c.Wait(timeout)
	if err != nil {
		return nil, err
	}
	c.controls = c.controls[:0]
	for _, ev := range events {
		c.dispatch(ev, mode)
	}
	return c.controls, nil
}

func (c *Controller) dispatch(ev Event, mode Mode) {
	defer func() {
		if r := recover(); r != nil {
			c.exception(ev.Socket, fmt.Errorf("sockmux: panic while handling %s: %v", ev.Code, r))
		}
	}()
	if err := c.control(ev, mode); err != nil {
		c.exception(ev.Socket, err)
	}
}

func (c *Controller) control(ev Event, mode Mode) error {
	s := ev.Socket
	// An earlier event of this batch may have closed or deregistered the socket.
	if c.Lookup(ev.Handle) != s {
		return nil
	}

	switch ev.Code {
	case EventIncomingConnection:
		if !mode.Has(ModeListen) {
			return nil
		}
		if err := s.handler.DataReceived(s); err != nil {
			return err
		}
		c.closedByHost(s)
	case EventDataIn:
		if !mode.Has(ModeRead) {
			return nil
		}
		eof, err := s.readToBuffer(c.buffer)
		if err != nil {
			return err
		}
		if c.closedByHost(s) {
			return nil
		}
		if eof {
			c.closedByPeer(s)
		}
	case EventDataOut:
		if !mode.Has(ModeWrite) {
			return nil
		}
		flushed, err := s.writeFromBuffer()
		if errors.Is(err, errorx.ErrSocketClosedByPeer) {
			// The outbox can't drain anymore, stop asking for writability.
			err = c.setWritable(s, false)
			c.closedByPeer(s)
			return err
		}
		if err != nil {
			return err
		}
		if err = c.setWritable(s, !flushed); err != nil {
			return err
		}
		if err = s.handler.ReadyToSend(s); err != nil {
			return err
		}
		c.closedByHost(s)
	case EventReadHangup, EventHangup:
		// Whatever arrived along with the FIN still goes to the hook.
		if mode.Has(ModeRead) && !s.listening {
			if _, err := s.readToBuffer(c.buffer); err != nil {
				c.exception(s, err)
			}
			if c.closedByHost(s) {
				return nil
			}
		}
		c.closedByPeer(s)
	case EventError:
		errno, err := socket.PendingError(s.fd)
		if err != nil {
			return errorx.NewSocketError("getsockopt", s.fd, err)
		}
		switch {
		case errno == 0:
		case errorx.IsClosedByPeerErrno(errno):
			c.closedByPeer(s)
		default:
			return errorx.NewSocketError("so_error", s.fd, errno)
		}
	}
	return nil
}

// closedByHost reports s if a hook closed it while it was being serviced.
func (c *Controller) closedByHost(s *Socket) bool {
	if !s.IsClosed() {
		return false
	}
	c.emit(s, ControlClosedByHost, nil)
	return true
}

func (c *Controller) closedByPeer(s *Socket) {
	c.emit(s, ControlClosedByPeer, nil)
	s.handler.ClosedByPeer(s)
}

func (c *Controller) exception(s *Socket, err error) {
	c.logger.Errorf("failed to service fd=%d: %v", s.fd, err)
	c.emit(s, ControlException, err)
}

func (c *Controller) emit(s *Socket, code ControlCode, err error) {
	c.controls = append(c.controls, ControlEvent{Socket: s, Code: code, Err: err})
}
