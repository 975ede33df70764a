// Copyright (c) 2019 The Gnet Authors. All rights reserved.
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

// Package netpoll wraps an edge-triggered epoll instance. Registrations are
// tagged with a caller-chosen 32-bit value instead of the descriptor, the
// value comes back untouched in every reported event.
package netpoll

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/panjf2000/sockmux/pkg/math"
)

// IOEvent is the integer type of I/O events on Linux.
type IOEvent = uint32

const (
	// InitPollEventsCap represents the initial capacity of poller event-list.
	InitPollEventsCap = 128
	// MaxPollEventsCap is the maximum limitation of events that the poller can process.
	MaxPollEventsCap = 1024

	// ReadEvents represents readable events that are polled by epoll.
	ReadEvents = unix.EPOLLIN | unix.EPOLLPRI
	// WriteEvents represents writeable events that are polled by epoll.
	WriteEvents = unix.EPOLLOUT
	// ReadWriteEvents represents both readable and writeable events.
	ReadWriteEvents = ReadEvents | WriteEvents

	// ReadHangupEvent is reported once the peer shut down its writing half.
	ReadHangupEvent IOEvent = unix.EPOLLRDHUP
	// HangupEvent is reported once both halves are gone.
	HangupEvent IOEvent = unix.EPOLLHUP
	// ErrorEvent is reported when the descriptor has a pending error.
	ErrorEvent IOEvent = unix.EPOLLERR

	edgeTriggered = unix.EPOLLET | unix.EPOLLRDHUP
)

// Event is one readiness notification, Tag is the value passed at registration.
type Event struct {
	Tag    int32
	Events IOEvent
}

// Poller represents a poller which is in charge of monitoring file-descriptors.
type Poller struct {
	fd     int // epoll fd
	el     *eventList
	events []Event
}

// OpenPoller instantiates a poller whose event-list starts with capacity initCap.
func OpenPoller(initCap int) (poller *Poller, err error) {
	switch {
	case initCap <= 0:
		initCap = InitPollEventsCap
	case initCap > MaxPollEventsCap:
		initCap = MaxPollEventsCap
	default:
		initCap = math.CeilToPowerOfTwo(initCap)
	}
	poller = new(Poller)
	if poller.fd, err = unix.EpollCreate1(unix.EPOLL_CLOEXEC); err != nil {
		poller = nil
		err = os.NewSyscallError("epoll_create1", err)
		return
	}
	poller.el = newEventList(initCap)
	return
}

// Fd returns the epoll descriptor.
func (p *Poller) Fd() int {
	return p.fd
}

// Close closes the poller.
func (p *Poller) Close() error {
	return os.NewSyscallError("close", unix.Close(p.fd))
}

// Wait blocks for at most msec milliseconds, -1 means forever and 0 means no
// blocking at all. An interrupted wait returns an empty batch without error.
// The returned slice is only valid until the next call.
func (p *Poller) Wait(msec int) ([]Event, error) {
	p.events = p.events[:0]
	n, err := unix.EpollWait(p.fd, p.el.events, msec)
	if err != nil {
		if err == unix.EINTR {
			return p.events, nil
		}
		return nil, os.NewSyscallError("epoll_wait", err)
	}
	for i := 0; i < n; i++ {
		ev := &p.el.events[i]
		p.events = append(p.events, Event{Tag: ev.Fd, Events: ev.Events})
	}

	if n == p.el.size {
		p.el.expand()
	} else if n < p.el.size>>1 {
		p.el.shrink()
	}
	return p.events, nil
}

// AddRead registers fd with readable events, edge-triggered.
func (p *Poller) AddRead(fd int, tag int32) error {
	return os.NewSyscallError("epoll_ctl add",
		unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Fd: tag, Events: ReadEvents | edgeTriggered}))
}

// ModRead renews fd with readable events only.
func (p *Poller) ModRead(fd int, tag int32) error {
	return os.NewSyscallError("epoll_ctl mod",
		unix.EpollCtl(p.fd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Fd: tag, Events: ReadEvents | edgeTriggered}))
}

// ModReadWrite renews fd with readable and writable events.
func (p *Poller) ModReadWrite(fd int, tag int32) error {
	return os.NewSyscallError("epoll_ctl mod",
		unix.EpollCtl(p.fd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Fd: tag, Events: ReadWriteEvents | edgeTriggered}))
}

// Delete removes the given file-descriptor from the poller.
func (p *Poller) Delete(fd int) error {
	return os.NewSyscallError("epoll_ctl del", unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd, nil))
}

type eventList struct {
	size    int
	minSize int
	events  []unix.EpollEvent
}

func newEventList(size int) *eventList {
	return &eventList{size, size, make([]unix.EpollEvent, size)}
}

func (el *eventList) expand() {
	if newSize := el.size << 1; newSize <= MaxPollEventsCap {
		el.size = newSize
		el.events = make([]unix.EpollEvent, newSize)
	}
}

func (el *eventList) shrink() {
	if newSize := el.size >> 1; newSize >= el.minSize {
		el.size = newSize
		el.events = make([]unix.EpollEvent, newSize)
	}
}
