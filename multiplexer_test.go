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
	"bytes"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/panjf2000/sockmux/internal/netpoll"
	errorx "github.com/panjf2000/sockmux/pkg/errors"
	"github.com/panjf2000/sockmux/pkg/logging"
)

func TestMultiplexerRegistration(t *testing.T) {
	m, err := NewMultiplexer()
	require.NoError(t, err)
	defer m.Close() //nolint:errcheck

	a, _ := socketPair(t, nil)
	b, _ := socketPair(t, nil)
	require.NoError(t, m.Register(a))
	require.NoError(t, m.Register(b))
	assert.Equal(t, 2, m.Len())
	assert.NotEqual(t, a.Handle(), b.Handle())
	assert.Same(t, a, m.Lookup(a.Handle()))
	assert.Same(t, b, m.Lookup(b.Handle()))
	assert.Nil(t, m.Lookup(InvalidHandle))
	assert.Nil(t, m.Lookup(Handle(1<<20)))
	assert.False(t, m.IsPending(a))

	assert.ErrorIs(t, m.Register(a), errorx.ErrAlreadyRegistered)

	h := a.Handle()
	require.NoError(t, m.Deregister(a))
	assert.Nil(t, m.Lookup(h))
	assert.Equal(t, InvalidHandle, a.Handle())
	assert.Equal(t, 1, m.Len())
	assert.False(t, a.IsClosed(), "deregistering leaves the descriptor open")
	assert.ErrorIs(t, m.Deregister(a), errorx.ErrNotRegistered)
	assert.ErrorIs(t, m.MarkPending(a), errorx.ErrNotRegistered)
	assert.False(t, m.IsPending(a))
}

func TestMultiplexerSlotReuseWaitsForNextBatch(t *testing.T) {
	m, err := NewMultiplexer()
	require.NoError(t, err)
	defer m.Close() //nolint:errcheck

	a, _ := socketPair(t, nil)
	b, _ := socketPair(t, nil)
	c, _ := socketPair(t, nil)

	require.NoError(t, m.Register(a))
	freed := a.Handle()
	require.NoError(t, a.Close())

	require.NoError(t, m.Register(b))
	assert.NotEqual(t, freed, b.Handle(), "a slot freed in this batch must not be handed out yet")

	_, err = m.Wait(0)
	require.NoError(t, err)
	require.NoError(t, m.Register(c))
	assert.Equal(t, freed, c.Handle())
}

func TestMultiplexerRegisterWithQueuedBytes(t *testing.T) {
	m, err := NewMultiplexer()
	require.NoError(t, err)
	defer m.Close() //nolint:errcheck

	s, _ := socketPair(t, nil)
	s.outbox.PushBack([]byte("queued before registration"))
	require.NoError(t, m.Register(s))
	assert.True(t, m.IsPending(s))

	require.NoError(t, m.MarkIdle(s))
	assert.False(t, m.IsPending(s))
	require.NoError(t, m.MarkIdle(s))
	require.NoError(t, m.MarkPending(s))
	require.NoError(t, m.MarkPending(s))
	assert.True(t, m.IsPending(s))
}

func TestMultiplexerWait(t *testing.T) {
	m, err := NewMultiplexer()
	require.NoError(t, err)
	defer m.Close() //nolint:errcheck

	s, peer := socketPair(t, nil)
	require.NoError(t, m.Register(s))

	start := time.Now()
	events, err := m.Wait(20 * time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)

	writeAll(t, peer, []byte("ping"))
	events, err = m.Wait(time.Second)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, Event{Handle: s.Handle(), Socket: s, Code: EventDataIn}, events[0])

	// Edge-triggered: nothing is reported again until new bytes arrive.
	events, err = m.Wait(0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestMultiplexerBackpressure(t *testing.T) {
	ctl, err := NewController()
	require.NoError(t, err)
	defer ctl.Close() //nolint:errcheck

	r := &recorder{}
	s, peer := socketPair(t, r)
	require.NoError(t, unix.SetsockoptInt(s.Fd(), unix.SOL_SOCKET, unix.SO_SNDBUF, 4096))
	require.NoError(t, ctl.Register(s))

	payload := make([]byte, 4<<20)
	_, err = rand.Read(payload)
	require.NoError(t, err)

	flushed, err := s.Send(payload)
	require.NoError(t, err)
	require.False(t, flushed, "the kernel can't take 4MB at once")
	assert.Positive(t, s.BytesPending())
	assert.True(t, ctl.IsPending(s), "writable interest must follow a non-empty outbox")

	var got bytes.Buffer
	deadline := time.Now().Add(10 * time.Second)
	for got.Len() < len(payload) && time.Now().Before(deadline) {
		drainPeer(t, peer, &got)
		assert.Equal(t, s.BytesPending() > 0, ctl.IsPending(s))
		events, err := ctl.WaitAndControl(10*time.Millisecond, ModeAll)
		require.NoError(t, err)
		assert.Empty(t, events)
	}
	require.Equal(t, len(payload), got.Len())
	assert.True(t, bytes.Equal(payload, got.Bytes()), "bytes must arrive once and in order")
	assert.Zero(t, s.BytesPending())
	assert.False(t, ctl.IsPending(s))
	assert.EqualValues(t, len(payload), s.TotalSent())
	assert.Positive(t, r.readyCalls)
}

func TestAppendClassified(t *testing.T) {
	s := &Socket{fd: 3}
	ln := &Socket{fd: 4, listening: true}

	tests := []struct {
		name   string
		s      *Socket
		events netpoll.IOEvent
		want   []EventCode
	}{
		{"readable", s, unix.EPOLLIN, []EventCode{EventDataIn}},
		{"writable", s, unix.EPOLLOUT, []EventCode{EventDataOut}},
		{"readable_and_writable", s, unix.EPOLLIN | unix.EPOLLOUT, []EventCode{EventDataIn, EventDataOut}},
		{"read_hangup_wins", s, unix.EPOLLIN | unix.EPOLLOUT | unix.EPOLLRDHUP | unix.EPOLLHUP, []EventCode{EventReadHangup}},
		{"hangup", s, unix.EPOLLIN | unix.EPOLLHUP, []EventCode{EventHangup}},
		{"hangup_before_error", s, unix.EPOLLHUP | unix.EPOLLERR, []EventCode{EventHangup}},
		{"error", s, unix.EPOLLERR | unix.EPOLLOUT, []EventCode{EventError}},
		{"incoming_connection", ln, unix.EPOLLIN, []EventCode{EventIncomingConnection}},
		{"listener_error", ln, unix.EPOLLIN | unix.EPOLLERR, []EventCode{EventError}},
		{"nothing", s, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var codes []EventCode
			for _, ev := range appendClassified(nil, 7, tt.s, tt.events) {
				assert.Equal(t, Handle(7), ev.Handle)
				assert.Same(t, tt.s, ev.Socket)
				codes = append(codes, ev.Code)
			}
			assert.Equal(t, tt.want, codes)
		})
	}
}

func TestMultiplexerClose(t *testing.T) {
	m, err := NewMultiplexer()
	require.NoError(t, err)

	s, _ := socketPair(t, nil)
	require.NoError(t, m.Register(s))
	require.NoError(t, m.Close())
	assert.True(t, s.IsClosed(), "closing the multiplexer disposes its sockets")
	assert.Zero(t, m.Len())
	require.NoError(t, m.Close())

	_, err = m.Wait(0)
	assert.ErrorIs(t, err, errorx.ErrMultiplexerClosed)
	other, _ := socketPair(t, nil)
	assert.ErrorIs(t, m.Register(other), errorx.ErrMultiplexerClosed)
}

func TestToMillis(t *testing.T) {
	assert.Equal(t, -1, toMillis(-time.Second))
	assert.Equal(t, 0, toMillis(0))
	assert.Equal(t, 1, toMillis(time.Microsecond))
	assert.Equal(t, 1500, toMillis(1500*time.Millisecond))
	assert.Equal(t, 1<<31-1, toMillis(1<<62))
}

func TestMultiplexerLogPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sockmux.log")
	m, err := NewMultiplexer(WithLogPath(path), WithLogLevel(logging.DebugLevel))
	require.NoError(t, err)

	s, _ := socketPair(t, nil)
	require.NoError(t, m.Register(s))
	require.NoError(t, m.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "[sockmux]")
	assert.Contains(t, string(content), "registered fd=")
}

func TestMultiplexerDeregisterKeepsSlotOnFailure(t *testing.T) {
	m, err := NewMultiplexer()
	require.NoError(t, err)
	defer m.Close() //nolint:errcheck

	s, _ := socketPair(t, nil)
	require.NoError(t, m.Register(s))
	h := s.Handle()
	require.NoError(t, m.poller.Delete(s.Fd()))

	err = m.Deregister(s)
	var se *errorx.SocketError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "deregister", se.Op)
	assert.ErrorIs(t, err, unix.ENOENT)
	assert.Same(t, s, m.Lookup(h), "the slot must not be retired while its registration state is unknown")
	assert.Equal(t, 1, m.Len())

	require.NoError(t, s.Close())
	assert.Nil(t, m.Lookup(h))
	assert.Zero(t, m.Len())
}
