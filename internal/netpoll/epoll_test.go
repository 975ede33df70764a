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

package netpoll

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func socketPair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestPollerTagsAndInterest(t *testing.T) {
	p, err := OpenPoller(0)
	require.NoError(t, err)
	defer p.Close() //nolint:errcheck

	a, b := socketPair(t)
	require.NoError(t, p.AddRead(a, 42))

	events, err := p.Wait(0)
	require.NoError(t, err)
	assert.Empty(t, events, "nothing is readable yet and writable interest is off")

	_, err = unix.Write(b, []byte("ping"))
	require.NoError(t, err)
	events, err = p.Wait(100)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.EqualValues(t, 42, events[0].Tag)
	assert.NotZero(t, events[0].Events&unix.EPOLLIN)
	assert.Zero(t, events[0].Events&WriteEvents)

	// Edge-triggered: the same readiness is not reported twice.
	events, err = p.Wait(0)
	require.NoError(t, err)
	assert.Empty(t, events)

	require.NoError(t, p.ModReadWrite(a, 42))
	events, err = p.Wait(100)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.NotZero(t, events[0].Events&WriteEvents)

	require.NoError(t, p.ModRead(a, 42))
	require.NoError(t, p.Delete(a))
	assert.Error(t, p.Delete(a))
}

func TestPollerReadHangup(t *testing.T) {
	p, err := OpenPoller(InitPollEventsCap)
	require.NoError(t, err)
	defer p.Close() //nolint:errcheck

	a, b := socketPair(t)
	require.NoError(t, p.AddRead(a, 1))
	require.NoError(t, unix.Shutdown(b, unix.SHUT_WR))

	events, err := p.Wait(100)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.NotZero(t, events[0].Events&ReadHangupEvent)
}

func TestEventListResize(t *testing.T) {
	el := newEventList(4)
	el.shrink()
	assert.Equal(t, 4, el.size, "never below the initial capacity")
	el.expand()
	assert.Equal(t, 8, el.size)
	assert.Len(t, el.events, 8)
	el.shrink()
	assert.Equal(t, 4, el.size)

	el = newEventList(MaxPollEventsCap)
	el.expand()
	assert.Equal(t, MaxPollEventsCap, el.size)
}

func TestPollerEventListGrows(t *testing.T) {
	p, err := OpenPoller(2)
	require.NoError(t, err)
	defer p.Close() //nolint:errcheck

	for i := 0; i < 4; i++ {
		a, b := socketPair(t)
		require.NoError(t, p.AddRead(a, int32(i)))
		_, err = unix.Write(b, []byte{byte(i)})
		require.NoError(t, err)
	}
	events, err := p.Wait(100)
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, 4, p.el.size)
}

func TestOpenPollerRoundsCapacity(t *testing.T) {
	p, err := OpenPoller(100)
	require.NoError(t, err)
	assert.Equal(t, 128, p.el.size)
	require.NoError(t, p.Close())

	p, err = OpenPoller(MaxPollEventsCap * 4)
	require.NoError(t, err)
	assert.Equal(t, MaxPollEventsCap, p.el.size)
	require.NoError(t, p.Close())
}
