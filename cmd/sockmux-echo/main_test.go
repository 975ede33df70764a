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

package main

import (
	"bufio"
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestEchoServer(t *testing.T) {
	addr := filepath.Join(t.TempDir(), "echo.sock")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var g errgroup.Group
	g.Go(func() error {
		return serve(ctx, "unix", addr, 20*time.Millisecond)
	})

	var (
		c   net.Conn
		err error
	)
	require.Eventually(t, func() bool {
		c, err = net.Dial("unix", addr)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	defer c.Close() //nolint:errcheck
	require.NoError(t, c.SetDeadline(time.Now().Add(5*time.Second)))

	r := bufio.NewReader(c)
	_, err = c.Write([]byte("hel"))
	require.NoError(t, err)
	_, err = c.Write([]byte("lo\nwor"))
	require.NoError(t, err)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "echo: hello\n", line)

	_, err = c.Write([]byte("ld\nagain\n"))
	require.NoError(t, err)
	line, err = r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "echo: world\n", line)
	line, err = r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "echo: again\n", line)

	cancel()
	require.NoError(t, g.Wait())
}
