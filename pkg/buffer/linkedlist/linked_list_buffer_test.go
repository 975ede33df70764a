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

package linkedlist

import (
	"bytes"
	"io"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func fill(t *testing.T, llb *Buffer, blocks int) []byte {
	t.Helper()
	var buf bytes.Buffer
	for i := 0; i < blocks; i++ {
		data := make([]byte, rand.Intn(1024)+128)
		rand.Read(data)
		llb.PushBack(data)
		buf.Write(data)
	}
	return buf.Bytes()
}

func TestLinkedListBuffer_Basic(t *testing.T) {
	const maxBlocks = 100
	var llb Buffer
	expected := fill(t, &llb, maxBlocks)
	cum := len(expected)
	require.EqualValues(t, maxBlocks, llb.Len())
	require.EqualValues(t, cum, llb.Buffered())

	bs := llb.Peek(cum/4, 0)
	var p []byte
	for _, b := range bs {
		p = append(p, b...)
	}
	pn := len(p)
	require.GreaterOrEqual(t, pn, cum/4)
	require.EqualValues(t, expected[:pn], p)
	require.EqualValues(t, cum, llb.Buffered(), "Peek must not consume")

	require.Len(t, llb.Peek(0, 3), 3)

	require.EqualValues(t, pn, llb.Discard(pn))
	expected = expected[pn:]

	p = make([]byte, len(expected))
	n, err := llb.Read(p)
	require.NoError(t, err)
	require.EqualValues(t, len(expected), n)
	require.EqualValues(t, expected, p)
	require.True(t, llb.IsEmpty())

	_, err = llb.Read(make([]byte, 1))
	require.ErrorIs(t, err, io.EOF)
}

func TestLinkedListBuffer_Next(t *testing.T) {
	var llb Buffer
	llb.PushBack([]byte("from "))
	llb.PushBack(nil)
	llb.PushBack([]byte("client\n"))
	require.EqualValues(t, 2, llb.Len())

	_, ok := llb.Next(13)
	require.False(t, ok)
	require.EqualValues(t, 12, llb.Buffered())

	p, ok := llb.Next(3)
	require.True(t, ok)
	require.Equal(t, "fro", string(p))

	p, ok = llb.Next(4)
	require.True(t, ok)
	require.Equal(t, "m cl", string(p))

	require.Equal(t, "ient\n", string(llb.ReadAll()))
	require.True(t, llb.IsEmpty())
	require.Empty(t, llb.ReadAll())
}

func TestLinkedListBuffer_Reset(t *testing.T) {
	var llb Buffer
	fill(t, &llb, 10)
	llb.Reset()
	require.True(t, llb.IsEmpty())
	require.Zero(t, llb.Len())
	require.Zero(t, llb.Buffered())
	require.Empty(t, llb.Peek(0, 0))
}
