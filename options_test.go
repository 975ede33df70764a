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

package sockmux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/panjf2000/sockmux/pkg/logging"
)

func TestEventCodeString(t *testing.T) {
	assert.Equal(t, "IncomingConnection", EventIncomingConnection.String())
	assert.Equal(t, "DataIn", EventDataIn.String())
	assert.Equal(t, "DataOut", EventDataOut.String())
	assert.Equal(t, "ReadHangup", EventReadHangup.String())
	assert.Equal(t, "Hangup", EventHangup.String())
	assert.Equal(t, "Error", EventError.String())
	assert.Equal(t, "EventCode(42)", EventCode(42).String())

	assert.Equal(t, "ClosedByPeer", ControlClosedByPeer.String())
	assert.Equal(t, "ClosedByHost", ControlClosedByHost.String())
	assert.Equal(t, "Exception", ControlException.String())
	assert.Equal(t, "ControlCode(7)", ControlCode(7).String())
}

func TestModeHas(t *testing.T) {
	assert.True(t, ModeAll.Has(ModeListen))
	assert.True(t, ModeAll.Has(ModeRead))
	assert.True(t, ModeAll.Has(ModeWrite))
	assert.True(t, (ModeRead | ModeWrite).Has(ModeWrite))
	assert.False(t, ModeRead.Has(ModeWrite))
	assert.False(t, ModeWrite.Has(ModeListen))
}

func TestOptions(t *testing.T) {
	opts := loadOptions()
	assert.Equal(t, DefaultReadBufferCap, opts.readBufferCap())
	assert.Equal(t, TCPNoDelay, opts.TCPNoDelay)
	assert.Equal(t, logging.GetDefaultLogger(), opts.logger())

	logger := zap.NewExample().Sugar()
	opts = loadOptions(
		WithReadBufferCap(1000),
		WithInitEventsCap(16),
		WithSocketRecvBuffer(8*1024),
		WithSocketSendBuffer(4*1024),
		WithTCPNoDelay(TCPDelay),
		WithReuseAddr(true),
		WithReusePort(true),
		WithLogPath("sockmux.log"),
		WithLogLevel(logging.WarnLevel),
		WithLogger(logger),
	)
	assert.Equal(t, 1024, opts.readBufferCap())
	assert.Equal(t, 16, opts.InitEventsCap)
	assert.Equal(t, 8*1024, opts.SocketRecvBuffer)
	assert.Equal(t, 4*1024, opts.SocketSendBuffer)
	assert.Equal(t, TCPDelay, opts.TCPNoDelay)
	assert.True(t, opts.ReuseAddr)
	assert.True(t, opts.ReusePort)
	assert.Equal(t, "sockmux.log", opts.LogPath)
	assert.Equal(t, logging.WarnLevel, opts.LogLevel)
	assert.Equal(t, logger, opts.logger())

	assert.Equal(t, MinReadBufferCap, loadOptions(WithReadBufferCap(1)).readBufferCap())
	assert.Equal(t, 64, loadOptions(WithOptions(Options{InitEventsCap: 64})).InitEventsCap)
}
