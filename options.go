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

package sockmux

import (
	"github.com/panjf2000/sockmux/pkg/logging"
	"github.com/panjf2000/sockmux/pkg/math"
)

const (
	// DefaultReadBufferCap is the size of the scratch buffer every read syscall fills.
	DefaultReadBufferCap = 64 * 1024
	// MinReadBufferCap is the smallest scratch buffer accepted.
	MinReadBufferCap = 512
)

// Option is a function that will set up option.
type Option func(opts *Options)

func loadOptions(options ...Option) *Options {
	opts := new(Options)
	for _, option := range options {
		option(opts)
	}
	return opts
}

// TCPSocketOpt is the type of TCP socket options.
type TCPSocketOpt int

// Available TCP socket options.
const (
	TCPNoDelay TCPSocketOpt = iota
	TCPDelay
)

// Options are set when the multiplexer opens or a socket is created.
type Options struct {
	// ReadBufferCap is the size of the buffer each read syscall fills while draining a socket,
	// it is shared by all sockets of a multiplexer. Values are rounded up to a power of two,
	// the default is 64KB.
	ReadBufferCap int

	// InitEventsCap is the initial number of readiness notifications one wait can return,
	// the list doubles whenever a batch fills it.
	InitEventsCap int

	// SocketRecvBuffer sets the maximum socket receive buffer in bytes.
	SocketRecvBuffer int

	// SocketSendBuffer sets the maximum socket send buffer in bytes.
	SocketSendBuffer int

	// TCPNoDelay controls whether the operating system should delay
	// packet transmission in hopes of sending fewer packets (Nagle's algorithm).
	//
	// The default is true (no delay), meaning that data is sent
	// as soon as possible after a write operation.
	TCPNoDelay TCPSocketOpt

	// ReuseAddr indicates whether to set up the SO_REUSEADDR socket option on listeners.
	ReuseAddr bool

	// ReusePort indicates whether to set up the SO_REUSEPORT socket option on listeners.
	ReusePort bool

	// LogPath the local path where logs will be written, this is the easiest way to set up logging,
	// sockmux instantiates a default uber-go/zap logger with this given log path, you are also allowed to employ
	// you own logger during the lifetime by implementing the following log.Logger interface.
	//
	// Note that this option can be overridden by the option Logger.
	LogPath string

	// LogLevel indicates the logging level, it should be used along with LogPath.
	LogLevel logging.Level

	// Logger is the customized logger for logging info, if it is not set,
	// then sockmux will use the default logger powered by go.uber.org/zap.
	Logger logging.Logger
}

// WithOptions sets up all options.
func WithOptions(options Options) Option {
	return func(opts *Options) {
		*opts = options
	}
}

// WithReadBufferCap sets ReadBufferCap for reading bytes.
func WithReadBufferCap(readBufferCap int) Option {
	return func(opts *Options) {
		opts.ReadBufferCap = readBufferCap
	}
}

// WithInitEventsCap sets the initial capacity of the event list.
func WithInitEventsCap(n int) Option {
	return func(opts *Options) {
		opts.InitEventsCap = n
	}
}

// WithSocketRecvBuffer sets the maximum socket receive buffer in bytes.
func WithSocketRecvBuffer(recvBuf int) Option {
	return func(opts *Options) {
		opts.SocketRecvBuffer = recvBuf
	}
}

// WithSocketSendBuffer sets the maximum socket send buffer in bytes.
func WithSocketSendBuffer(sendBuf int) Option {
	return func(opts *Options) {
		opts.SocketSendBuffer = sendBuf
	}
}

// WithTCPNoDelay enable/disable the TCP_NODELAY socket option.
func WithTCPNoDelay(tcpNoDelay TCPSocketOpt) Option {
	return func(opts *Options) {
		opts.TCPNoDelay = tcpNoDelay
	}
}

// WithReuseAddr sets SO_REUSEADDR socket option.
func WithReuseAddr(reuseAddr bool) Option {
	return func(opts *Options) {
		opts.ReuseAddr = reuseAddr
	}
}

// WithReusePort sets SO_REUSEPORT socket option.
func WithReusePort(reusePort bool) Option {
	return func(opts *Options) {
		opts.ReusePort = reusePort
	}
}

// WithLogPath specifies a local path for logger.
func WithLogPath(fileName string) Option {
	return func(opts *Options) {
		opts.LogPath = fileName
	}
}

// WithLogLevel specifies the logging level for the local logging file.
func WithLogLevel(lvl logging.Level) Option {
	return func(opts *Options) {
		opts.LogLevel = lvl
	}
}

// WithLogger specifies a customized logger.
func WithLogger(logger logging.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

func (opts *Options) readBufferCap() int {
	switch rbc := opts.ReadBufferCap; {
	case rbc <= 0:
		return DefaultReadBufferCap
	case rbc <= MinReadBufferCap:
		return MinReadBufferCap
	default:
		return math.CeilToPowerOfTwo(rbc)
	}
}

func (opts *Options) logger() logging.Logger {
	if opts.Logger != nil {
		return opts.Logger
	}
	return logging.GetDefaultLogger()
}
