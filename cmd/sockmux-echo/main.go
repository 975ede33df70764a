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

// Command sockmux-echo serves a line echo protocol: every complete line a
// client sends comes back prefixed with "echo: ".
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/panjf2000/sockmux"
	"github.com/panjf2000/sockmux/pkg/logging"
	"github.com/panjf2000/sockmux/pkg/pool/bytebuffer"
)

type echoConn struct {
	sockmux.BuiltinHandler
}

// DataReceived replies to every complete line, a trailing partial line waits
// in the socket context for the rest of it.
func (echoConn) DataReceived(s *sockmux.Socket) error {
	p, err := s.ReceiveAll()
	if err != nil {
		return err
	}
	pending, _ := s.Context().(*bytebuffer.ByteBuffer)
	if pending == nil {
		pending = bytebuffer.Get()
		s.SetContext(pending)
	}
	_, _ = pending.Write(p)

	reply := bytebuffer.Get()
	defer bytebuffer.Put(reply)
	data := pending.B
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		_, _ = reply.WriteString("echo: ")
		_, _ = reply.Write(data[:i+1])
		data = data[i+1:]
	}
	pending.B = append(pending.B[:0], data...)
	if reply.Len() == 0 {
		return nil
	}
	_, err = s.Send(reply.B)
	return err
}

type acceptor struct {
	sockmux.BuiltinHandler

	ln  *sockmux.Listener
	ctl *sockmux.Controller
}

func (a *acceptor) DataReceived(*sockmux.Socket) error {
	accepted, err := a.ln.AcceptAll(a.ctl.Multiplexer, func() sockmux.Handler { return echoConn{} })
	for _, s := range accepted {
		logging.Debugf("accepted %s as handle %d", s.RemoteAddr(), s.Handle())
	}
	return err
}

func release(s *sockmux.Socket) {
	if b, ok := s.Context().(*bytebuffer.ByteBuffer); ok {
		s.SetContext(nil)
		bytebuffer.Put(b)
	}
}

func serve(ctx context.Context, network, addr string, tick time.Duration, opts ...sockmux.Option) error {
	ctl, err := sockmux.NewController(opts...)
	if err != nil {
		return err
	}
	defer ctl.Close() //nolint:errcheck

	acc := &acceptor{ctl: ctl}
	if acc.ln, err = sockmux.Listen(network, addr, acc, sockmux.WithReuseAddr(true)); err != nil {
		return err
	}
	if err = ctl.Register(acc.ln.Socket); err != nil {
		acc.ln.Dispose()
		return err
	}
	logging.Infof("echo server is listening on %s://%s", network, acc.ln.Addr())

	for ctx.Err() == nil {
		events, err := ctl.WaitAndControl(tick, sockmux.ModeAll)
		if err != nil {
			return err
		}
		for _, ev := range events {
			switch ev.Code {
			case sockmux.ControlClosedByPeer:
				logging.Debugf("peer %s closed the connection", ev.Socket.RemoteAddr())
			case sockmux.ControlException:
				if ev.Socket.IsListening() {
					logging.Errorf("listener failed: %v", ev.Err)
					continue
				}
				logging.Warnf("dropping %s: %v", ev.Socket.RemoteAddr(), ev.Err)
			case sockmux.ControlClosedByHost:
			}
			release(ev.Socket)
			ev.Socket.Dispose()
		}
	}
	logging.Infof("echo server is shutting down, %d sockets still open", ctl.Len())
	return nil
}

func main() {
	var (
		network  string
		addr     string
		tick     time.Duration
		logPath  string
		rcvBuf   int
		sndBuf   int
		readSize int
	)
	flag.StringVar(&network, "network", "tcp", "tcp, tcp4, tcp6 or unix")
	flag.StringVar(&addr, "addr", "127.0.0.1:9000", "address to listen on")
	flag.DurationVar(&tick, "timeout", time.Second, "longest wait for readiness between shutdown checks")
	flag.StringVar(&logPath, "log", "", "write logs to this file instead of stdout")
	flag.IntVar(&rcvBuf, "rcvbuf", 0, "SO_RCVBUF of accepted connections, 0 keeps the kernel default")
	flag.IntVar(&sndBuf, "sndbuf", 0, "SO_SNDBUF of accepted connections, 0 keeps the kernel default")
	flag.IntVar(&readSize, "read-buffer", sockmux.DefaultReadBufferCap, "bytes read per syscall")
	flag.Parse()
	defer logging.Cleanup()

	opts := []sockmux.Option{
		sockmux.WithReadBufferCap(readSize),
		sockmux.WithSocketRecvBuffer(rcvBuf),
		sockmux.WithSocketSendBuffer(sndBuf),
	}
	if logPath != "" {
		opts = append(opts, sockmux.WithLogPath(logPath), sockmux.WithLogLevel(logging.InfoLevel))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return serve(ctx, network, addr, tick, opts...)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logging.Errorf("echo server exited: %v", err)
		logging.Cleanup()
		os.Exit(1)
	}
}
