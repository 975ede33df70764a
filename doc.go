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

/*
Package sockmux is a single-threaded, edge-triggered socket multiplexer for Linux.

A Socket owns one non-blocking descriptor with an outbound and an inbound byte
queue. A Multiplexer watches sockets through epoll and classifies what the
kernel reports. A Controller drains the ready sockets, runs their Handler
hooks and boils everything down to three control events: the peer closed,
the host closed, or servicing the socket failed.

Line echo server built upon sockmux is shown below:

	type echo struct {
		sockmux.BuiltinHandler
	}

	func (echo) DataReceived(s *sockmux.Socket) error {
		p, _ := s.ReceiveAll()
		_, err := s.Send(p)
		return err
	}

	type acceptor struct {
		sockmux.BuiltinHandler
		ln  *sockmux.Listener
		ctl *sockmux.Controller
	}

	func (a *acceptor) DataReceived(*sockmux.Socket) error {
		_, err := a.ln.AcceptAll(a.ctl.Multiplexer, func() sockmux.Handler { return echo{} })
		return err
	}

	func main() {
		ctl, _ := sockmux.NewController()
		acc := &acceptor{ctl: ctl}
		acc.ln, _ = sockmux.Listen("tcp", "127.0.0.1:9000", acc, sockmux.WithReuseAddr(true))
		_ = ctl.Register(acc.ln.Socket)
		for {
			events, err := ctl.WaitAndControl(time.Second, sockmux.ModeAll)
			if err != nil {
				log.Fatal(err)
			}
			for _, ev := range events {
				_ = ev.Socket.Close()
			}
		}
	}
*/
package sockmux
