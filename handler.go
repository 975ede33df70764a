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

// Handler is the behavior of a socket, one implementation per connection role
// (listener, client, accepted connection). The hooks run on the goroutine
// calling Controller.WaitAndControl; an error or a panic from a hook is
// reported as a ControlException event for that socket.
type Handler interface {
	// DataReceived fires after every non-empty read while the socket is being drained,
	// the freshly arrived bytes are already available through Receive and ReceiveAll.
	// On a listening socket it fires once per batch in which connections are pending,
	// the handler must accept until ErrSocketNoneConnecting.
	DataReceived(s *Socket) error

	// ReadyToSend fires after each write-drain triggered by writability.
	ReadyToSend(s *Socket) error

	// ClosedByPeer fires when the remote end has closed or reset the connection,
	// right after the ControlClosedByPeer event is recorded.
	ClosedByPeer(s *Socket)
}

// BuiltinHandler is a built-in implementation of Handler which does nothing,
// embed it to implement only the hooks you need.
type BuiltinHandler struct{}

// DataReceived fires after bytes arrive.
func (BuiltinHandler) DataReceived(*Socket) error { return nil }

// ReadyToSend fires after a write-drain.
func (BuiltinHandler) ReadyToSend(*Socket) error { return nil }

// ClosedByPeer fires when the peer is gone.
func (BuiltinHandler) ClosedByPeer(*Socket) {}
