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

import "strconv"

// Handle identifies a socket registered with a Multiplexer. It is the index of
// the slot holding the socket and is what the kernel hands back with every
// readiness notification.
type Handle int

// InvalidHandle is the handle of a socket that is not registered.
const InvalidHandle Handle = -1

// EventCode classifies one raw readiness notification.
type EventCode uint8

const (
	// EventIncomingConnection means a listening socket has connections waiting to be accepted.
	EventIncomingConnection EventCode = iota
	// EventDataIn means the socket became readable.
	EventDataIn
	// EventDataOut means the socket became writable.
	EventDataOut
	// EventReadHangup means the peer shut down its writing half.
	EventReadHangup
	// EventHangup means the connection is gone in both directions.
	EventHangup
	// EventError means the socket has a pending error.
	EventError
)

var eventCodeNames = [...]string{
	EventIncomingConnection: "IncomingConnection",
	EventDataIn:             "DataIn",
	EventDataOut:            "DataOut",
	EventReadHangup:         "ReadHangup",
	EventHangup:             "Hangup",
	EventError:              "Error",
}

func (c EventCode) String() string {
	if int(c) < len(eventCodeNames) {
		return eventCodeNames[c]
	}
	return "EventCode(" + strconv.Itoa(int(c)) + ")"
}

// Event is a classified readiness notification for one socket.
type Event struct {
	Handle Handle
	Socket *Socket
	Code   EventCode
}

// ControlCode is the session-level outcome reported by Controller.WaitAndControl.
type ControlCode uint8

const (
	// ControlClosedByPeer means the remote end closed or reset the connection.
	ControlClosedByPeer ControlCode = iota
	// ControlClosedByHost means the socket was closed locally while it was being serviced.
	ControlClosedByHost
	// ControlException means servicing the socket failed, Err holds the cause.
	ControlException
)

var controlCodeNames = [...]string{
	ControlClosedByPeer: "ClosedByPeer",
	ControlClosedByHost: "ClosedByHost",
	ControlException:    "Exception",
}

func (c ControlCode) String() string {
	if int(c) < len(controlCodeNames) {
		return controlCodeNames[c]
	}
	return "ControlCode(" + strconv.Itoa(int(c)) + ")"
}

// ControlEvent reports a state change of a socket that the application has to act on.
type ControlEvent struct {
	Socket *Socket
	Code   ControlCode
	Err    error
}

// Mode selects which kinds of readiness WaitAndControl services. Hangups and
// errors are always serviced.
type Mode uint8

const (
	// ModeListen services incoming connections on listening sockets.
	ModeListen Mode = 1 << iota
	// ModeRead drains readable sockets.
	ModeRead
	// ModeWrite flushes writable sockets.
	ModeWrite

	// ModeAll enables everything, it is the default.
	ModeAll = ModeListen | ModeRead | ModeWrite
)

// Has reports whether every flag of f is enabled in m.
func (m Mode) Has(f Mode) bool {
	return m&f == f
}
