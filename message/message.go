// Package message defines the RPC envelopes exchanged with the game server.
//
// The wire is asymmetric: the server sends {"Method": ..., "Args": ...} and expects
// calls shaped as {"method": ..., "args": ...}. Both shapes are kept as distinct types
// so the key casing can never be mixed up.
package message

import "encoding/json"

// Method names understood by the client core.
const (
	MethodLogin  = "Login"
	MethodEvent  = "Event"
	MethodHelp   = "Help"
	MethodAction = "Action"

	EventServerClosing = "ServerClosing"
)

// RPCMessage is an inbound envelope (server → client).
//
//   - Method names the call or event, e.g. "Login", "Event", "Action".
//   - Args is left raw; its shape depends on Method and is decoded by whoever handles it.
type RPCMessage struct {
	Method string          `json:"Method"`
	Args   json.RawMessage `json:"Args"`
}

// Call is an outbound envelope (client → server).
type Call struct {
	Method string `json:"method"`
	Args   any    `json:"args"`
}

// EventArgs is the payload of an "Event" message.
type EventArgs struct {
	MethodName string `json:"MethodName"`
}

// LoginArgs is the payload of the client's "Login" reply.
type LoginArgs struct {
	UUID string `json:"UUID"`
}

// Kind is the closed set of methods the router handles itself.
// Everything else is KindOther and goes to the game policy untouched.
type Kind int

const (
	KindOther Kind = iota
	KindLogin
	KindEvent
	KindHelp
)

func (k Kind) String() string {
	switch k {
	case KindLogin:
		return MethodLogin
	case KindEvent:
		return MethodEvent
	case KindHelp:
		return MethodHelp
	default:
		return "Other"
	}
}

// ParseKind maps a method name to its Kind. Matching is case-sensitive.
func ParseKind(method string) Kind {
	switch method {
	case MethodLogin:
		return KindLogin
	case MethodEvent:
		return KindEvent
	case MethodHelp:
		return KindHelp
	default:
		return KindOther
	}
}

// Kind returns the dispatch kind of the message.
func (m *RPCMessage) Kind() Kind {
	return ParseKind(m.Method)
}

// HasArgs reports whether the message carries a non-null payload.
func (m *RPCMessage) HasArgs() bool {
	return len(m.Args) > 0 && string(m.Args) != "null"
}

// Event decodes Args as an event payload. A missing payload yields a zero EventArgs.
func (m *RPCMessage) Event() (EventArgs, error) {
	var ev EventArgs
	if !m.HasArgs() {
		return ev, nil
	}
	err := json.Unmarshal(m.Args, &ev)
	return ev, err
}

// NewRPCMessage builds an inbound-shaped envelope, marshalling args into the raw payload.
func NewRPCMessage(method string, args any) (*RPCMessage, error) {
	msg := &RPCMessage{Method: method}
	if args == nil {
		return msg, nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	msg.Args = raw
	return msg, nil
}
