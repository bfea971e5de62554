package message

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"Login":  KindLogin,
		"Event":  KindEvent,
		"Help":   KindHelp,
		"Action": KindOther,
		"login":  KindOther, // case-sensitive
		"":       KindOther,
	}
	for method, want := range cases {
		assert.Equal(t, want, ParseKind(method), "ParseKind(%q)", method)
	}
}

func TestWireKeyCasing(t *testing.T) {
	out, err := json.Marshal(&Call{Method: "Login", Args: LoginArgs{UUID: "abc"}})
	require.NoError(t, err)
	assert.Equal(t, `{"method":"Login","args":{"UUID":"abc"}}`, string(out))

	msg, err := NewRPCMessage("Event", EventArgs{MethodName: EventServerClosing})
	require.NoError(t, err)
	in, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.Equal(t, `{"Method":"Event","Args":{"MethodName":"ServerClosing"}}`, string(in))
}

func TestEventArgs(t *testing.T) {
	var msg RPCMessage
	require.NoError(t, json.Unmarshal([]byte(`{"Method":"Event","Args":{"MethodName":"ServerClosing"}}`), &msg))
	ev, err := msg.Event()
	require.NoError(t, err)
	assert.Equal(t, EventServerClosing, ev.MethodName)

	empty := RPCMessage{Method: "Event", Args: json.RawMessage("null")}
	assert.False(t, empty.HasArgs(), "null payload should not count as args")
	ev, err = empty.Event()
	require.NoError(t, err)
	assert.Empty(t, ev.MethodName)
}
