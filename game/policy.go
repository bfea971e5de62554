// Package game holds the move-selection policies the router delegates to.
//
// A policy only sees messages the router does not handle itself (anything other than
// Login, Event and Help). It either answers through the Sender it is given or stays silent.
package game

import (
	"context"
	"errors"
	"fmt"
	"game-rpc/message"
	"sort"
)

var (
	// ErrUnhandled means the policy does not understand the method.
	ErrUnhandled = errors.New("game: unhandled method")
	// ErrNoMove means the board has no legal cell left; nothing is sent.
	ErrNoMove = errors.New("game: no legal move")
)

// Sender is the outbound half of the transport.
type Sender interface {
	Send(ctx context.Context, method string, args any) error
}

// Policy interprets game messages and submits moves.
type Policy interface {
	HandleMessage(ctx context.Context, msg *message.RPCMessage, s Sender) error
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(ctx context.Context, msg *message.RPCMessage, s Sender) error

func (f PolicyFunc) HandleMessage(ctx context.Context, msg *message.RPCMessage, s Sender) error {
	return f(ctx, msg, s)
}

// Silent ignores every message.
var Silent Policy = PolicyFunc(func(ctx context.Context, msg *message.RPCMessage, s Sender) error {
	return fmt.Errorf("%w: %s", ErrUnhandled, msg.Method)
})

var policies = map[string]func() Policy{
	"tictactoe": func() Policy { return NewTicTacToe(nil) },
	"connect4":  func() Policy { return NewConnect4(nil) },
	"snake":     func() Policy { return NewSnake() },
	"silent":    func() Policy { return Silent },
}

// Lookup returns a fresh policy for the configured game name.
func Lookup(name string) (Policy, error) {
	newPolicy, ok := policies[name]
	if !ok {
		return nil, fmt.Errorf("game: unknown policy %q (known: %v)", name, Names())
	}
	return newPolicy(), nil
}

// Names lists the registered policies.
func Names() []string {
	names := make([]string, 0, len(policies))
	for name := range policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
