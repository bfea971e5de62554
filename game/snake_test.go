package game

import (
	"context"
	"game-rpc/message"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snakeAction(t *testing.T, args SnakeArgs) *message.RPCMessage {
	t.Helper()
	msg, err := message.NewRPCMessage(message.MethodAction, args)
	require.NoError(t, err)
	return msg
}

func TestSnakeSendsDirections(t *testing.T) {
	p := NewSnake()
	s := &fakeSender{}

	err := p.HandleMessage(context.Background(), snakeAction(t, SnakeArgs{
		MapSize:            "16x9",
		YourPosition:       "(1, 3), (1, 2), (1, 1)",
		FoodPosition:       "(5, 5)",
		OtherSnakePosition: "",
	}), s)
	require.NoError(t, err)

	require.Len(t, s.calls, 1)
	assert.Equal(t, MethodSendDirections, s.calls[0].method)
	assert.Equal(t, DirectionsArgs{Directions: []Direction{Up}}, s.calls[0].args)
}

// Following the policy from the origin must sweep the grid and come back.
func TestSnakeLoopReturnsToOrigin(t *testing.T) {
	p := NewSnake()
	const width, height = 4, 3

	head := [2]int{0, 0}
	visited := map[[2]int]bool{head: true}
	for step := 0; step < 100; step++ {
		d := p.Next(head, width, height)
		head = [2]int{head[0] + d.X, head[1] + d.Y}
		require.True(t, head[0] >= 0 && head[0] < width && head[1] >= 0 && head[1] < height,
			"step %d left the grid at %v", step, head)
		visited[head] = true
		if head == [2]int{0, 0} {
			break
		}
	}

	assert.Equal(t, [2]int{0, 0}, head, "loop never closed")
	assert.Len(t, visited, width*height)

	// Back at the origin the sweep starts over
	assert.Equal(t, Right, p.Next(head, width, height))
	assert.False(t, p.returning)
}

func TestSnakeBadPayload(t *testing.T) {
	p := NewSnake()
	s := &fakeSender{}

	err := p.HandleMessage(context.Background(), snakeAction(t, SnakeArgs{MapSize: "sixteen", YourPosition: "(0, 0)"}), s)
	assert.Error(t, err)

	err = p.HandleMessage(context.Background(), snakeAction(t, SnakeArgs{MapSize: "16x9"}), s)
	assert.ErrorIs(t, err, ErrNoMove)
	assert.Empty(t, s.calls)

	err = p.HandleMessage(context.Background(), &message.RPCMessage{Method: "Scoreboard"}, s)
	assert.ErrorIs(t, err, ErrUnhandled)
}

func TestParsePositions(t *testing.T) {
	got, err := ParsePositions("(3, 4), (3,5),(10, 0)")
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{3, 4}, {3, 5}, {10, 0}}, got)

	got, err = ParsePositions("")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ParsePositions("(1, 2), (3)")
	assert.Error(t, err)
}
