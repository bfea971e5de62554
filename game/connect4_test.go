package game

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect4DropsIntoOpenColumn(t *testing.T) {
	p := NewConnect4(rand.New(rand.NewPCG(3, 4)))
	s := &fakeSender{}

	// Only column 4 has room; its lowest free cell is row 2
	board := "[[1,2,1,2,0,1,2],[1,2,1,2,0,1,2],[2,1,2,1,0,2,1],[1,2,1,2,1,1,2],[2,1,2,1,2,2,1],[1,2,1,2,1,1,2]]"
	require.NoError(t, p.HandleMessage(context.Background(), action(t, board), s))

	require.Len(t, s.calls, 1)
	assert.Equal(t, MethodPutToken, s.calls[0].method)
	assert.Equal(t, Move{X: 2, Y: 4}, s.calls[0].args)
}

func TestConnect4EmptyBoardLandsOnBottomRow(t *testing.T) {
	p := NewConnect4(nil)
	board := make([][]int, 6)
	for i := range board {
		board[i] = make([]int, 7)
	}

	for i := 0; i < 20; i++ {
		mv, err := p.Pick(board)
		require.NoError(t, err)
		assert.Equal(t, 5, mv.X)
		assert.GreaterOrEqual(t, mv.Y, 0)
		assert.Less(t, mv.Y, 7)
	}
}

func TestConnect4NoValidMove(t *testing.T) {
	p := NewConnect4(nil)
	s := &fakeSender{}

	full := [][]int{{1, 2, 1, 2, 1, 2, 1}, {2, 1, 2, 1, 2, 1, 2}}
	err := p.HandleMessage(context.Background(), action(t, full), s)
	assert.ErrorIs(t, err, ErrNoMove)
	assert.Empty(t, s.calls)
}
