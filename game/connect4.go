package game

import (
	"context"
	"encoding/json"
	"fmt"
	"game-rpc/message"
	"math/rand/v2"
)

// Connect4 drops a token in a random column that still has room.
// Row 0 is the top of the grid; tokens fall to the highest free row index.
type Connect4 struct {
	rng *rand.Rand
}

func NewConnect4(rng *rand.Rand) *Connect4 {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Connect4{rng: rng}
}

func (p *Connect4) HandleMessage(ctx context.Context, msg *message.RPCMessage, s Sender) error {
	if msg.Method != message.MethodAction {
		return fmt.Errorf("%w: %s", ErrUnhandled, msg.Method)
	}

	var args ActionArgs
	if err := json.Unmarshal(msg.Args, &args); err != nil {
		return fmt.Errorf("game: decode action: %w", err)
	}
	board, err := DecodeBoard(args.Array)
	if err != nil {
		return err
	}

	move, err := p.Pick(board)
	if err != nil {
		return err
	}
	return s.Send(ctx, MethodPutToken, move)
}

// Pick returns the landing cell of a random open column as {x: row, y: column}.
func (p *Connect4) Pick(board [][]int) (Move, error) {
	if len(board) == 0 {
		return Move{}, ErrNoMove
	}
	var open []int
	for col, cell := range board[0] {
		if cell == 0 {
			open = append(open, col)
		}
	}
	if len(open) == 0 {
		return Move{}, ErrNoMove
	}

	col := open[p.rng.IntN(len(open))]
	return Move{X: lowestEmptyRow(board, col), Y: col}, nil
}

func lowestEmptyRow(board [][]int, col int) int {
	for row := len(board) - 1; row >= 0; row-- {
		if col < len(board[row]) && board[row][col] == 0 {
			return row
		}
	}
	return 0
}
