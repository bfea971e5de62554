package game

import (
	"context"
	"encoding/json"
	"fmt"
	"game-rpc/message"
	"math/rand/v2"
)

const MethodPutToken = "PutToken"

// ActionArgs is the payload of an "Action" message. Array carries the board,
// usually as a JSON string holding the matrix.
type ActionArgs struct {
	Array json.RawMessage `json:"Array"`
}

// Move is the payload of a "PutToken" call.
type Move struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// TicTacToe answers every Action with a random empty cell.
type TicTacToe struct {
	rng *rand.Rand
}

// NewTicTacToe creates the placeholder policy. A nil rng uses a randomly seeded one.
func NewTicTacToe(rng *rand.Rand) *TicTacToe {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &TicTacToe{rng: rng}
}

func (p *TicTacToe) HandleMessage(ctx context.Context, msg *message.RPCMessage, s Sender) error {
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

// Pick chooses a random cell whose value is 0.
func (p *TicTacToe) Pick(board [][]int) (Move, error) {
	var free []Move
	for x, row := range board {
		for y, cell := range row {
			if cell == 0 {
				free = append(free, Move{X: x, Y: y})
			}
		}
	}
	if len(free) == 0 {
		return Move{}, ErrNoMove
	}
	return free[p.rng.IntN(len(free))], nil
}

// DecodeBoard accepts the board either as a JSON matrix or as a string holding one.
func DecodeBoard(raw json.RawMessage) ([][]int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("game: action without board")
	}

	var board [][]int
	if raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, fmt.Errorf("game: decode board: %w", err)
		}
		raw = json.RawMessage(encoded)
	}
	if err := json.Unmarshal(raw, &board); err != nil {
		return nil, fmt.Errorf("game: decode board: %w", err)
	}
	return board, nil
}
