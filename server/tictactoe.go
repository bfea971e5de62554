package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"game-rpc/game"
	"game-rpc/message"
	"math/rand/v2"
)

const methodPutToken = game.MethodPutToken

const (
	empty  = 0
	player = 1
	bot    = 2
)

var (
	errNotLoggedIn  = errors.New("login first")
	errOutOfBounds  = errors.New("cell out of bounds")
	errCellOccupied = errors.New("cell already taken")
)

type board struct {
	cells [3][3]int
}

func newBoard() *board {
	return &board{}
}

// encode renders the board the way the game server does: a JSON matrix inside a string.
func (b *board) encode() (string, error) {
	rows := make([][]int, len(b.cells))
	for i := range b.cells {
		rows[i] = b.cells[i][:]
	}
	out, err := json.Marshal(rows)
	return string(out), err
}

func (b *board) put(x, y, who int) error {
	if x < 0 || x >= 3 || y < 0 || y >= 3 {
		return errOutOfBounds
	}
	if b.cells[x][y] != empty {
		return errCellOccupied
	}
	b.cells[x][y] = who
	return nil
}

func (b *board) free() [][2]int {
	var cells [][2]int
	for x := range b.cells {
		for y := range b.cells[x] {
			if b.cells[x][y] == empty {
				cells = append(cells, [2]int{x, y})
			}
		}
	}
	return cells
}

// winner returns the token owning a full line, or empty.
func (b *board) winner() int {
	c := &b.cells
	lines := [8][3][2]int{
		{{0, 0}, {0, 1}, {0, 2}}, {{1, 0}, {1, 1}, {1, 2}}, {{2, 0}, {2, 1}, {2, 2}},
		{{0, 0}, {1, 0}, {2, 0}}, {{0, 1}, {1, 1}, {2, 1}}, {{0, 2}, {1, 2}, {2, 2}},
		{{0, 0}, {1, 1}, {2, 2}}, {{0, 2}, {1, 1}, {2, 0}},
	}
	for _, l := range lines {
		v := c[l[0][0]][l[0][1]]
		if v != empty && v == c[l[1][0]][l[1][1]] && v == c[l[2][0]][l[2][1]] {
			return v
		}
	}
	return empty
}

func (s *Server) handleLogin(ctx context.Context, c *Conn, args json.RawMessage) error {
	var login message.LoginArgs
	if err := json.Unmarshal(args, &login); err != nil {
		return fmt.Errorf("bad login: %w", err)
	}
	if login.UUID == "" {
		return errors.New("login without UUID")
	}
	c.uuid = login.UUID
	s.log.Info("client logged in", "uuid", c.uuid)
	return s.startGame(c)
}

func (s *Server) handleHelp(ctx context.Context, c *Conn, args json.RawMessage) error {
	return c.Send(message.MethodHelp, map[string]any{
		"Commands": []string{message.MethodLogin, methodPutToken, message.MethodHelp},
	})
}

func (s *Server) handlePutToken(ctx context.Context, c *Conn, args json.RawMessage) error {
	if c.uuid == "" {
		return errNotLoggedIn
	}
	var mv game.Move
	if err := json.Unmarshal(args, &mv); err != nil {
		return fmt.Errorf("bad move: %w", err)
	}
	if err := c.board.put(mv.X, mv.Y, player); err != nil {
		return err
	}
	if s.finished(c) {
		return s.endGame(c)
	}

	free := c.board.free()
	cell := free[rand.IntN(len(free))]
	c.board.put(cell[0], cell[1], bot)
	if s.finished(c) {
		return s.endGame(c)
	}
	return s.sendBoard(c)
}

func (s *Server) finished(c *Conn) bool {
	return c.board.winner() != empty || len(c.board.free()) == 0
}

func (s *Server) startGame(c *Conn) error {
	c.board = newBoard()
	if err := c.Send(message.MethodEvent, map[string]string{"MethodName": "GameStart"}); err != nil {
		return err
	}
	return s.sendBoard(c)
}

func (s *Server) endGame(c *Conn) error {
	result := "draw"
	switch c.board.winner() {
	case player:
		result = "win"
	case bot:
		result = "loss"
	}
	c.played++
	s.log.Info("game over", "uuid", c.uuid, "result", result, "played", c.played)

	if err := c.Send(message.MethodEvent, map[string]string{"MethodName": "GameOver", "Result": result}); err != nil {
		return err
	}
	if s.maxGames > 0 && c.played >= s.maxGames {
		c.closeWithNotice()
		return nil
	}
	return s.startGame(c)
}

func (s *Server) sendBoard(c *Conn) error {
	encoded, err := c.board.encode()
	if err != nil {
		return err
	}
	return c.Send(message.MethodAction, map[string]string{"Array": encoded})
}
