package game

import (
	"context"
	"encoding/json"
	"fmt"
	"game-rpc/message"
	"strconv"
	"strings"
)

const MethodSendDirections = "SendDirections"

// SnakeArgs is the payload of a snake "Action". Every field is text:
// MapSize looks like "16x9", positions like "(3, 4), (3, 5)".
type SnakeArgs struct {
	MapSize            string `json:"MapSize"`
	YourPosition       string `json:"YourPosition"`
	FoodPosition       string `json:"FoodPosition"`
	OtherSnakePosition string `json:"OtherSnakePosition"`
}

// Direction is one unit step. Y grows upwards.
type Direction struct {
	X int `json:"X"`
	Y int `json:"Y"`
}

var (
	Up    = Direction{0, 1}
	Down  = Direction{0, -1}
	Left  = Direction{-1, 0}
	Right = Direction{1, 0}
)

// DirectionsArgs is the payload of a "SendDirections" call.
type DirectionsArgs struct {
	Directions []Direction `json:"directions"`
}

// Snake walks a fixed loop over the grid: it sweeps the columns left to right,
// going up odd columns and down even ones, then climbs the last column and runs
// back along the top row and down column 0 to the origin.
//
// The policy keeps whether it is on the return leg, so one instance serves one game.
type Snake struct {
	returning bool
}

func NewSnake() *Snake {
	return &Snake{}
}

func (p *Snake) HandleMessage(ctx context.Context, msg *message.RPCMessage, s Sender) error {
	if msg.Method != message.MethodAction {
		return fmt.Errorf("%w: %s", ErrUnhandled, msg.Method)
	}

	var args SnakeArgs
	if err := json.Unmarshal(msg.Args, &args); err != nil {
		return fmt.Errorf("game: decode snake action: %w", err)
	}
	width, height, err := ParseMapSize(args.MapSize)
	if err != nil {
		return err
	}
	body, err := ParsePositions(args.YourPosition)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return fmt.Errorf("%w: snake has no body", ErrNoMove)
	}

	dir := p.Next(body[0], width, height)
	return s.Send(ctx, MethodSendDirections, DirectionsArgs{Directions: []Direction{dir}})
}

// Next returns the step to take from head on a width x height grid.
func (p *Snake) Next(head [2]int, width, height int) Direction {
	x, y := head[0], head[1]
	top := height - 1

	if p.returning {
		switch {
		case x == 0 && y == 0:
			p.returning = false
			return Right
		case x == 0:
			return Down
		case y == top:
			return Left
		default:
			return Up
		}
	}

	switch {
	case x == width-1:
		p.returning = true
		if y == top {
			return Left
		}
		return Up
	case x%2 != 0 && y < top:
		return Up
	case x%2 != 0:
		return Right
	case y > 0:
		return Down
	default:
		return Right
	}
}

// ParseMapSize reads "WxH".
func ParseMapSize(s string) (int, int, error) {
	w, h, ok := strings.Cut(s, "x")
	if !ok {
		return 0, 0, fmt.Errorf("game: bad map size %q", s)
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil {
		return 0, 0, fmt.Errorf("game: bad map size %q: %w", s, err)
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil {
		return 0, 0, fmt.Errorf("game: bad map size %q: %w", s, err)
	}
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("game: bad map size %q", s)
	}
	return width, height, nil
}

// ParsePositions reads "(x, y), (x, y), ...". An empty string yields no positions.
func ParsePositions(s string) ([][2]int, error) {
	s = strings.NewReplacer("(", "", ")", "").Replace(s)
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	fields := strings.Split(s, ",")
	if len(fields)%2 != 0 {
		return nil, fmt.Errorf("game: odd coordinate count in %q", s)
	}

	positions := make([][2]int, 0, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		x, err := strconv.Atoi(strings.TrimSpace(fields[i]))
		if err != nil {
			return nil, fmt.Errorf("game: bad position: %w", err)
		}
		y, err := strconv.Atoi(strings.TrimSpace(fields[i+1]))
		if err != nil {
			return nil, fmt.Errorf("game: bad position: %w", err)
		}
		positions = append(positions, [2]int{x, y})
	}
	return positions, nil
}
