package command

import (
	"encoding/json"
	"fmt"
)

// Kind identifies what the rover should do.
type Kind string

// Primitive kinds are transmitted to the device as-is.
const (
	KindMoveForward            Kind = "move_forward"
	KindMoveBackward           Kind = "move_backward"
	KindRotateClockwise        Kind = "rotate_clockwise"
	KindRotateCounterClockwise Kind = "rotate_counterclockwise"
	KindStop                   Kind = "stop"
)

// Intermediate kinds carry richer parameters. Expanding them into primitive
// motions is the device's responsibility, not this pipeline's.
const (
	KindTurnLeft             Kind = "turn_left"
	KindTurnRight            Kind = "turn_right"
	KindMoveForwardForTime   Kind = "move_forward_for_time"
	KindMoveBackwardForTime  Kind = "move_backward_for_time"
	KindMakeSquare           Kind = "make_square"
	KindMakeCircle           Kind = "make_circle"
	KindMakeStar             Kind = "make_star"
	KindZigzag               Kind = "zigzag"
	KindSpin                 Kind = "spin"
	KindDance                Kind = "dance"
)

// Priority bands. These are the only two values the pipeline produces.
const (
	PriorityStop   = 100
	PriorityNormal = 0
)

// requiredParams lists the parameter keys each kind must carry. Checked at
// construction so that a Command is always well-formed once it exists.
var requiredParams = map[Kind][]string{
	KindMoveForward:            {"speed"},
	KindMoveBackward:           {"speed"},
	KindRotateClockwise:        {"speed"},
	KindRotateCounterClockwise: {"speed"},
	KindStop:                   {},
	KindTurnLeft:               {"speed", "angle"},
	KindTurnRight:              {"speed", "angle"},
	KindMoveForwardForTime:     {"speed", "duration"},
	KindMoveBackwardForTime:    {"speed", "duration"},
	KindMakeSquare:             {"speed", "side"},
	KindMakeCircle:             {"speed", "radius"},
	KindMakeStar:               {"speed", "size"},
	KindZigzag:                 {"speed", "segment"},
	KindSpin:                   {"speed"},
	KindDance:                  {"speed"},
}

// Command is an immutable unit of work produced by the parser and consumed
// by the transport. Ownership transfers builder -> queue -> transport; it is
// never shared between goroutines.
type Command struct {
	Kind       Kind
	Parameters map[string]any
	Priority   int
}

// New builds a validated Command. The parameter map is copied, so callers
// may reuse their own map afterwards.
func New(kind Kind, params map[string]any, priority int) (Command, error) {
	required, ok := requiredParams[kind]
	if !ok {
		return Command{}, fmt.Errorf("unknown command kind %q", kind)
	}

	for _, key := range required {
		if _, present := params[key]; !present {
			return Command{}, fmt.Errorf("command %s missing required parameter %q", kind, key)
		}
	}

	copied := make(map[string]any, len(params))
	for k, v := range params {
		copied[k] = v
	}

	return Command{Kind: kind, Parameters: copied, Priority: priority}, nil
}

// Stop returns the emergency-stop command. It carries no parameters and
// always uses the stop priority band.
func Stop() Command {
	return Command{Kind: KindStop, Parameters: map[string]any{}, Priority: PriorityStop}
}

// IsStop reports whether this is the emergency-stop command.
func (c Command) IsStop() bool {
	return c.Kind == KindStop
}

// IsPrimitive reports whether the device executes this kind directly.
func (c Command) IsPrimitive() bool {
	switch c.Kind {
	case KindMoveForward, KindMoveBackward, KindRotateClockwise, KindRotateCounterClockwise, KindStop:
		return true
	}
	return false
}

func (c Command) String() string {
	return fmt.Sprintf("%s(priority=%d)", c.Kind, c.Priority)
}

// wireCommand is the on-the-wire shape: one JSON object per line.
type wireCommand struct {
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters"`
	Priority   int            `json:"priority"`
}

// Encode serializes the command to its single-line wire form, without the
// trailing newline. The transport appends the line terminator.
func (c Command) Encode() ([]byte, error) {
	params := c.Parameters
	if params == nil {
		params = map[string]any{}
	}
	return json.Marshal(wireCommand{
		Command:    string(c.Kind),
		Parameters: params,
		Priority:   c.Priority,
	})
}
