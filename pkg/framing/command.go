package framing

import "errors"

// ErrMalformedCommand is returned for a command frame that cannot be parsed.
var ErrMalformedCommand = errors.New("framing: malformed command")

// CommandSet holds every byte that starts a command frame.
const CommandSet = "QSFRGMN"

// CommandLen is the command character plus three digits.
const CommandLen = 4

// FrameLen is CommandLen plus one terminator byte.
const FrameLen = CommandLen + 1

// MaxPercent is the largest accepted drive percentage.
const MaxPercent = 100

// Op is a command character.
type Op byte

const (
	OpQuit     Op = 'Q'
	OpStop     Op = 'S'
	OpForward  Op = 'F'
	OpReverse  Op = 'R'
	OpGo       Op = 'G'
	OpSprayOn  Op = 'M'
	OpSprayOff Op = 'N'
)

func (o Op) String() string {
	switch o {
	case OpQuit:
		return "quit"
	case OpStop:
		return "stop"
	case OpForward:
		return "forward"
	case OpReverse:
		return "reverse"
	case OpGo:
		return "go"
	case OpSprayOn:
		return "spray-on"
	case OpSprayOff:
		return "spray-off"
	}
	return "unknown"
}

// IsCommandChar reports whether b is one of CommandSet.
func IsCommandChar(b byte) bool {
	for i := 0; i < len(CommandSet); i++ {
		if CommandSet[i] == b {
			return true
		}
	}
	return false
}

// Command is a parsed host command. Percent is meaningful for OpForward and
// OpReverse only.
type Command struct {
	Op      Op
	Percent uint8
}

// ParseCommand decodes a command frame. Only the first CommandLen bytes are
// inspected; the terminator is ignored.
func ParseCommand(frame []byte) (Command, error) {
	if len(frame) < CommandLen || !IsCommandChar(frame[0]) {
		return Command{}, ErrMalformedCommand
	}
	c := Command{Op: Op(frame[0])}
	if c.Op != OpForward && c.Op != OpReverse {
		return c, nil
	}
	pct := 0
	for _, d := range frame[1:CommandLen] {
		if d < '0' || d > '9' {
			return Command{}, ErrMalformedCommand
		}
		pct = pct*10 + int(d-'0')
	}
	if pct > MaxPercent {
		pct = MaxPercent
	}
	c.Percent = uint8(pct)
	return c, nil
}

// Encode appends the wire form of c to dst, e.g. "F053\n".
func (c Command) Encode(dst []byte) []byte {
	pct := c.Percent
	if pct > MaxPercent {
		pct = MaxPercent
	}
	return append(dst, byte(c.Op), '0'+pct/100, '0'+pct/10%10, '0'+pct%10, '\n')
}

func (c Command) String() string {
	return string(c.Encode(nil)[:CommandLen])
}
