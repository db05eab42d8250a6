package waitbuf

import (
	"fmt"
	"strings"

	"github.com/gammazero/deque"
)

// Strategy selects where a newly pushed value lands in a buffer. Values always
// leave from the front, so the strategy alone decides the delivery order.
type Strategy uint8

const (
	// FIFO appends at the back: values leave in arrival order.
	FIFO Strategy = iota
	// LIFO prepends at the front: the most recent value leaves first.
	LIFO
)

// Insert places v into d according to s.
func Insert[T any](s Strategy, d *deque.Deque[T], v T) {
	switch s {
	case LIFO:
		d.PushFront(v)
	default:
		d.PushBack(v)
	}
}

func (s Strategy) String() string {
	switch s {
	case FIFO:
		return "fifo"
	case LIFO:
		return "lifo"
	default:
		return fmt.Sprintf("strategy(%d)", uint8(s))
	}
}

// Valid reports whether s is one of the known strategies.
func (s Strategy) Valid() bool {
	return s == FIFO || s == LIFO
}

// ParseStrategy converts "fifo" or "lifo" (any case) into a Strategy.
func ParseStrategy(text string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "", "fifo":
		return FIFO, nil
	case "lifo":
		return LIFO, nil
	default:
		return FIFO, fmt.Errorf("%w: %q", ErrUnknownStrategy, text)
	}
}

func (s Strategy) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStrategy, uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
