package bridge

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync/atomic"

	"github.com/banshee-data/rover-sim/internal/drive"
	"github.com/banshee-data/rover-sim/internal/monitoring"
)

// KeyInput queues manual key presses from a line-oriented source and hands
// them to the simulation one tick at a time. Each press is seen by exactly
// one tick; between presses the drive decays as if the key was released.
type KeyInput struct {
	pending atomic.Uint32
	presses atomic.Int64
}

// NewKeyInput creates an empty key queue.
func NewKeyInput() *KeyInput { return &KeyInput{} }

// Press queues ev for the next tick. Presses arriving within one tick are
// merged.
func (k *KeyInput) Press(ev drive.InputEvent) {
	if ev == drive.NoInput {
		return
	}
	k.pending.Or(uint32(ev))
	k.presses.Add(1)
}

// Next returns the keys pressed since the previous call and clears them.
// It matches sim.Runner's Input hook.
func (k *KeyInput) Next() drive.InputEvent {
	return drive.InputEvent(k.pending.Swap(0))
}

// Presses returns the number of accepted press lines.
func (k *KeyInput) Presses() int64 { return k.presses.Load() }

// ParseKeys parses a line of key names separated by spaces, commas or '+',
// e.g. "forward left" or "up+right".
func ParseKeys(line string) (drive.InputEvent, error) {
	var ev drive.InputEvent
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ',' || r == '+'
	})
	for _, f := range fields {
		k, err := drive.ParseInputEvent(f)
		if err != nil {
			return drive.NoInput, err
		}
		ev |= k
	}
	return ev, nil
}

// ServeLines queues one press per line from r until EOF or ctx is
// cancelled. Unknown keys are logged and the line is skipped.
func (k *KeyInput) ServeLines(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		ev, err := ParseKeys(sc.Text())
		if err != nil {
			monitoring.Logf("[Bridge] %v", err)
			continue
		}
		k.Press(ev)
	}
	return sc.Err()
}
