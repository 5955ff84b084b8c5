package drive

import (
	"fmt"
	"math"
	"strings"
)

// InputEvent is the set of manual keys held during a tick.
type InputEvent uint8

const (
	EventForward InputEvent = 1 << iota
	EventBack
	EventLeft
	EventRight
	EventStop

	// NoInput means no key was held.
	NoInput InputEvent = 0
)

const moveKeys = EventForward | EventBack | EventLeft | EventRight

// Has reports whether every key in k is held.
func (e InputEvent) Has(k InputEvent) bool { return e&k == k }

func (e InputEvent) String() string {
	if e == NoInput {
		return "none"
	}
	var names []string
	for _, k := range []struct {
		ev   InputEvent
		name string
	}{
		{EventForward, "forward"},
		{EventBack, "back"},
		{EventLeft, "left"},
		{EventRight, "right"},
		{EventStop, "stop"},
	} {
		if e.Has(k.ev) {
			names = append(names, k.name)
		}
	}
	return strings.Join(names, "+")
}

// ParseInputEvent converts a key name to its event.
func ParseInputEvent(name string) (InputEvent, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "forward", "up":
		return EventForward, nil
	case "back", "down", "backward":
		return EventBack, nil
	case "left":
		return EventLeft, nil
	case "right":
		return EventRight, nil
	case "stop", "space":
		return EventStop, nil
	default:
		return NoInput, fmt.Errorf("unknown input key %q", name)
	}
}

// ManualConfig tunes the keyboard ramp.
type ManualConfig struct {
	Step          float64 `json:"step"`
	ReverseBoost  float64 `json:"reverse_boost"`
	Decay         float64 `json:"decay"`
	SnapThreshold float64 `json:"snap_threshold"`
	Limit         float64 `json:"limit"`
}

// DefaultManualConfig returns the stock keyboard ramp.
func DefaultManualConfig() ManualConfig {
	return ManualConfig{
		Step:          0.1,
		ReverseBoost:  0.15,
		Decay:         0.8,
		SnapThreshold: 0.01,
		Limit:         1.0,
	}
}

// ManualOverride is the keyboard ramp/decay state machine. It is inactive
// until a movement key is pressed, and returns to inactive once the decayed
// twist snaps to zero or a stop key is pressed.
type ManualOverride struct {
	cfg    ManualConfig
	active bool
}

// NewManualOverride creates an inactive override.
func NewManualOverride(cfg ManualConfig) *ManualOverride {
	return &ManualOverride{cfg: cfg}
}

// Active reports whether manual input currently owns the twist.
func (m *ManualOverride) Active() bool { return m.active }

// Apply advances the state machine by one tick. resetPID is true when the
// vehicle has just come to a full stop and wheel controllers should discard
// their history.
func (m *ManualOverride) Apply(ev InputEvent, t Twist) (next Twist, resetPID bool) {
	if ev.Has(EventStop) {
		m.active = false
		return Twist{}, true
	}

	if ev&moveKeys != 0 {
		// opposing keys held together cancel
		switch ev & (EventForward | EventBack) {
		case EventForward:
			t.LinearZ = m.rampLinear(t.LinearZ, 1)
		case EventBack:
			t.LinearZ = m.rampLinear(t.LinearZ, -1)
		}
		switch ev & (EventLeft | EventRight) {
		case EventLeft:
			t.AngularY = m.rampAngular(t.AngularY, 1)
		case EventRight:
			t.AngularY = m.rampAngular(t.AngularY, -1)
		}
		m.active = true
		return t, false
	}

	if !m.active {
		return t, false
	}

	t.LinearZ *= m.cfg.Decay
	t.AngularY *= m.cfg.Decay
	linStopped := math.Abs(t.LinearZ) < m.cfg.SnapThreshold
	angStopped := math.Abs(t.AngularY) < m.cfg.SnapThreshold
	if linStopped {
		t.LinearZ = 0
	}
	if angStopped {
		t.AngularY = 0
	}
	if linStopped && angStopped {
		m.active = false
		return t, true
	}
	return t, false
}

// rampLinear steps v one increment toward sign*Limit. From rest the first
// press lands exactly on Step; reversing out of the opposite direction adds
// ReverseBoost on top of the step.
func (m *ManualOverride) rampLinear(v, sign float64) float64 {
	switch {
	case v == 0:
		v = sign * m.cfg.Step
	case v*sign < 0:
		v += sign * (m.cfg.ReverseBoost + m.cfg.Step)
	default:
		v += sign * m.cfg.Step
	}
	return clamp(v, m.cfg.Limit)
}

// rampAngular steps v toward sign*Limit, passing through zero when the turn
// direction reverses.
func (m *ManualOverride) rampAngular(v, sign float64) float64 {
	if v*sign < 0 {
		v = 0
	}
	return clamp(v+sign*m.cfg.Step, m.cfg.Limit)
}

func clamp(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}
