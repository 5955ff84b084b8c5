package drive

import (
	"fmt"
	"sort"
)

// ScriptStep holds keys from tick At up to, but not including, Until. An
// Until of zero holds the keys for a single tick.
type ScriptStep struct {
	At    int      `yaml:"at"`
	Until int      `yaml:"until,omitempty"`
	Keys  []string `yaml:"keys"`
}

type scriptSpan struct {
	from, to int
	ev       InputEvent
}

// Script replays manual input by tick number.
type Script struct {
	spans []scriptSpan
}

// NewScript validates the steps and builds a script.
func NewScript(steps []ScriptStep) (*Script, error) {
	s := &Script{spans: make([]scriptSpan, 0, len(steps))}
	for i, st := range steps {
		if st.At < 0 {
			return nil, fmt.Errorf("script step %d: at must be >= 0, got %d", i, st.At)
		}
		to := st.Until
		if to == 0 {
			to = st.At + 1
		}
		if to <= st.At {
			return nil, fmt.Errorf("script step %d: until %d must be after at %d", i, st.Until, st.At)
		}
		var ev InputEvent
		for _, k := range st.Keys {
			e, err := ParseInputEvent(k)
			if err != nil {
				return nil, fmt.Errorf("script step %d: %w", i, err)
			}
			ev |= e
		}
		s.spans = append(s.spans, scriptSpan{from: st.At, to: to, ev: ev})
	}
	sort.SliceStable(s.spans, func(a, b int) bool { return s.spans[a].from < s.spans[b].from })
	return s, nil
}

// EventsAt returns the union of keys held at tick.
func (s *Script) EventsAt(tick int) InputEvent {
	if s == nil {
		return NoInput
	}
	var ev InputEvent
	for _, sp := range s.spans {
		if sp.from > tick {
			break
		}
		if tick < sp.to {
			ev |= sp.ev
		}
	}
	return ev
}

// Len returns the number of steps.
func (s *Script) Len() int {
	if s == nil {
		return 0
	}
	return len(s.spans)
}
