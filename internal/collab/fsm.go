package collab

import "fmt"

// State is a conversation state.
type State string

const (
	StateIdle      State = "idle"
	StateBriefed   State = "briefed"
	StateTurn      State = "turn"
	StateConcluded State = "concluded"
	StateTimedOut  State = "timed_out"
	StateFailed    State = "failed"
)

var transitions = map[State][]State{
	StateIdle:    {StateBriefed, StateFailed},
	StateBriefed: {StateTurn, StateTimedOut, StateFailed},
	StateTurn:    {StateTurn, StateConcluded, StateTimedOut, StateFailed},
}

// Terminal reports whether no further transitions are allowed from s.
func (s State) Terminal() bool {
	return s == StateConcluded || s == StateTimedOut || s == StateFailed
}

// machine tracks the current state and rejects transitions the conversation does not allow.
type machine struct {
	state State
}

func newMachine() *machine {
	return &machine{state: StateIdle}
}

func (m *machine) to(next State) error {
	for _, allowed := range transitions[m.state] {
		if allowed == next {
			m.state = next
			return nil
		}
	}
	return fmt.Errorf("invalid transition %s -> %s", m.state, next)
}
