// Package graph wires mission sequencers into an executable plan graph.
//
// The machine itself is a thin router: states do the work, outcomes pick
// the next state name, and two reserved terminals end the run.
package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/fieldrover/wayfarer/internal/logging"
	"github.com/fieldrover/wayfarer/internal/models"
)

// Terminal state names every plan graph ends in.
const (
	Success = "success"
	Failure = "failure"
)

// Graph errors.
var (
	ErrDuplicateState = errors.New("state already registered")
	ErrUnknownState   = errors.New("unknown state")
	ErrNoStart        = errors.New("start state not set")
	ErrNoTransition   = errors.New("no transition for outcome")
)

// State is one executable node. Execute runs a single activation and
// returns the outcome used to route to the next node.
type State interface {
	Execute(ctx context.Context) (models.Outcome, error)
}

// Transitions maps an activation outcome to the next state name.
type Transitions map[models.Outcome]string

type node struct {
	state       State
	transitions Transitions
}

// Machine holds a name-keyed set of states and the transition table
// between them. AddState and SetStart are called during assembly, before
// Run; Current may be read concurrently while Run executes.
type Machine struct {
	logger zerolog.Logger
	states map[string]node
	start  string

	mu      sync.RWMutex
	current string
}

// New creates an empty Machine.
func New() *Machine {
	return &Machine{
		logger: logging.Component("graph"),
		states: make(map[string]node),
	}
}

// AddState registers a state under a unique, non-terminal name.
func (m *Machine) AddState(name string, state State, transitions Transitions) error {
	if name == "" {
		return errors.New("state name is required")
	}
	if name == Success || name == Failure {
		return fmt.Errorf("%q is a reserved terminal name", name)
	}
	if state == nil {
		return fmt.Errorf("state %q is nil", name)
	}
	if _, exists := m.states[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateState, name)
	}

	m.states[name] = node{state: state, transitions: transitions}
	return nil
}

// SetStart picks the entry state.
func (m *Machine) SetStart(name string) error {
	if _, ok := m.states[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownState, name)
	}
	m.start = name
	return nil
}

// Validate checks that a start state is set and that every transition
// target is a registered state or a terminal.
func (m *Machine) Validate() error {
	if m.start == "" {
		return ErrNoStart
	}

	for name, n := range m.states {
		for outcome, target := range n.transitions {
			if target == Success || target == Failure {
				continue
			}
			if _, ok := m.states[target]; !ok {
				return fmt.Errorf("%w: %s -> %s on %s", ErrUnknownState, name, target, outcome)
			}
		}
	}

	return nil
}

// Current returns the state the machine is in, for introspection.
func (m *Machine) Current() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// StateFor returns the state registered under name. The state set is
// fixed before Run starts, so reads take no lock.
func (m *Machine) StateFor(name string) (State, bool) {
	n, ok := m.states[name]
	return n.state, ok
}

func (m *Machine) setCurrent(name string) {
	m.mu.Lock()
	m.current = name
	m.mu.Unlock()
}

// Run drives states from the start until a terminal is reached and
// returns the terminal name. An error from a state, including
// cancellation, stops the run without a terminal.
func (m *Machine) Run(ctx context.Context) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}

	current := m.start
	m.setCurrent(current)

	for {
		if current == Success || current == Failure {
			m.logger.Info().Str("terminal", current).Msg("plan finished")
			return current, nil
		}

		n := m.states[current]

		outcome, err := n.state.Execute(ctx)
		if err != nil {
			return "", err
		}

		next, ok := n.transitions[outcome]
		if !ok {
			return "", fmt.Errorf("%w: %s on %s", ErrNoTransition, current, outcome)
		}

		if next != current {
			m.logger.Info().
				Str("from", current).
				Str("to", next).
				Str("outcome", string(outcome)).
				Msg("transition")
		}

		current = next
		m.setCurrent(current)
	}
}
