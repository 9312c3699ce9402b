package service

import (
	"context"

	"github.com/looplab/fsm"
)

// State is a service lifecycle state
type State string

// Lifecycle states. A service moves through them once and is not restarted.
const (
	StateCreated     State = "CREATED"
	StateSettingUp   State = "SETTING_UP"
	StateRunning     State = "RUNNING"
	StateTearingDown State = "TEARING_DOWN"
	StateStopped     State = "STOPPED"
)

const (
	eventSetup    = "setup"
	eventRun      = "run"
	eventTeardown = "teardown"
	eventFinish   = "finish"
)

// Ordinal returns the position of s in the lifecycle, as exported by the
// service status gauge.
func (s State) Ordinal() int {
	switch s {
	case StateCreated:
		return 0
	case StateSettingUp:
		return 1
	case StateRunning:
		return 2
	case StateTearingDown:
		return 3
	case StateStopped:
		return 4
	default:
		return -1
	}
}

type lifecycle struct {
	machine *fsm.FSM
}

// newLifecycle builds the state machine. onEnter runs after every
// transition with the new state.
func newLifecycle(onEnter func(State)) *lifecycle {
	machine := fsm.NewFSM(
		string(StateCreated),
		fsm.Events{
			{Name: eventSetup, Src: []string{string(StateCreated)}, Dst: string(StateSettingUp)},
			{Name: eventRun, Src: []string{string(StateSettingUp)}, Dst: string(StateRunning)},
			{Name: eventTeardown, Src: []string{string(StateSettingUp), string(StateRunning)}, Dst: string(StateTearingDown)},
			{Name: eventFinish, Src: []string{string(StateTearingDown)}, Dst: string(StateStopped)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				if onEnter != nil {
					onEnter(State(e.Dst))
				}
			},
		},
	)
	return &lifecycle{machine: machine}
}

// fire runs event. Transitions are not cancelled with ctx.
func (l *lifecycle) fire(ctx context.Context, event string) error {
	return l.machine.Event(context.WithoutCancel(ctx), event)
}

func (l *lifecycle) current() State {
	return State(l.machine.Current())
}
