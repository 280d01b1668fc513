// Package alarm implements an alarm panel on top of tempfsm. Prearmed,
// ArmPaused, PreTriggered and Triggered are temporary states: each falls
// through to its timeout destination unless another command preempts it.
package alarm

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/librescoot/tempfsm"
)

// States
const (
	Undefined    tempfsm.StateID = "Undefined"
	Disarmed     tempfsm.StateID = "Disarmed"
	Prearmed     tempfsm.StateID = "Prearmed"
	Armed        tempfsm.StateID = "Armed"
	PreTriggered tempfsm.StateID = "PreTriggered"
	Triggered    tempfsm.StateID = "Triggered"
	ArmPaused    tempfsm.StateID = "ArmPaused"
	Acknowledged tempfsm.StateID = "Acknowledged"
)

// Commands
const (
	Startup     tempfsm.CommandID = "Startup"
	Arm         tempfsm.CommandID = "Arm"
	Disarm      tempfsm.CommandID = "Disarm"
	Trigger     tempfsm.CommandID = "Trigger"
	Acknowledge tempfsm.CommandID = "Acknowledge"
	Pause       tempfsm.CommandID = "Pause"
	TimeOut     tempfsm.CommandID = "TimeOut"
)

// Commands lists every alarm command in declaration order
func Commands() []tempfsm.CommandID {
	return []tempfsm.CommandID{Startup, Arm, Disarm, Trigger, Acknowledge, Pause, TimeOut}
}

// ParseCommand resolves a command name case-insensitively
func ParseCommand(name string) (tempfsm.CommandID, bool) {
	for _, c := range Commands() {
		if strings.EqualFold(string(c), name) {
			return c, true
		}
	}
	return "", false
}

// Alarm is a running alarm panel
type Alarm struct {
	machine    *tempfsm.Machine
	configured atomic.Bool
}

// New builds the alarm's machine with the bounds from cfg, starts it in
// Undefined and fires Startup so it is Disarmed on return.
func New(ctx context.Context, cfg Config, opts ...tempfsm.MachineOption) (*Alarm, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &Alarm{}
	opts = append(opts, tempfsm.WithStateDurations(cfg.durations()))
	m, err := a.definition().Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("build alarm: %w", err)
	}
	a.machine = m

	if err := m.Start(ctx); err != nil {
		return nil, fmt.Errorf("start alarm: %w", err)
	}
	if _, err := m.Fire(ctx, Startup); err != nil {
		m.Stop()
		return nil, fmt.Errorf("startup alarm: %w", err)
	}
	return a, nil
}

// definition declares the alarm table. Durations are placeholders that
// New overrides from Config.
func (a *Alarm) definition() *tempfsm.Definition {
	d := DefaultConfig()

	return tempfsm.NewDefinition().
		State(Undefined, tempfsm.WithOnExit(func(*tempfsm.Context) error {
			a.configured.Store(true)
			return nil
		})).
		State(Disarmed).
		State(Armed).
		State(Acknowledged).
		State(Prearmed, tempfsm.WithTimeout(d.ArmDelay, Armed)).
		State(ArmPaused, tempfsm.WithTimeout(d.PauseDelay, Armed)).
		State(PreTriggered, tempfsm.WithTimeout(d.TriggerDelay, Triggered)).
		State(Triggered, tempfsm.WithTimeout(d.TriggerTimeout, Armed)).
		TimeoutCommand(TimeOut).
		Transition(Undefined, Startup, Disarmed).
		Transition(Disarmed, Arm, Prearmed).
		Transition(Prearmed, Disarm, Disarmed).
		Transition(Armed, Disarm, Disarmed).
		Transition(Armed, Trigger, PreTriggered).
		Transition(Armed, Pause, ArmPaused).
		Transition(ArmPaused, Trigger, PreTriggered).
		Transition(ArmPaused, Disarm, Disarmed).
		Transition(PreTriggered, Disarm, Disarmed).
		Transition(Triggered, Acknowledge, Acknowledged).
		Transition(Triggered, Disarm, Disarmed).
		Transition(Acknowledged, Disarm, Disarmed).
		Initial(Undefined)
}

// Execute fires cmd and returns the resulting state
func (a *Alarm) Execute(ctx context.Context, cmd tempfsm.CommandID) (tempfsm.StateID, error) {
	return a.machine.Fire(ctx, cmd)
}

// CurrentState returns the current alarm state
func (a *Alarm) CurrentState() tempfsm.StateID {
	return a.machine.CurrentState()
}

// CanFire reports whether cmd is valid from the current state
func (a *Alarm) CanFire(cmd tempfsm.CommandID) bool {
	return a.machine.CanFire(cmd)
}

// PermittedCommands lists the commands valid from the current state
func (a *Alarm) PermittedCommands() []tempfsm.CommandID {
	return a.machine.PermittedCommands()
}

// IsConfigured reports whether the alarm has left its bootstrap state
func (a *Alarm) IsConfigured() bool {
	return a.configured.Load()
}

// Machine exposes the underlying machine for observers and graph export
func (a *Alarm) Machine() *tempfsm.Machine {
	return a.machine
}

// Close stops the alarm and cancels any running timer
func (a *Alarm) Close() {
	a.machine.Stop()
}
