// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package provision

import (
	"fmt"
	"log/slog"
	"time"

	cerrors "github.com/cloud-agnost/provisioner/pkg/errors"
)

// Family names a category of managed infrastructure.
type Family string

const (
	FamilyDatabase Family = "database"
	FamilyBroker   Family = "broker"
	FamilyCache    Family = "cache"
	FamilyStorage  Family = "storage"
	FamilyDomain   Family = "domain"
	FamilyWorkload Family = "workload"
)

// Operation names a lifecycle verb.
type Operation string

const (
	OpCreate  Operation = "create"
	OpUpdate  Operation = "update"
	OpDelete  Operation = "delete"
	OpRestart Operation = "restart"
	OpResize  Operation = "resize"
	OpAttach  Operation = "attach"
	OpDetach  Operation = "detach"
)

// State is the lifecycle state of a managed resource instance.
type State string

const (
	StateAbsent   State = "Absent"
	StateCreating State = "Creating"
	StateReady    State = "Ready"
	StateUpdating State = "Updating"
	StateDeleting State = "Deleting"
	StateFailed   State = "Failed"
)

var transitions = map[State][]State{
	StateAbsent:   {StateCreating},
	StateCreating: {StateReady, StateFailed},
	StateReady:    {StateUpdating, StateDeleting},
	StateUpdating: {StateReady, StateFailed},
	StateDeleting: {StateAbsent, StateFailed},
	StateFailed:   {StateCreating, StateUpdating, StateDeleting},
}

// CanTransition reports whether s may move to next.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Lifecycle tracks a single operation on one instance through the state
// machine and records its outcome.
type Lifecycle struct {
	family    Family
	operation Operation
	handle    string
	state     State
	started   time.Time
}

// Begin starts tracking operation op on handle. Create starts from Absent;
// every other verb starts from Ready.
func Begin(family Family, op Operation, handle string) *Lifecycle {
	l := &Lifecycle{family: family, operation: op, handle: handle, state: StateReady, started: time.Now()}

	switch op {
	case OpCreate:
		l.state = StateAbsent
		_ = l.move(StateCreating)
	case OpDelete, OpDetach:
		_ = l.move(StateDeleting)
	default:
		_ = l.move(StateUpdating)
	}
	return l
}

// State returns the current state.
func (l *Lifecycle) State() State {
	return l.state
}

// Succeed moves the instance to its resting state and records success.
func (l *Lifecycle) Succeed() error {
	next := StateReady
	if l.state == StateDeleting {
		next = StateAbsent
	}
	if err := l.move(next); err != nil {
		return err
	}
	l.record("success")
	return nil
}

// Fail moves the instance to Failed, records the failure and returns err.
func (l *Lifecycle) Fail(err error) error {
	if moveErr := l.move(StateFailed); moveErr != nil {
		return moveErr
	}
	slog.Error("lifecycle operation failed",
		"family", string(l.family), "operation", string(l.operation), "handle", l.handle, "error", err)
	l.record("failure")
	return err
}

func (l *Lifecycle) move(next State) error {
	if !l.state.CanTransition(next) {
		return cerrors.NewWithContext(cerrors.ErrCodeInternal,
			fmt.Sprintf("invalid lifecycle transition %s -> %s", l.state, next),
			map[string]any{"family": string(l.family), "handle": l.handle})
	}
	slog.Debug("lifecycle transition",
		"family", string(l.family), "operation", string(l.operation), "handle", l.handle,
		"from", string(l.state), "to", string(next))
	l.state = next
	return nil
}

func (l *Lifecycle) record(outcome string) {
	operationsTotal.WithLabelValues(string(l.family), string(l.operation), outcome).Inc()
	operationDuration.WithLabelValues(string(l.family), string(l.operation)).Observe(time.Since(l.started).Seconds())
}
