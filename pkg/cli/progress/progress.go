/* Copyright 2025 Garahe Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package progress tracks the state of a sync cycle and exposes it as an
// observable snapshot. A Reporter is created per application run and passed
// into the sync engine; it is never a package-level singleton.
package progress

import (
	"sync"
)

// Cycle states
const (
	StateIdle      = "idle"
	StateRunning   = "running"
	StateSucceeded = "succeeded"
	StateFailed    = "failed"
)

// Phases of a sync cycle
const (
	PhasePush = "push"
	PhasePull = "pull"
)

// RecordError describes a single record the server rejected during a push
type RecordError struct {
	Entity  string
	LocalID string
	Message string
}

// Snapshot is a point-in-time view of a sync cycle. Done and Total count
// records within the current phase and entity.
type Snapshot struct {
	State     string
	Phase     string
	Entity    string
	Done      int
	Total     int
	StartedAt int64
	Errors    []RecordError
}

// Percent returns the completion percentage of the current phase, or 0 when
// the total is unknown.
func (s Snapshot) Percent() int {
	if s.Total == 0 {
		return 0
	}

	return s.Done * 100 / s.Total
}

// Reporter collects progress updates from a sync cycle. It is safe for
// concurrent use.
type Reporter struct {
	mu   sync.Mutex
	cur  Snapshot
	subs []chan Snapshot
}

// NewReporter creates an idle reporter
func NewReporter() *Reporter {
	return &Reporter{
		cur: Snapshot{State: StateIdle},
	}
}

// Subscribe returns a channel receiving snapshot updates. The channel has a
// buffer of one and delivery is latest-wins: if the subscriber lags, stale
// snapshots are dropped rather than blocking the sync cycle.
func (r *Reporter) Subscribe() <-chan Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan Snapshot, 1)
	r.subs = append(r.subs, ch)

	return ch
}

func (r *Reporter) publish() {
	for _, ch := range r.subs {
		select {
		case ch <- r.cur:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- r.cur:
			default:
			}
		}
	}
}

// BeginCycle marks the start of a sync cycle, clearing any state left over
// from the previous one.
func (r *Reporter) BeginCycle(startedAt int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cur = Snapshot{
		State:     StateRunning,
		StartedAt: startedAt,
	}
	r.publish()
}

// BeginPhase marks the start of a phase for an entity with a known total
func (r *Reporter) BeginPhase(phase, entity string, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cur.Phase = phase
	r.cur.Entity = entity
	r.cur.Done = 0
	r.cur.Total = total
	r.publish()
}

// Increment counts one record as processed in the current phase
func (r *Reporter) Increment() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cur.Done++
	r.publish()
}

// AddError records a per-record error without failing the cycle
func (r *Reporter) AddError(entity, localID, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cur.Errors = append(r.cur.Errors, RecordError{
		Entity:  entity,
		LocalID: localID,
		Message: message,
	})
	r.publish()
}

// EndCycle marks the cycle as succeeded or failed
func (r *Reporter) EndCycle(state string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cur.State = state
	r.publish()
}

// Snapshot returns a copy of the current state. The errors slice is copied
// so that callers cannot observe later mutations.
func (r *Reporter) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	ret := r.cur
	if r.cur.Errors != nil {
		ret.Errors = make([]RecordError, len(r.cur.Errors))
		copy(ret.Errors, r.cur.Errors)
	}

	return ret
}
