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

// Package sync implements the push-then-pull sync cycle against the Garahe
// server. Local changes are always uploaded before the server state is
// downloaded, so that a pull never overwrites a change the server has not
// seen.
package sync

import (
	stdctx "context"
	"fmt"
	"sync/atomic"

	"github.com/garahe/garahe/pkg/cli/consts"
	"github.com/garahe/garahe/pkg/cli/context"
	"github.com/garahe/garahe/pkg/cli/database"
	"github.com/garahe/garahe/pkg/cli/log"
	"github.com/garahe/garahe/pkg/cli/progress"
	"github.com/pkg/errors"
)

// ErrSyncInProgress is an error for starting a cycle while one is running
var ErrSyncInProgress = errors.New("a sync cycle is already in progress")

// phaseErr is a network failure scoped to a single phase. The cycle keeps
// going with the remaining phases and is marked failed at the end. Storage
// errors are never phaseErr; they abort the cycle immediately.
type phaseErr struct {
	entity string
	err    error
}

func (e *phaseErr) Error() string {
	return fmt.Sprintf("%s phase: %s", e.entity, e.err.Error())
}

func (e *phaseErr) Cause() error { return e.err }
func (e *phaseErr) Unwrap() error { return e.err }

// batchSize is the number of records sent per push request
const batchSize = 50

// Engine runs sync cycles. At most one cycle runs at a time; concurrent
// triggers while a cycle is active return ErrSyncInProgress instead of
// queueing a second cycle.
type Engine struct {
	ctx      context.GaraheCtx
	reporter *progress.Reporter
	running  int32
}

// NewEngine creates a sync engine
func NewEngine(ctx context.GaraheCtx, reporter *progress.Reporter) *Engine {
	return &Engine{
		ctx:      ctx,
		reporter: reporter,
	}
}

// Run performs one full sync cycle: push local changes, then pull the
// server state. A network failure aborts only the phase it hit; the
// remaining phases for other record types still run, except that a type
// whose push failed is not pulled in the same cycle. The cycle is marked
// failed if any phase failed, and records already acknowledged by the
// server stay marked synced. A storage failure aborts the whole cycle.
func (e *Engine) Run(ctx stdctx.Context) error {
	if !atomic.CompareAndSwapInt32(&e.running, 0, 1) {
		return ErrSyncInProgress
	}
	defer atomic.StoreInt32(&e.running, 0)

	now := e.ctx.Clock.Now().Unix()
	e.reporter.BeginCycle(now)

	log.Info("pushing local changes.\n")
	failedPush, phaseErrs, err := e.push(ctx)
	if err != nil {
		e.reporter.EndCycle(progress.StateFailed)
		return errors.Wrap(err, "pushing local changes")
	}

	log.Info("pulling server state.\n")
	pullErrs, err := e.pull(ctx, failedPush)
	if err != nil {
		e.reporter.EndCycle(progress.StateFailed)
		return errors.Wrap(err, "pulling server state")
	}
	phaseErrs = append(phaseErrs, pullErrs...)

	if len(phaseErrs) > 0 {
		e.reporter.EndCycle(progress.StateFailed)
		return errors.Wrapf(phaseErrs[0], "sync cycle finished with %d failed phase(s)", len(phaseErrs))
	}

	if err := database.UpdateSystem(e.ctx.DB, consts.SystemLastSyncAt, e.ctx.Clock.Now().Unix()); err != nil {
		e.reporter.EndCycle(progress.StateFailed)
		return errors.Wrap(err, "updating last sync time")
	}

	e.reporter.EndCycle(progress.StateSucceeded)
	log.Success("sync done\n")

	return nil
}
