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

package sync

import (
	stdctx "context"
	"database/sql"

	"github.com/garahe/garahe/pkg/cli/client"
	"github.com/garahe/garahe/pkg/cli/conflict"
	"github.com/garahe/garahe/pkg/cli/database"
	"github.com/garahe/garahe/pkg/cli/log"
	"github.com/garahe/garahe/pkg/cli/mapper"
	"github.com/garahe/garahe/pkg/cli/progress"
	"github.com/pkg/errors"
)

// push uploads all pending local records to the server, one entity kind at
// a time. Rejected records are reported and skipped; they are not retried
// within the same cycle. Conflicted records get a conflict entry and stay
// out of future uploads until resolved. A network failure stops only the
// phase it hit; the remaining kinds are still pushed. It returns the set of
// kinds whose push failed along with the collected phase errors. A storage
// failure is returned as a fatal error instead.
func (e *Engine) push(ctx stdctx.Context) (map[string]bool, []error, error) {
	steps := []struct {
		entity string
		fn     func(stdctx.Context) error
	}{
		{database.EntityProduct, e.pushProducts},
		{database.EntitySale, e.pushSales},
		{database.EntityJobOrder, e.pushJobOrders},
		{database.EntityReservation, e.pushReservations},
		{database.EntityAttendance, e.pushAttendance},
	}

	failed := map[string]bool{}
	var phaseErrs []error

	for _, step := range steps {
		err := step.fn(ctx)
		if err == nil {
			continue
		}

		var pe *phaseErr
		if errors.As(err, &pe) {
			log.Errorf("failed to push %s: %s\n", step.entity, pe.err)
			failed[step.entity] = true
			phaseErrs = append(phaseErrs, err)
			continue
		}

		return nil, nil, err
	}

	return failed, phaseErrs, nil
}

// ack marks a record as acknowledged by the server, recording the server id
// it was assigned
func ack(tx *database.DB, table, localID string, serverID int64, now int64) error {
	q := "UPDATE " + table + " SET server_id = ?, synced = ?, updated_at = ? WHERE local_id = ?"
	if _, err := tx.Exec(q, sql.NullInt64{Int64: serverID, Valid: true}, true, now, localID); err != nil {
		return err
	}

	return nil
}

func (e *Engine) pushProducts(ctx stdctx.Context) error {
	recs, err := database.ListUnsyncedProducts(e.ctx.DB)
	if err != nil {
		return err
	}

	e.reporter.BeginPhase(progress.PhasePush, database.EntityProduct, len(recs))

	for start := 0; start < len(recs); start += batchSize {
		end := start + batchSize
		if end > len(recs) {
			end = len(recs)
		}
		batch := recs[start:end]

		payloads := make([]client.ProductPayload, 0, len(batch))
		byRef := map[string]database.Product{}
		for _, p := range batch {
			payload := mapper.ProductToRemote(p)
			payloads = append(payloads, payload)
			byRef[payload.ClientRef] = p
		}

		resp, err := client.PushProducts(ctx, e.ctx, payloads)
		if err != nil {
			return &phaseErr{entity: database.EntityProduct, err: err}
		}

		err = e.ctx.DB.DoInTransaction(func(tx *database.DB) error {
			now := e.ctx.Clock.Now().Unix()

			for _, res := range resp.Results {
				p, ok := byRef[res.ClientRef]
				if !ok {
					log.Debug("ignoring unknown client ref %s\n", res.ClientRef)
					continue
				}

				switch res.Status {
				case client.PushStatusOK:
					if err := ack(tx, "products", p.LocalID, res.ID, now); err != nil {
						return err
					}
				case client.PushStatusRejected:
					e.reporter.AddError(database.EntityProduct, p.LocalID, res.Message)
				case client.PushStatusConflict:
					if err := conflict.Raise(tx, e.ctx.Clock, database.EntityProduct, p.LocalID, p, res.Record); err != nil {
						return err
					}
				}
				e.reporter.Increment()
			}

			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) pushSales(ctx stdctx.Context) error {
	recs, err := database.ListUnsyncedSales(e.ctx.DB)
	if err != nil {
		return err
	}

	e.reporter.BeginPhase(progress.PhasePush, database.EntitySale, len(recs))

	for start := 0; start < len(recs); start += batchSize {
		end := start + batchSize
		if end > len(recs) {
			end = len(recs)
		}
		batch := recs[start:end]

		payloads := make([]client.SalePayload, 0, len(batch))
		byRef := map[string]database.Sale{}
		for _, s := range batch {
			payloads = append(payloads, mapper.SaleToRemote(s))
			byRef[s.SaleNumber] = s
		}

		resp, err := client.PushSales(ctx, e.ctx, payloads)
		if err != nil {
			return &phaseErr{entity: database.EntitySale, err: err}
		}

		err = e.ctx.DB.DoInTransaction(func(tx *database.DB) error {
			now := e.ctx.Clock.Now().Unix()

			for _, res := range resp.Results {
				s, ok := byRef[res.ClientRef]
				if !ok {
					log.Debug("ignoring unknown client ref %s\n", res.ClientRef)
					continue
				}

				switch res.Status {
				case client.PushStatusOK:
					if err := ack(tx, "sales", s.LocalID, res.ID, now); err != nil {
						return err
					}
				case client.PushStatusRejected:
					e.reporter.AddError(database.EntitySale, s.LocalID, res.Message)
				case client.PushStatusConflict:
					if err := conflict.Raise(tx, e.ctx.Clock, database.EntitySale, s.LocalID, s, res.Record); err != nil {
						return err
					}
				}
				e.reporter.Increment()
			}

			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) pushJobOrders(ctx stdctx.Context) error {
	recs, err := database.ListUnsyncedJobOrders(e.ctx.DB)
	if err != nil {
		return err
	}

	e.reporter.BeginPhase(progress.PhasePush, database.EntityJobOrder, len(recs))

	for start := 0; start < len(recs); start += batchSize {
		end := start + batchSize
		if end > len(recs) {
			end = len(recs)
		}
		batch := recs[start:end]

		payloads := make([]client.JobOrderPayload, 0, len(batch))
		byRef := map[string]database.JobOrder{}
		for _, j := range batch {
			payloads = append(payloads, mapper.JobOrderToRemote(j))
			byRef[j.JobOrderNumber] = j
		}

		resp, err := client.PushJobOrders(ctx, e.ctx, payloads)
		if err != nil {
			return &phaseErr{entity: database.EntityJobOrder, err: err}
		}

		err = e.ctx.DB.DoInTransaction(func(tx *database.DB) error {
			now := e.ctx.Clock.Now().Unix()

			for _, res := range resp.Results {
				j, ok := byRef[res.ClientRef]
				if !ok {
					log.Debug("ignoring unknown client ref %s\n", res.ClientRef)
					continue
				}

				switch res.Status {
				case client.PushStatusOK:
					if err := ack(tx, "job_orders", j.LocalID, res.ID, now); err != nil {
						return err
					}
				case client.PushStatusRejected:
					e.reporter.AddError(database.EntityJobOrder, j.LocalID, res.Message)
				case client.PushStatusConflict:
					if err := conflict.Raise(tx, e.ctx.Clock, database.EntityJobOrder, j.LocalID, j, res.Record); err != nil {
						return err
					}
				}
				e.reporter.Increment()
			}

			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) pushReservations(ctx stdctx.Context) error {
	recs, err := database.ListUnsyncedReservations(e.ctx.DB)
	if err != nil {
		return err
	}

	e.reporter.BeginPhase(progress.PhasePush, database.EntityReservation, len(recs))

	for start := 0; start < len(recs); start += batchSize {
		end := start + batchSize
		if end > len(recs) {
			end = len(recs)
		}
		batch := recs[start:end]

		payloads := make([]client.ReservationPayload, 0, len(batch))
		byRef := map[string]database.Reservation{}
		for _, r := range batch {
			payloads = append(payloads, mapper.ReservationToRemote(r))
			byRef[r.ReservationNumber] = r
		}

		resp, err := client.PushReservations(ctx, e.ctx, payloads)
		if err != nil {
			return &phaseErr{entity: database.EntityReservation, err: err}
		}

		err = e.ctx.DB.DoInTransaction(func(tx *database.DB) error {
			now := e.ctx.Clock.Now().Unix()

			for _, res := range resp.Results {
				r, ok := byRef[res.ClientRef]
				if !ok {
					log.Debug("ignoring unknown client ref %s\n", res.ClientRef)
					continue
				}

				switch res.Status {
				case client.PushStatusOK:
					if err := ack(tx, "reservations", r.LocalID, res.ID, now); err != nil {
						return err
					}
				case client.PushStatusRejected:
					e.reporter.AddError(database.EntityReservation, r.LocalID, res.Message)
				case client.PushStatusConflict:
					if err := conflict.Raise(tx, e.ctx.Clock, database.EntityReservation, r.LocalID, r, res.Record); err != nil {
						return err
					}
				}
				e.reporter.Increment()
			}

			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) pushAttendance(ctx stdctx.Context) error {
	recs, err := database.ListUnsyncedAttendance(e.ctx.DB)
	if err != nil {
		return err
	}

	e.reporter.BeginPhase(progress.PhasePush, database.EntityAttendance, len(recs))

	for start := 0; start < len(recs); start += batchSize {
		end := start + batchSize
		if end > len(recs) {
			end = len(recs)
		}
		batch := recs[start:end]

		payloads := make([]client.AttendancePayload, 0, len(batch))
		byRef := map[string]database.Attendance{}
		for _, a := range batch {
			payloads = append(payloads, mapper.AttendanceToRemote(a))
			byRef[a.LocalID] = a
		}

		resp, err := client.PushAttendance(ctx, e.ctx, payloads)
		if err != nil {
			return &phaseErr{entity: database.EntityAttendance, err: err}
		}

		err = e.ctx.DB.DoInTransaction(func(tx *database.DB) error {
			now := e.ctx.Clock.Now().Unix()

			for _, res := range resp.Results {
				a, ok := byRef[res.ClientRef]
				if !ok {
					log.Debug("ignoring unknown client ref %s\n", res.ClientRef)
					continue
				}

				switch res.Status {
				case client.PushStatusOK:
					if err := ack(tx, "attendance", a.LocalID, res.ID, now); err != nil {
						return err
					}
				case client.PushStatusRejected:
					e.reporter.AddError(database.EntityAttendance, a.LocalID, res.Message)
				case client.PushStatusConflict:
					if err := conflict.Raise(tx, e.ctx.Clock, database.EntityAttendance, a.LocalID, a, res.Record); err != nil {
						return err
					}
				}
				e.reporter.Increment()
			}

			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}
