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

	"github.com/garahe/garahe/pkg/cli/client"
	"github.com/garahe/garahe/pkg/cli/conflict"
	"github.com/garahe/garahe/pkg/cli/database"
	"github.com/garahe/garahe/pkg/cli/log"
	"github.com/garahe/garahe/pkg/cli/mapper"
	"github.com/garahe/garahe/pkg/cli/progress"
	"github.com/garahe/garahe/pkg/cli/utils"
	"github.com/pkg/errors"
)

// pull downloads the server state and merges it into the local store. Each
// collection is merged in a single transaction, so a failure mid-collection
// leaves the local store at the previous state. Records that exist locally
// but not in the snapshot are kept; the server does not expunge local data.
// A network failure stops only the collection it hit. Collections whose
// push failed in the same cycle are skipped, so that a pull never runs
// before the push for that record type.
func (e *Engine) pull(ctx stdctx.Context, failedPush map[string]bool) ([]error, error) {
	steps := []struct {
		entity string
		fn     func(stdctx.Context) error
	}{
		{database.EntityCategory, e.pullCategories},
		{database.EntityProduct, e.pullProducts},
		{database.EntityReservation, e.pullReservations},
	}

	var phaseErrs []error

	for _, step := range steps {
		if failedPush[step.entity] {
			log.Debug("skipping %s pull after a failed push\n", step.entity)
			continue
		}

		err := step.fn(ctx)
		if err == nil {
			continue
		}

		var pe *phaseErr
		if errors.As(err, &pe) {
			log.Errorf("failed to pull %s: %s\n", step.entity, pe.err)
			phaseErrs = append(phaseErrs, err)
			continue
		}

		return nil, err
	}

	return phaseErrs, nil
}

func (e *Engine) pullCategories(ctx stdctx.Context) error {
	resp, err := client.GetCategories(ctx, e.ctx)
	if err != nil {
		return &phaseErr{entity: database.EntityCategory, err: err}
	}

	e.reporter.BeginPhase(progress.PhasePull, database.EntityCategory, len(resp.Items))

	return e.ctx.DB.DoInTransaction(func(tx *database.DB) error {
		for _, rc := range resp.Items {
			mapped := mapper.CategoryToLocal(rc)

			local, err := database.GetCategoryByServerID(tx, rc.ID)
			if err == database.ErrNotFound {
				localID, err := utils.GenerateUUID()
				if err != nil {
					return err
				}
				mapped.LocalID = localID
				if err := mapped.Insert(tx); err != nil {
					return err
				}
			} else if err != nil {
				return err
			} else {
				// categories are owned by the server; overwrite
				mapped.LocalID = local.LocalID
				if err := mapped.Update(tx); err != nil {
					return err
				}
			}

			e.reporter.Increment()
		}

		return nil
	})
}

func (e *Engine) pullProducts(ctx stdctx.Context) error {
	resp, err := client.GetProducts(ctx, e.ctx, e.ctx.BranchID)
	if err != nil {
		return &phaseErr{entity: database.EntityProduct, err: err}
	}

	e.reporter.BeginPhase(progress.PhasePull, database.EntityProduct, len(resp.Items))

	return e.ctx.DB.DoInTransaction(func(tx *database.DB) error {
		now := e.ctx.Clock.Now().Unix()

		for _, rp := range resp.Items {
			mapped, err := mapper.ProductToLocal(rp, mapper.MapContext{BranchID: e.ctx.BranchID})
			if err != nil {
				return err
			}

			local, err := database.GetProductByServerID(tx, rp.ID)
			if err == database.ErrNotFound {
				localID, err := utils.GenerateUUID()
				if err != nil {
					return err
				}
				mapped.LocalID = localID
				if err := mapped.Insert(tx); err != nil {
					return err
				}

				e.reporter.Increment()
				continue
			} else if err != nil {
				return err
			}

			if local.Synced {
				mapped.LocalID = local.LocalID
				if err := mapped.Update(tx); err != nil {
					return err
				}

				e.reporter.Increment()
				continue
			}

			// the record has pending local changes. The server value still wins
			// for stock, unconditionally; any other divergence becomes a
			// conflict for the user to resolve, and the local fields are left
			// untouched in the meantime.
			if _, err := tx.Exec("UPDATE products SET stock = ?, updated_at = ? WHERE local_id = ?",
				mapped.Stock, now, local.LocalID); err != nil {
				return errors.Wrapf(err, "applying server stock to product %s", local.LocalID)
			}

			if conflict.ProductFieldsDiffer(local, mapped) {
				if err := conflict.Raise(tx, e.ctx.Clock, database.EntityProduct, local.LocalID, local, mapped); err != nil {
					return err
				}
			}

			e.reporter.Increment()
		}

		return nil
	})
}

func (e *Engine) pullReservations(ctx stdctx.Context) error {
	resp, err := client.GetReservations(ctx, e.ctx, e.ctx.BranchID)
	if err != nil {
		return &phaseErr{entity: database.EntityReservation, err: err}
	}

	e.reporter.BeginPhase(progress.PhasePull, database.EntityReservation, len(resp.Items))

	return e.ctx.DB.DoInTransaction(func(tx *database.DB) error {
		for _, rr := range resp.Items {
			mapped, err := mapper.ReservationToLocal(rr)
			if err != nil {
				return err
			}

			local, err := database.GetReservationByServerID(tx, rr.ID)
			if err == database.ErrNotFound {
				localID, err := utils.GenerateUUID()
				if err != nil {
					return err
				}
				mapped.LocalID = localID
				if err := mapped.Insert(tx); err != nil {
					return err
				}

				e.reporter.Increment()
				continue
			} else if err != nil {
				return err
			}

			if local.Synced {
				mapped.LocalID = local.LocalID
				if mapped.ReservationNumber == "" {
					mapped.ReservationNumber = local.ReservationNumber
				}
				if err := mapped.Update(tx); err != nil {
					return err
				}

				e.reporter.Increment()
				continue
			}

			if conflict.ReservationFieldsDiffer(local, mapped) {
				if err := conflict.Raise(tx, e.ctx.Clock, database.EntityReservation, local.LocalID, local, mapped); err != nil {
					return err
				}
			}

			e.reporter.Increment()
		}

		return nil
	})
}
