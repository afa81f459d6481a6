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

// Package conflict detects and resolves divergence between local and server
// versions of a record. Resolution is whole-record: the user picks one side,
// there is no field-level merge.
package conflict

import (
	"encoding/json"

	"github.com/garahe/garahe/pkg/cli/database"
	"github.com/garahe/garahe/pkg/cli/utils/diff"
	"github.com/garahe/garahe/pkg/clock"
	"github.com/pkg/errors"
)

// Resolutions a user can pick for a conflict
const (
	ResolutionKeepMine    = "keep_mine"
	ResolutionUseServer   = "use_server"
	ResolutionReviewLater = "review_later"
)

// ErrAlreadyResolved is an error for resolving a conflict twice
var ErrAlreadyResolved = errors.New("conflict is already resolved")

// ProductFieldsDiffer reports whether two versions of a product diverge in
// any field a conflict should be raised for. Stock is excluded because the
// server value always wins for stock.
func ProductFieldsDiffer(a, b database.Product) bool {
	if a.Name != b.Name || a.SKU != b.SKU || a.Type != b.Type {
		return true
	}
	if a.CategoryID != b.CategoryID || a.CategoryName != b.CategoryName {
		return true
	}
	if !a.Price.Equal(b.Price) || !a.Cost.Equal(b.Cost) {
		return true
	}
	if a.Description != b.Description || a.LowStockThreshold != b.LowStockThreshold {
		return true
	}

	return false
}

// ReservationFieldsDiffer reports whether two versions of a reservation
// diverge in any user-visible field
func ReservationFieldsDiffer(a, b database.Reservation) bool {
	if a.CustomerName != b.CustomerName || a.ReservedFor != b.ReservedFor {
		return true
	}
	if !a.Total.Equal(b.Total) || a.Status != b.Status {
		return true
	}
	if len(a.Items) != len(b.Items) {
		return true
	}
	for i := range a.Items {
		x, y := a.Items[i], b.Items[i]
		if x.Name != y.Name || x.Quantity != y.Quantity {
			return true
		}
		if !x.UnitPrice.Equal(y.UnitPrice) || !x.LineTotal.Equal(y.LineTotal) {
			return true
		}
	}

	return false
}

// Raise records a conflict between the local and server versions of a
// record. If an unresolved conflict already exists for the record, it is
// left in place and no duplicate is created. Both sides must marshal to the
// local model's field layout: a pull passes the mapped local struct, and a
// push passes the server's record JSON, which the wire contract keeps in
// that same layout. Resolving with use_server unmarshals the stored server
// data back into the local model.
func Raise(db *database.DB, clk clock.Clock, entityType, localID string, local, server interface{}) error {
	_, err := database.GetUnresolvedConflict(db, localID)
	if err == nil {
		return nil
	} else if errors.Cause(err) != database.ErrNotFound {
		return errors.Wrapf(err, "checking for an existing conflict on %s", localID)
	}

	localData, err := json.Marshal(local)
	if err != nil {
		return errors.Wrap(err, "marshalling local data")
	}
	serverData, err := json.Marshal(server)
	if err != nil {
		return errors.Wrap(err, "marshalling server data")
	}

	c := database.Conflict{
		EntityType: entityType,
		LocalID:    localID,
		LocalData:  string(localData),
		ServerData: string(serverData),
		DetectedAt: clk.Now().Unix(),
	}
	if err := c.Insert(db); err != nil {
		return errors.Wrap(err, "inserting conflict")
	}

	return nil
}

// FormatDiff renders the difference between the local and server versions of
// the conflicted record for display
func FormatDiff(c database.Conflict) string {
	return diff.Format(c.LocalData, c.ServerData)
}

// Resolve applies the given resolution to the conflict. Keeping the local
// version re-queues the record for upload; taking the server version
// overwrites the local record and marks it synced. Review-later leaves the
// conflict unresolved so that the record stays out of automatic uploads.
func Resolve(db *database.DB, clk clock.Clock, id int64, resolution string) error {
	c, err := database.GetConflict(db, id)
	if err != nil {
		return errors.Wrapf(err, "getting conflict %d", id)
	}
	if c.Resolved {
		return ErrAlreadyResolved
	}

	if resolution == ResolutionReviewLater {
		return nil
	}

	return db.DoInTransaction(func(tx *database.DB) error {
		now := clk.Now().Unix()

		switch resolution {
		case ResolutionKeepMine:
			if err := requeueRecord(tx, c, now); err != nil {
				return err
			}
		case ResolutionUseServer:
			if err := applyServerRecord(tx, c, now); err != nil {
				return err
			}
		default:
			return errors.Errorf("unknown resolution '%s'", resolution)
		}

		c.Resolved = true
		c.Resolution = resolution
		if err := c.Update(tx); err != nil {
			return errors.Wrapf(err, "marking conflict %d resolved", c.ID)
		}

		return nil
	})
}

// requeueRecord marks the conflicted record as unsynced so that the next
// cycle pushes the local version
func requeueRecord(tx *database.DB, c database.Conflict, now int64) error {
	table, err := tableFor(c.EntityType)
	if err != nil {
		return err
	}

	q := "UPDATE " + table + " SET synced = ?, updated_at = ? WHERE local_id = ?"
	if _, err := tx.Exec(q, false, now, c.LocalID); err != nil {
		return errors.Wrapf(err, "requeueing %s %s", c.EntityType, c.LocalID)
	}

	return nil
}

// applyServerRecord overwrites the local record with the server version
// captured when the conflict was detected
func applyServerRecord(tx *database.DB, c database.Conflict, now int64) error {
	switch c.EntityType {
	case database.EntityProduct:
		var p database.Product
		if err := json.Unmarshal([]byte(c.ServerData), &p); err != nil {
			return errors.Wrap(err, "unmarshalling server product")
		}
		p.LocalID = c.LocalID
		p.Synced = true
		p.UpdatedAt = now
		return p.Update(tx)
	case database.EntityCategory:
		var cat database.Category
		if err := json.Unmarshal([]byte(c.ServerData), &cat); err != nil {
			return errors.Wrap(err, "unmarshalling server category")
		}
		cat.LocalID = c.LocalID
		cat.Synced = true
		cat.UpdatedAt = now
		return cat.Update(tx)
	case database.EntitySale:
		var s database.Sale
		if err := json.Unmarshal([]byte(c.ServerData), &s); err != nil {
			return errors.Wrap(err, "unmarshalling server sale")
		}
		s.LocalID = c.LocalID
		s.Synced = true
		s.UpdatedAt = now
		return s.Update(tx)
	case database.EntityJobOrder:
		var j database.JobOrder
		if err := json.Unmarshal([]byte(c.ServerData), &j); err != nil {
			return errors.Wrap(err, "unmarshalling server job order")
		}
		j.LocalID = c.LocalID
		j.Synced = true
		j.UpdatedAt = now
		return j.Update(tx)
	case database.EntityReservation:
		var r database.Reservation
		if err := json.Unmarshal([]byte(c.ServerData), &r); err != nil {
			return errors.Wrap(err, "unmarshalling server reservation")
		}
		r.LocalID = c.LocalID
		r.Synced = true
		r.UpdatedAt = now
		return r.Update(tx)
	case database.EntityAttendance:
		var a database.Attendance
		if err := json.Unmarshal([]byte(c.ServerData), &a); err != nil {
			return errors.Wrap(err, "unmarshalling server attendance")
		}
		a.LocalID = c.LocalID
		a.Synced = true
		a.UpdatedAt = now
		return a.Update(tx)
	}

	return errors.Errorf("unknown entity type '%s'", c.EntityType)
}

func tableFor(entityType string) (string, error) {
	switch entityType {
	case database.EntityProduct:
		return "products", nil
	case database.EntityCategory:
		return "categories", nil
	case database.EntitySale:
		return "sales", nil
	case database.EntityJobOrder:
		return "job_orders", nil
	case database.EntityReservation:
		return "reservations", nil
	case database.EntityAttendance:
		return "attendance", nil
	}

	return "", errors.Errorf("unknown entity type '%s'", entityType)
}
