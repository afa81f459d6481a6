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

package database

import (
	"database/sql"
	"testing"

	"github.com/garahe/garahe/pkg/assert"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

func TestProductRoundTrip(t *testing.T) {
	db := InitTestDB(t)

	p := Product{
		LocalID:           "p1",
		ServerID:          sql.NullInt64{Int64: 10, Valid: true},
		Name:              "brake pad",
		SKU:               "BP-001",
		Type:              "product",
		CategoryID:        sql.NullInt64{Int64: 3, Valid: true},
		CategoryName:      "brakes",
		Price:             decimal.RequireFromString("450.50"),
		Cost:              decimal.RequireFromString("300"),
		Description:       "front brake pad",
		Stock:             12,
		LowStockThreshold: 3,
		BranchID:          1,
		Synced:            true,
		CreatedAt:         1700000000,
		UpdatedAt:         1700000000,
	}
	if err := p.Insert(db); err != nil {
		t.Fatal(err, "inserting product")
	}

	got, err := GetProduct(db, "p1")
	if err != nil {
		t.Fatal(err, "getting product")
	}
	assert.Equal(t, got.Name, "brake pad", "name mismatch")
	assert.Equal(t, got.SKU, "BP-001", "sku mismatch")
	assert.Equal(t, got.Price.String(), "450.5", "price mismatch")
	assert.Equal(t, got.ServerID.Int64, int64(10), "server id mismatch")
	assert.Equal(t, got.CategoryID.Int64, int64(3), "category id mismatch")
	assert.Equal(t, got.Stock, int64(12), "stock mismatch")
	assert.Equal(t, got.Synced, true, "synced mismatch")

	got.Name = "brake pad rear"
	got.Synced = false
	if err := got.Update(db); err != nil {
		t.Fatal(err, "updating product")
	}

	byServer, err := GetProductByServerID(db, 10)
	if err != nil {
		t.Fatal(err, "getting product by server id")
	}
	assert.Equal(t, byServer.Name, "brake pad rear", "updated name mismatch")
	assert.Equal(t, byServer.Synced, false, "updated synced mismatch")

	if err := got.Expunge(db); err != nil {
		t.Fatal(err, "expunging product")
	}
	if _, err := GetProduct(db, "p1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaleItemsRoundTrip(t *testing.T) {
	db := InitTestDB(t)

	serverID := int64(44)
	s := Sale{
		LocalID:    "s1",
		SaleNumber: "SO-20250314-AB12",
		BranchID:   1,
		Items: []LineItem{
			{
				ProductServerID: &serverID,
				ProductLocalID:  "p1",
				Name:            "brake pad",
				Quantity:        2,
				UnitPrice:       decimal.RequireFromString("450"),
				LineTotal:       decimal.RequireFromString("900"),
			},
			{
				Name:      "oil change",
				Quantity:  1,
				UnitPrice: decimal.RequireFromString("350"),
				LineTotal: decimal.RequireFromString("350"),
			},
		},
		Subtotal:      decimal.RequireFromString("1250"),
		Total:         decimal.RequireFromString("1250"),
		PaymentMethod: "cash",
		AmountPaid:    decimal.RequireFromString("1500"),
		ChangeDue:     decimal.RequireFromString("250"),
		CreatedAt:     1700000000,
		UpdatedAt:     1700000000,
	}
	if err := s.Insert(db); err != nil {
		t.Fatal(err, "inserting sale")
	}

	got, err := GetSale(db, "s1")
	if err != nil {
		t.Fatal(err, "getting sale")
	}
	assert.Equal(t, len(got.Items), 2, "item count mismatch")
	assert.Equal(t, *got.Items[0].ProductServerID, int64(44), "item server id mismatch")
	assert.Equal(t, got.Items[0].LineTotal.String(), "900", "line total mismatch")
	assert.Equal(t, got.Items[1].ProductServerID == nil, true, "second item must have no server id")
	assert.Equal(t, got.ChangeDue.String(), "250", "change due mismatch")
}

func TestAttendanceNullClockOut(t *testing.T) {
	db := InitTestDB(t)

	a := Attendance{
		LocalID:      "a1",
		BranchID:     1,
		EmployeeID:   7,
		EmployeeName: "Maria",
		ClockIn:      1700000000,
		CreatedAt:    1700000000,
		UpdatedAt:    1700000000,
	}
	if err := a.Insert(db); err != nil {
		t.Fatal(err, "inserting attendance")
	}

	got, err := GetAttendance(db, "a1")
	if err != nil {
		t.Fatal(err, "getting attendance")
	}
	assert.Equal(t, got.ClockOut.Valid, false, "clock out must be null")

	got.ClockOut = sql.NullInt64{Int64: 1700030000, Valid: true}
	if err := got.Update(db); err != nil {
		t.Fatal(err, "updating attendance")
	}

	got, err = GetAttendance(db, "a1")
	if err != nil {
		t.Fatal(err, "getting attendance again")
	}
	assert.Equal(t, got.ClockOut.Int64, int64(1700030000), "clock out mismatch")
}

func TestListUnsyncedExcludesSynced(t *testing.T) {
	db := InitTestDB(t)

	unsynced := Sale{LocalID: "s1", SaleNumber: "SO-1", BranchID: 1, CreatedAt: 1, UpdatedAt: 1}
	synced := Sale{LocalID: "s2", SaleNumber: "SO-2", BranchID: 1, Synced: true, CreatedAt: 2, UpdatedAt: 2}
	if err := unsynced.Insert(db); err != nil {
		t.Fatal(err, "inserting unsynced sale")
	}
	if err := synced.Insert(db); err != nil {
		t.Fatal(err, "inserting synced sale")
	}

	got, err := ListUnsyncedSales(db)
	if err != nil {
		t.Fatal(err, "listing unsynced sales")
	}
	assert.Equal(t, len(got), 1, "unsynced count mismatch")
	assert.Equal(t, got[0].LocalID, "s1", "unsynced local id mismatch")
}

func TestListUnsyncedExcludesConflicted(t *testing.T) {
	db := InitTestDB(t)

	s := Sale{LocalID: "s1", SaleNumber: "SO-1", BranchID: 1, CreatedAt: 1, UpdatedAt: 1}
	if err := s.Insert(db); err != nil {
		t.Fatal(err, "inserting sale")
	}

	c := Conflict{
		EntityType: EntitySale,
		LocalID:    "s1",
		LocalData:  "{}",
		ServerData: "{}",
		DetectedAt: 1,
	}
	if err := c.Insert(db); err != nil {
		t.Fatal(err, "inserting conflict")
	}

	got, err := ListUnsyncedSales(db)
	if err != nil {
		t.Fatal(err, "listing unsynced sales")
	}
	assert.Equal(t, len(got), 0, "conflicted record must be excluded from the push set")

	// a resolved conflict no longer gates the record
	c.Resolved = true
	c.Resolution = "keep_mine"
	if err := c.Update(db); err != nil {
		t.Fatal(err, "resolving conflict")
	}

	got, err = ListUnsyncedSales(db)
	if err != nil {
		t.Fatal(err, "listing unsynced sales again")
	}
	assert.Equal(t, len(got), 1, "record must rejoin the push set after resolution")
}

func TestCountUnsynced(t *testing.T) {
	db := InitTestDB(t)

	p := Product{LocalID: "p1", Name: "n", BranchID: 1, CreatedAt: 1, UpdatedAt: 1}
	if err := p.Insert(db); err != nil {
		t.Fatal(err, "inserting product")
	}
	s1 := Sale{LocalID: "s1", SaleNumber: "SO-1", BranchID: 1, CreatedAt: 1, UpdatedAt: 1}
	if err := s1.Insert(db); err != nil {
		t.Fatal(err, "inserting sale")
	}
	s2 := Sale{LocalID: "s2", SaleNumber: "SO-2", BranchID: 1, Synced: true, CreatedAt: 1, UpdatedAt: 1}
	if err := s2.Insert(db); err != nil {
		t.Fatal(err, "inserting synced sale")
	}

	counts, err := CountUnsynced(db)
	if err != nil {
		t.Fatal(err, "counting unsynced")
	}
	assert.Equal(t, counts[EntityProduct], 1, "product count mismatch")
	assert.Equal(t, counts[EntitySale], 1, "sale count mismatch")
	assert.Equal(t, counts[EntityJobOrder], 0, "job order count mismatch")
}

func TestSystemKV(t *testing.T) {
	db := InitTestDB(t)

	if err := UpdateSystem(db, "last_sync_time", int64(1700000000)); err != nil {
		t.Fatal(err, "inserting system record")
	}

	var got int64
	if err := GetSystem(db, "last_sync_time", &got); err != nil {
		t.Fatal(err, "getting system record")
	}
	assert.Equal(t, got, int64(1700000000), "system value mismatch")

	if err := UpdateSystem(db, "last_sync_time", int64(1700000500)); err != nil {
		t.Fatal(err, "updating system record")
	}
	if err := GetSystem(db, "last_sync_time", &got); err != nil {
		t.Fatal(err, "getting updated system record")
	}
	assert.Equal(t, got, int64(1700000500), "updated system value mismatch")

	if err := InitSystemKV(db, "last_sync_time", "0"); err != nil {
		t.Fatal(err, "init on existing key")
	}
	if err := GetSystem(db, "last_sync_time", &got); err != nil {
		t.Fatal(err, "getting system record after init")
	}
	assert.Equal(t, got, int64(1700000500), "init must not overwrite an existing value")

	if err := DeleteSystem(db, "last_sync_time"); err != nil {
		t.Fatal(err, "deleting system record")
	}
	err := GetSystem(db, "last_sync_time", &got)
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDoInTransactionRollsBack(t *testing.T) {
	db := InitTestDB(t)

	s := Sale{LocalID: "s1", SaleNumber: "SO-1", BranchID: 1, CreatedAt: 1, UpdatedAt: 1}

	err := db.DoInTransaction(func(tx *DB) error {
		if err := s.Insert(tx); err != nil {
			return err
		}

		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected the transaction to fail")
	}

	if _, err := GetSale(db, "s1"); err != ErrNotFound {
		t.Fatalf("expected the insert to be rolled back, got %v", err)
	}
}
