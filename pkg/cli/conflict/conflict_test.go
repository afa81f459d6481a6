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

package conflict

import (
	"testing"

	"github.com/garahe/garahe/pkg/assert"
	"github.com/garahe/garahe/pkg/cli/database"
	"github.com/garahe/garahe/pkg/clock"
	"github.com/shopspring/decimal"
)

func insertProduct(t *testing.T, db *database.DB, localID string, synced bool) database.Product {
	t.Helper()

	p := database.Product{
		LocalID:   localID,
		Name:      "brake pad",
		SKU:       "BRK-01",
		Price:     decimal.NewFromInt(450),
		Cost:      decimal.NewFromInt(300),
		Stock:     10,
		BranchID:  1,
		Synced:    synced,
		CreatedAt: 1700000000,
		UpdatedAt: 1700000000,
	}
	if err := p.Insert(db); err != nil {
		t.Fatal(err, "inserting product")
	}

	return p
}

func TestProductFieldsDiffer(t *testing.T) {
	base := database.Product{
		Name:  "brake pad",
		SKU:   "BRK-01",
		Price: decimal.NewFromInt(450),
		Stock: 10,
	}

	same := base
	same.Stock = 3
	if ProductFieldsDiffer(base, same) {
		t.Error("stock difference must not count as a conflict")
	}

	priced := base
	priced.Price = decimal.NewFromInt(500)
	if !ProductFieldsDiffer(base, priced) {
		t.Error("price difference must count as a conflict")
	}

	renamed := base
	renamed.Name = "brake pad set"
	if !ProductFieldsDiffer(base, renamed) {
		t.Error("name difference must count as a conflict")
	}
}

func TestRaise(t *testing.T) {
	db := database.InitTestDB(t)
	clk := clock.NewMock()

	p := insertProduct(t, db, "p1", false)
	server := p
	server.Name = "brake pad set"

	if err := Raise(db, clk, database.EntityProduct, p.LocalID, p, server); err != nil {
		t.Fatal(err, "raising conflict")
	}

	got, err := database.GetUnresolvedConflict(db, p.LocalID)
	if err != nil {
		t.Fatal(err, "getting conflict")
	}
	assert.Equal(t, got.EntityType, database.EntityProduct, "entity type mismatch")
	assert.Equal(t, got.DetectedAt, clk.Now().Unix(), "detected_at mismatch")

	// raising again for the same record must not duplicate
	if err := Raise(db, clk, database.EntityProduct, p.LocalID, p, server); err != nil {
		t.Fatal(err, "raising conflict again")
	}

	var count int
	database.MustScan(t, "counting conflicts",
		db.QueryRow("SELECT count(*) FROM conflicts WHERE local_id = ?", p.LocalID), &count)
	assert.Equal(t, count, 1, "conflict count mismatch")
}

func TestResolveKeepMine(t *testing.T) {
	db := database.InitTestDB(t)
	clk := clock.NewMock()

	p := insertProduct(t, db, "p1", false)
	server := p
	server.Name = "brake pad set"
	if err := Raise(db, clk, database.EntityProduct, p.LocalID, p, server); err != nil {
		t.Fatal(err, "raising conflict")
	}
	c, err := database.GetUnresolvedConflict(db, p.LocalID)
	if err != nil {
		t.Fatal(err, "getting conflict")
	}

	if err := Resolve(db, clk, c.ID, ResolutionKeepMine); err != nil {
		t.Fatal(err, "resolving conflict")
	}

	got, err := database.GetProduct(db, p.LocalID)
	if err != nil {
		t.Fatal(err, "getting product")
	}
	assert.Equal(t, got.Name, "brake pad", "local name must be kept")
	assert.Equal(t, got.Synced, false, "record must be queued for upload")

	resolved, err := database.GetConflict(db, c.ID)
	if err != nil {
		t.Fatal(err, "getting resolved conflict")
	}
	assert.Equal(t, resolved.Resolved, true, "conflict must be resolved")
	assert.Equal(t, resolved.Resolution, ResolutionKeepMine, "resolution mismatch")
}

func TestResolveUseServer(t *testing.T) {
	db := database.InitTestDB(t)
	clk := clock.NewMock()

	p := insertProduct(t, db, "p1", false)
	server := p
	server.Name = "brake pad set"
	server.Price = decimal.NewFromInt(500)
	if err := Raise(db, clk, database.EntityProduct, p.LocalID, p, server); err != nil {
		t.Fatal(err, "raising conflict")
	}
	c, err := database.GetUnresolvedConflict(db, p.LocalID)
	if err != nil {
		t.Fatal(err, "getting conflict")
	}

	if err := Resolve(db, clk, c.ID, ResolutionUseServer); err != nil {
		t.Fatal(err, "resolving conflict")
	}

	got, err := database.GetProduct(db, p.LocalID)
	if err != nil {
		t.Fatal(err, "getting product")
	}
	assert.Equal(t, got.Name, "brake pad set", "server name must be applied")
	assert.Equal(t, got.Price.String(), "500", "server price must be applied")
	assert.Equal(t, got.Synced, true, "record must be marked synced")
	assert.Equal(t, got.UpdatedAt, clk.Now().Unix(), "updated_at mismatch")
}

func TestResolveReviewLater(t *testing.T) {
	db := database.InitTestDB(t)
	clk := clock.NewMock()

	p := insertProduct(t, db, "p1", false)
	server := p
	server.Name = "brake pad set"
	if err := Raise(db, clk, database.EntityProduct, p.LocalID, p, server); err != nil {
		t.Fatal(err, "raising conflict")
	}
	c, err := database.GetUnresolvedConflict(db, p.LocalID)
	if err != nil {
		t.Fatal(err, "getting conflict")
	}

	if err := Resolve(db, clk, c.ID, ResolutionReviewLater); err != nil {
		t.Fatal(err, "resolving conflict")
	}

	// the conflict stays open and the record stays out of the upload set
	got, err := database.GetConflict(db, c.ID)
	if err != nil {
		t.Fatal(err, "getting conflict")
	}
	assert.Equal(t, got.Resolved, false, "conflict must stay unresolved")

	pending, err := database.ListUnsyncedProducts(db)
	if err != nil {
		t.Fatal(err, "listing unsynced products")
	}
	assert.Equal(t, len(pending), 0, "conflicted record must not be pending upload")
}

func TestResolveTwice(t *testing.T) {
	db := database.InitTestDB(t)
	clk := clock.NewMock()

	p := insertProduct(t, db, "p1", false)
	server := p
	server.Name = "brake pad set"
	if err := Raise(db, clk, database.EntityProduct, p.LocalID, p, server); err != nil {
		t.Fatal(err, "raising conflict")
	}
	c, err := database.GetUnresolvedConflict(db, p.LocalID)
	if err != nil {
		t.Fatal(err, "getting conflict")
	}

	if err := Resolve(db, clk, c.ID, ResolutionKeepMine); err != nil {
		t.Fatal(err, "resolving conflict")
	}

	err = Resolve(db, clk, c.ID, ResolutionUseServer)
	assert.Equal(t, err, ErrAlreadyResolved, "expected ErrAlreadyResolved")
}
