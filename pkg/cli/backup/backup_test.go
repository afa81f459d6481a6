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

package backup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/garahe/garahe/pkg/assert"
	"github.com/garahe/garahe/pkg/cli/config"
	"github.com/garahe/garahe/pkg/cli/consts"
	"github.com/garahe/garahe/pkg/cli/context"
	"github.com/garahe/garahe/pkg/cli/database"
	"github.com/garahe/garahe/pkg/clock"
	"github.com/shopspring/decimal"
)

func insertSale(t *testing.T, db *database.DB, localID string, updatedAt int64) database.Sale {
	t.Helper()

	s := database.Sale{
		LocalID:       localID,
		SaleNumber:    "SO-20250314-" + localID,
		BranchID:      1,
		Total:         decimal.NewFromInt(100),
		PaymentMethod: "cash",
		CreatedAt:     1700000000,
		UpdatedAt:     updatedAt,
	}
	if err := s.Insert(db); err != nil {
		t.Fatal(err, "inserting sale")
	}

	return s
}

func TestExportImportRoundTrip(t *testing.T) {
	src := database.InitTestDB(t)
	clk := clock.NewMock()

	insertSale(t, src, "s1", 1700000000)
	insertSale(t, src, "s2", 1700000100)
	p := database.Product{
		LocalID:   "p1",
		Name:      "brake pad",
		Price:     decimal.NewFromInt(450),
		Stock:     5,
		BranchID:  1,
		CreatedAt: 1700000000,
		UpdatedAt: 1700000000,
	}
	if err := p.Insert(src); err != nil {
		t.Fatal(err, "inserting product")
	}

	doc, err := Export(src, clk)
	if err != nil {
		t.Fatal(err, "exporting")
	}
	assert.Equal(t, doc.FormatVersion, FormatVersion, "format version mismatch")
	assert.Equal(t, doc.RecordCount, 3, "record count mismatch")
	assert.Equal(t, doc.ExportedAt, clk.Now().Unix(), "exported_at mismatch")

	dst := database.InitTestDB(t)
	res, err := Import(dst, doc)
	if err != nil {
		t.Fatal(err, "importing")
	}
	assert.Equal(t, res.Imported, 3, "imported count mismatch")
	assert.Equal(t, res.Skipped, 0, "skipped count mismatch")

	got, err := database.GetSale(dst, "s1")
	if err != nil {
		t.Fatal(err, "getting sale")
	}
	assert.Equal(t, got.Total.String(), "100", "sale total mismatch")

	gotP, err := database.GetProduct(dst, "p1")
	if err != nil {
		t.Fatal(err, "getting product")
	}
	assert.Equal(t, gotP.Name, "brake pad", "product name mismatch")
}

func TestImportLastWriteWins(t *testing.T) {
	db := database.InitTestDB(t)

	insertSale(t, db, "s1", 1700000500)

	older := database.Sale{
		LocalID:       "s1",
		SaleNumber:    "SO-20250314-s1",
		BranchID:      1,
		Total:         decimal.NewFromInt(999),
		PaymentMethod: "cash",
		CreatedAt:     1700000000,
		UpdatedAt:     1700000100,
	}
	newer := database.Sale{
		LocalID:       "s2",
		SaleNumber:    "SO-20250314-s2",
		BranchID:      1,
		Total:         decimal.NewFromInt(50),
		PaymentMethod: "gcash",
		CreatedAt:     1700000000,
		UpdatedAt:     1700000600,
	}

	res, err := Import(db, Document{
		FormatVersion: FormatVersion,
		Sales:         []database.Sale{older, newer},
	})
	if err != nil {
		t.Fatal(err, "importing")
	}

	// the older incoming version of s1 is skipped; s2 is new and imported
	assert.Equal(t, res.Imported, 1, "imported count mismatch")
	assert.Equal(t, res.Skipped, 1, "skipped count mismatch")

	got, err := database.GetSale(db, "s1")
	if err != nil {
		t.Fatal(err, "getting sale")
	}
	assert.Equal(t, got.Total.String(), "100", "older backup must not clobber newer local data")
}

func TestImportNewerOverwrites(t *testing.T) {
	db := database.InitTestDB(t)

	insertSale(t, db, "s1", 1700000100)

	incoming := database.Sale{
		LocalID:       "s1",
		SaleNumber:    "SO-20250314-s1",
		BranchID:      1,
		Total:         decimal.NewFromInt(250),
		PaymentMethod: "cash",
		CreatedAt:     1700000000,
		UpdatedAt:     1700000500,
	}

	res, err := Import(db, Document{
		FormatVersion: FormatVersion,
		Sales:         []database.Sale{incoming},
	})
	if err != nil {
		t.Fatal(err, "importing")
	}
	assert.Equal(t, res.Imported, 1, "imported count mismatch")

	got, err := database.GetSale(db, "s1")
	if err != nil {
		t.Fatal(err, "getting sale")
	}
	assert.Equal(t, got.Total.String(), "250", "newer backup must overwrite")
}

func TestImportMalformed(t *testing.T) {
	db := database.InitTestDB(t)

	_, err := Import(db, Document{
		FormatVersion: FormatVersion,
		Sales: []database.Sale{
			{LocalID: "s1", SaleNumber: "SO-1", UpdatedAt: 1},
			{LocalID: "", SaleNumber: "SO-2", UpdatedAt: 1},
		},
	})
	if err == nil {
		t.Fatal("expected an error for a malformed document")
	}

	// nothing must have been written
	sales, err := database.ListSales(db)
	if err != nil {
		t.Fatal(err, "listing sales")
	}
	assert.Equal(t, len(sales), 0, "malformed import must not write anything")
}

func TestImportVersionMismatch(t *testing.T) {
	db := database.InitTestDB(t)

	_, err := Import(db, Document{FormatVersion: 99})
	if err == nil {
		t.Fatal("expected an error for an unsupported format version")
	}
}

func TestWriteFileOverwrites(t *testing.T) {
	db := database.InitTestDB(t)
	clk := clock.NewMock()

	dir := t.TempDir()
	path := filepath.Join(dir, consts.EmergencyBackupFileName)

	insertSale(t, db, "s1", 1700000000)
	doc1, err := Export(db, clk)
	if err != nil {
		t.Fatal(err, "exporting")
	}
	if err := WriteFile(doc1, path); err != nil {
		t.Fatal(err, "writing backup")
	}

	insertSale(t, db, "s2", 1700000100)
	doc2, err := Export(db, clk)
	if err != nil {
		t.Fatal(err, "exporting again")
	}
	if err := WriteFile(doc2, path); err != nil {
		t.Fatal(err, "writing backup again")
	}

	// the slot holds exactly the latest snapshot
	got, err := ReadFile(path)
	if err != nil {
		t.Fatal(err, "reading backup")
	}
	assert.Equal(t, got.RecordCount, 2, "record count mismatch")

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err, "listing backup dir")
	}
	assert.Equal(t, len(entries), 1, "only one backup file must exist")
}

func TestManagerRunOnce(t *testing.T) {
	db := database.InitTestDB(t)
	clk := clock.NewMock()

	dataDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dataDir, consts.GaraheDirName), 0755); err != nil {
		t.Fatal(err, "creating data dir")
	}

	gctx := context.GaraheCtx{
		Paths: context.Paths{Data: dataDir},
		DB:    db,
		Clock: clk,
	}

	insertSale(t, db, "s1", 1700000000)

	m := NewManager(gctx, config.BackupConfig{Enabled: true, Frequency: config.FrequencyDaily, Time: "02:00"})
	if err := m.RunOnce(); err != nil {
		t.Fatal(err, "running backup")
	}

	var lastBackupAt int64
	if err := database.GetSystem(db, consts.SystemLastBackupAt, &lastBackupAt); err != nil {
		t.Fatal(err, "getting last backup time")
	}
	assert.Equal(t, lastBackupAt, clk.Now().Unix(), "last backup time mismatch")

	// restore into a fresh store
	fresh := database.InitTestDB(t)
	res, err := RestoreEmergency(context.GaraheCtx{Paths: context.Paths{Data: dataDir}, DB: fresh, Clock: clk})
	if err != nil {
		t.Fatal(err, "restoring emergency backup")
	}
	assert.Equal(t, res.Imported, 1, "imported count mismatch")
}

func TestManagerStartStop(t *testing.T) {
	db := database.InitTestDB(t)

	gctx := context.GaraheCtx{
		Paths: context.Paths{Data: t.TempDir()},
		DB:    db,
		Clock: clock.NewMock(),
	}

	m := NewManager(gctx, config.BackupConfig{Enabled: true, Frequency: config.FrequencyDaily, Time: "02:00"})
	if err := m.Start(); err != nil {
		t.Fatal(err, "starting schedule")
	}
	if m.cron == nil {
		t.Fatal("schedule must be running after start")
	}
	assert.Equal(t, len(m.cron.Entries()), 1, "scheduled entry count mismatch")
	m.Stop()

	// a disabled schedule never starts
	disabled := NewManager(gctx, config.BackupConfig{Enabled: false, Frequency: config.FrequencyDaily, Time: "02:00"})
	if err := disabled.Start(); err != nil {
		t.Fatal(err, "starting disabled schedule")
	}
	if disabled.cron != nil {
		t.Error("disabled schedule must not start")
	}
	disabled.Stop()
}

func TestCronSpec(t *testing.T) {
	testCases := []struct {
		frequency string
		time      string
		want      string
	}{
		{config.FrequencyDaily, "02:00", "0 0 2 * * *"},
		{config.FrequencyWeekly, "23:30", "0 30 23 * * 0"},
		{config.FrequencyMonthly, "04:15", "0 15 4 1 * *"},
	}

	for _, tc := range testCases {
		got, err := cronSpec(config.BackupConfig{Enabled: true, Frequency: tc.frequency, Time: tc.time})
		if err != nil {
			t.Fatal(err, "building cron spec")
		}
		assert.Equal(t, got, tc.want, "cron spec mismatch")
	}
}
