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

// Package backup exports and imports the local store as a portable JSON
// document. Imports merge record by record: the version with the newer
// updated_at timestamp wins, so restoring an old backup never clobbers
// newer local work.
package backup

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/garahe/garahe/pkg/cli/database"
	"github.com/garahe/garahe/pkg/clock"
	"github.com/pkg/errors"
)

// FormatVersion is the version of the backup document format
const FormatVersion = 1

// ErrFormatVersionMismatch is an error for importing a document written in
// an unsupported format version
var ErrFormatVersionMismatch = errors.New("unsupported backup format version")

// Document is a full snapshot of the local store
type Document struct {
	FormatVersion int                    `json:"format_version"`
	ExportedAt    int64                  `json:"exported_at"`
	RecordCount   int                    `json:"record_count"`
	Products      []database.Product     `json:"products"`
	Categories    []database.Category    `json:"categories"`
	Sales         []database.Sale        `json:"sales"`
	JobOrders     []database.JobOrder    `json:"job_orders"`
	Reservations  []database.Reservation `json:"reservations"`
	Attendance    []database.Attendance  `json:"attendance"`
}

// Result summarizes an import
type Result struct {
	Imported int
	Skipped  int
}

// Export reads the local store into a backup document. It does not modify
// the store.
func Export(db *database.DB, clk clock.Clock) (Document, error) {
	var doc Document
	var err error

	if doc.Products, err = database.ListAllProducts(db); err != nil {
		return doc, errors.Wrap(err, "reading products")
	}
	if doc.Categories, err = database.ListCategories(db); err != nil {
		return doc, errors.Wrap(err, "reading categories")
	}
	if doc.Sales, err = database.ListSales(db); err != nil {
		return doc, errors.Wrap(err, "reading sales")
	}
	if doc.JobOrders, err = database.ListJobOrders(db); err != nil {
		return doc, errors.Wrap(err, "reading job orders")
	}
	if doc.Reservations, err = database.ListReservations(db); err != nil {
		return doc, errors.Wrap(err, "reading reservations")
	}
	if doc.Attendance, err = database.ListAttendance(db); err != nil {
		return doc, errors.Wrap(err, "reading attendance")
	}

	doc.FormatVersion = FormatVersion
	doc.ExportedAt = clk.Now().Unix()
	doc.RecordCount = len(doc.Products) + len(doc.Categories) + len(doc.Sales) +
		len(doc.JobOrders) + len(doc.Reservations) + len(doc.Attendance)

	return doc, nil
}

// validate checks the document before any write happens. A malformed
// document fails the import as a whole.
func validate(doc Document) error {
	if doc.FormatVersion != FormatVersion {
		return errors.Wrapf(ErrFormatVersionMismatch, "got version %d", doc.FormatVersion)
	}

	for _, p := range doc.Products {
		if p.LocalID == "" {
			return errors.New("product with an empty local id")
		}
	}
	for _, c := range doc.Categories {
		if c.LocalID == "" {
			return errors.New("category with an empty local id")
		}
	}
	for _, s := range doc.Sales {
		if s.LocalID == "" {
			return errors.New("sale with an empty local id")
		}
	}
	for _, j := range doc.JobOrders {
		if j.LocalID == "" {
			return errors.New("job order with an empty local id")
		}
	}
	for _, r := range doc.Reservations {
		if r.LocalID == "" {
			return errors.New("reservation with an empty local id")
		}
	}
	for _, a := range doc.Attendance {
		if a.LocalID == "" {
			return errors.New("attendance record with an empty local id")
		}
	}

	return nil
}

// Import merges the document into the local store. For each record, the
// incoming version is applied only if the record does not exist locally or
// the incoming updated_at is newer than the local one.
func Import(db *database.DB, doc Document) (Result, error) {
	var ret Result

	if err := validate(doc); err != nil {
		return ret, errors.Wrap(err, "validating backup document")
	}

	err := db.DoInTransaction(func(tx *database.DB) error {
		for _, p := range doc.Products {
			local, err := database.GetProduct(tx, p.LocalID)
			if err == database.ErrNotFound {
				if err := p.Insert(tx); err != nil {
					return err
				}
				ret.Imported++
				continue
			} else if err != nil {
				return err
			}

			if p.UpdatedAt > local.UpdatedAt {
				if err := p.Update(tx); err != nil {
					return err
				}
				ret.Imported++
			} else {
				ret.Skipped++
			}
		}

		for _, c := range doc.Categories {
			local, err := database.GetCategory(tx, c.LocalID)
			if err == database.ErrNotFound {
				if err := c.Insert(tx); err != nil {
					return err
				}
				ret.Imported++
				continue
			} else if err != nil {
				return err
			}

			if c.UpdatedAt > local.UpdatedAt {
				if err := c.Update(tx); err != nil {
					return err
				}
				ret.Imported++
			} else {
				ret.Skipped++
			}
		}

		for _, s := range doc.Sales {
			local, err := database.GetSale(tx, s.LocalID)
			if err == database.ErrNotFound {
				if err := s.Insert(tx); err != nil {
					return err
				}
				ret.Imported++
				continue
			} else if err != nil {
				return err
			}

			if s.UpdatedAt > local.UpdatedAt {
				if err := s.Update(tx); err != nil {
					return err
				}
				ret.Imported++
			} else {
				ret.Skipped++
			}
		}

		for _, j := range doc.JobOrders {
			local, err := database.GetJobOrder(tx, j.LocalID)
			if err == database.ErrNotFound {
				if err := j.Insert(tx); err != nil {
					return err
				}
				ret.Imported++
				continue
			} else if err != nil {
				return err
			}

			if j.UpdatedAt > local.UpdatedAt {
				if err := j.Update(tx); err != nil {
					return err
				}
				ret.Imported++
			} else {
				ret.Skipped++
			}
		}

		for _, r := range doc.Reservations {
			local, err := database.GetReservation(tx, r.LocalID)
			if err == database.ErrNotFound {
				if err := r.Insert(tx); err != nil {
					return err
				}
				ret.Imported++
				continue
			} else if err != nil {
				return err
			}

			if r.UpdatedAt > local.UpdatedAt {
				if err := r.Update(tx); err != nil {
					return err
				}
				ret.Imported++
			} else {
				ret.Skipped++
			}
		}

		for _, a := range doc.Attendance {
			local, err := database.GetAttendance(tx, a.LocalID)
			if err == database.ErrNotFound {
				if err := a.Insert(tx); err != nil {
					return err
				}
				ret.Imported++
				continue
			} else if err != nil {
				return err
			}

			if a.UpdatedAt > local.UpdatedAt {
				if err := a.Update(tx); err != nil {
					return err
				}
				ret.Imported++
			} else {
				ret.Skipped++
			}
		}

		return nil
	})
	if err != nil {
		return Result{}, err
	}

	return ret, nil
}

// WriteFile writes the document to the given path, replacing any existing
// file. The write goes through a temp file so that a crash never leaves a
// truncated backup behind.
func WriteFile(doc Document, path string) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshalling backup document")
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0600); err != nil {
		return errors.Wrap(err, "writing backup file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "replacing backup file")
	}

	return nil
}

// ReadFile reads a backup document from the given path
func ReadFile(path string) (Document, error) {
	var doc Document

	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return doc, errors.Wrap(err, "reading backup file")
	}

	if err := json.Unmarshal(b, &doc); err != nil {
		return doc, errors.Wrap(err, "unmarshalling backup document")
	}

	return doc, nil
}
