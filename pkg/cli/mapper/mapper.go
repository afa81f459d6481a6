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

// Package mapper converts between server wire-format records and local
// record shapes. All functions are pure: identical input produces
// identical output, and no I/O happens here.
package mapper

import (
	"database/sql"

	"github.com/garahe/garahe/pkg/cli/client"
	"github.com/garahe/garahe/pkg/cli/database"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// MapContext supplies the branch scoping needed to resolve per-branch
// values out of a server record
type MapContext struct {
	BranchID int64
}

func parseMoney(s, field string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parsing %s '%s'", field, s)
	}

	return d, nil
}

// resolveStock resolves the stock quantity for the given branch out of a
// remote product's branch pivot list. It falls back to the flat
// stock_quantity field, and defaults to 0 if neither is present.
func resolveStock(r client.RemoteProduct, branchID int64) int64 {
	for _, bs := range r.BranchStocks {
		if bs.BranchID == branchID {
			return bs.Quantity
		}
	}

	if r.StockQuantity != nil {
		return *r.StockQuantity
	}

	return 0
}

// ProductToLocal converts a remote product into the local record shape.
// The returned record carries no local id; the caller assigns one when
// inserting, or preserves the existing one when updating.
func ProductToLocal(r client.RemoteProduct, mctx MapContext) (database.Product, error) {
	price, err := parseMoney(r.Price, "price")
	if err != nil {
		return database.Product{}, errors.Wrapf(err, "mapping product %d", r.ID)
	}
	cost, err := parseMoney(r.Cost, "cost")
	if err != nil {
		return database.Product{}, errors.Wrapf(err, "mapping product %d", r.ID)
	}

	var categoryID sql.NullInt64
	if r.CategoryID != nil {
		categoryID = sql.NullInt64{Int64: *r.CategoryID, Valid: true}
	}

	return database.Product{
		ServerID:          sql.NullInt64{Int64: r.ID, Valid: true},
		Name:              r.Name,
		SKU:               r.SKU,
		Type:              r.Type,
		CategoryID:        categoryID,
		CategoryName:      r.CategoryName,
		Price:             price,
		Cost:              cost,
		Description:       r.Description,
		Stock:             resolveStock(r, mctx.BranchID),
		LowStockThreshold: r.LowStockThreshold,
		BranchID:          mctx.BranchID,
		Synced:            true,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}, nil
}

// ProductToRemote converts a local product into a push payload. Server-only
// fields, such as the server id and the branch stock pivot, are omitted.
func ProductToRemote(p database.Product) client.ProductPayload {
	var categoryID *int64
	if p.CategoryID.Valid {
		id := p.CategoryID.Int64
		categoryID = &id
	}

	return client.ProductPayload{
		ClientRef:         p.LocalID,
		BranchID:          p.BranchID,
		Name:              p.Name,
		SKU:               p.SKU,
		Type:              p.Type,
		CategoryID:        categoryID,
		Price:             p.Price.String(),
		Cost:              p.Cost.String(),
		Description:       p.Description,
		Stock:             p.Stock,
		LowStockThreshold: p.LowStockThreshold,
		CreatedAt:         p.CreatedAt,
	}
}

// CategoryToLocal converts a remote category into the local record shape
func CategoryToLocal(r client.RemoteCategory) database.Category {
	return database.Category{
		ServerID:  sql.NullInt64{Int64: r.ID, Valid: true},
		Name:      r.Name,
		Type:      r.Type,
		Synced:    true,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func itemsToRemote(items []database.LineItem) []client.RemoteLineItem {
	ret := make([]client.RemoteLineItem, 0, len(items))
	for _, item := range items {
		ret = append(ret, client.RemoteLineItem{
			ProductID: item.ProductServerID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.String(),
			LineTotal: item.LineTotal.String(),
		})
	}

	return ret
}

func itemsToLocal(items []client.RemoteLineItem) ([]database.LineItem, error) {
	ret := make([]database.LineItem, 0, len(items))
	for _, item := range items {
		unitPrice, err := parseMoney(item.UnitPrice, "unit price")
		if err != nil {
			return nil, errors.Wrapf(err, "mapping line item '%s'", item.Name)
		}
		lineTotal, err := parseMoney(item.LineTotal, "line total")
		if err != nil {
			return nil, errors.Wrapf(err, "mapping line item '%s'", item.Name)
		}

		ret = append(ret, database.LineItem{
			ProductServerID: item.ProductID,
			Name:            item.Name,
			Quantity:        item.Quantity,
			UnitPrice:       unitPrice,
			LineTotal:       lineTotal,
		})
	}

	return ret, nil
}

// SaleToRemote converts a local sale into a push payload. The sale number
// is carried as the client ref so that the server can deduplicate
// retransmissions of the same record.
func SaleToRemote(s database.Sale) client.SalePayload {
	return client.SalePayload{
		ClientRef:     s.SaleNumber,
		BranchID:      s.BranchID,
		Items:         itemsToRemote(s.Items),
		Subtotal:      s.Subtotal.String(),
		Discount:      s.Discount.String(),
		Total:         s.Total.String(),
		PaymentMethod: s.PaymentMethod,
		AmountPaid:    s.AmountPaid.String(),
		ChangeDue:     s.ChangeDue.String(),
		CustomerName:  s.CustomerName,
		CreatedAt:     s.CreatedAt,
	}
}

// JobOrderToRemote converts a local job order into a push payload
func JobOrderToRemote(j database.JobOrder) client.JobOrderPayload {
	return client.JobOrderPayload{
		ClientRef:    j.JobOrderNumber,
		BranchID:     j.BranchID,
		CustomerName: j.CustomerName,
		Vehicle:      j.Vehicle,
		MechanicName: j.MechanicName,
		Items:        itemsToRemote(j.Items),
		LaborCost:    j.LaborCost.String(),
		Total:        j.Total.String(),
		Status:       j.Status,
		Remarks:      j.Remarks,
		CreatedAt:    j.CreatedAt,
	}
}

// ReservationToRemote converts a local reservation into a push payload
func ReservationToRemote(r database.Reservation) client.ReservationPayload {
	return client.ReservationPayload{
		ClientRef:    r.ReservationNumber,
		BranchID:     r.BranchID,
		CustomerName: r.CustomerName,
		ReservedFor:  r.ReservedFor,
		Items:        itemsToRemote(r.Items),
		Total:        r.Total.String(),
		Status:       r.Status,
		CreatedAt:    r.CreatedAt,
	}
}

// ReservationToLocal converts a remote reservation into the local record shape
func ReservationToLocal(r client.RemoteReservation) (database.Reservation, error) {
	total, err := parseMoney(r.Total, "total")
	if err != nil {
		return database.Reservation{}, errors.Wrapf(err, "mapping reservation %d", r.ID)
	}

	items, err := itemsToLocal(r.Items)
	if err != nil {
		return database.Reservation{}, errors.Wrapf(err, "mapping reservation %d", r.ID)
	}

	return database.Reservation{
		ServerID:          sql.NullInt64{Int64: r.ID, Valid: true},
		ReservationNumber: r.ClientRef,
		BranchID:          r.BranchID,
		CustomerName:      r.CustomerName,
		ReservedFor:       r.ReservedFor,
		Items:             items,
		Total:             total,
		Status:            r.Status,
		Synced:            true,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}, nil
}

// AttendanceToRemote converts a local attendance record into a push payload
func AttendanceToRemote(a database.Attendance) client.AttendancePayload {
	var clockOut *int64
	if a.ClockOut.Valid {
		v := a.ClockOut.Int64
		clockOut = &v
	}

	return client.AttendancePayload{
		ClientRef:    a.LocalID,
		BranchID:     a.BranchID,
		EmployeeID:   a.EmployeeID,
		EmployeeName: a.EmployeeName,
		ClockIn:      a.ClockIn,
		ClockOut:     clockOut,
		Remarks:      a.Remarks,
		CreatedAt:    a.CreatedAt,
	}
}
