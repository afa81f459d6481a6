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
	"fmt"

	"github.com/pkg/errors"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

const productColumns = `local_id, server_id, name, sku, type, category_id, category_name, price, cost, description, stock, low_stock_threshold, branch_id, synced, created_at, updated_at`

func scanProduct(s scanner) (Product, error) {
	var p Product
	var price, cost string

	err := s.Scan(&p.LocalID, &p.ServerID, &p.Name, &p.SKU, &p.Type, &p.CategoryID, &p.CategoryName,
		&price, &cost, &p.Description, &p.Stock, &p.LowStockThreshold, &p.BranchID, &p.Synced,
		&p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	} else if err != nil {
		return p, errors.Wrap(err, "scanning a product row")
	}

	if p.Price, err = scanDecimal(price); err != nil {
		return p, errors.Wrapf(err, "reading price of product %s", p.LocalID)
	}
	if p.Cost, err = scanDecimal(cost); err != nil {
		return p, errors.Wrapf(err, "reading cost of product %s", p.LocalID)
	}

	return p, nil
}

// GetProduct returns the product with the given local id
func GetProduct(db *DB, localID string) (Product, error) {
	row := db.QueryRow(fmt.Sprintf("SELECT %s FROM products WHERE local_id = ?", productColumns), localID)
	return scanProduct(row)
}

// GetProductByServerID returns the product with the given server id
func GetProductByServerID(db *DB, serverID int64) (Product, error) {
	row := db.QueryRow(fmt.Sprintf("SELECT %s FROM products WHERE server_id = ?", productColumns), serverID)
	return scanProduct(row)
}

// ListProducts returns all products belonging to the given branch, ordered by name
func ListProducts(db *DB, branchID int64) ([]Product, error) {
	rows, err := db.Query(fmt.Sprintf("SELECT %s FROM products WHERE branch_id = ? ORDER BY name", productColumns), branchID)
	if err != nil {
		return nil, errors.Wrap(err, "querying products")
	}
	defer rows.Close()

	var ret []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, p)
	}

	return ret, rows.Err()
}

// ListUnsyncedProducts returns all locally created or modified products
// pending upload, oldest first, excluding those with an unresolved conflict
func ListUnsyncedProducts(db *DB) ([]Product, error) {
	rows, err := db.Query(fmt.Sprintf(`SELECT %s FROM products WHERE NOT synced
		AND NOT EXISTS (SELECT 1 FROM conflicts WHERE conflicts.local_id = products.local_id AND NOT conflicts.resolved)
		ORDER BY created_at`, productColumns))
	if err != nil {
		return nil, errors.Wrap(err, "querying unsynced products")
	}
	defer rows.Close()

	var ret []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, p)
	}

	return ret, rows.Err()
}

// ListAllProducts returns every product in the local store, oldest first
func ListAllProducts(db *DB) ([]Product, error) {
	rows, err := db.Query(fmt.Sprintf("SELECT %s FROM products ORDER BY created_at", productColumns))
	if err != nil {
		return nil, errors.Wrap(err, "querying products")
	}
	defer rows.Close()

	var ret []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, p)
	}

	return ret, rows.Err()
}

const categoryColumns = `local_id, server_id, name, type, synced, created_at, updated_at`

func scanCategory(s scanner) (Category, error) {
	var c Category

	err := s.Scan(&c.LocalID, &c.ServerID, &c.Name, &c.Type, &c.Synced, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	} else if err != nil {
		return c, errors.Wrap(err, "scanning a category row")
	}

	return c, nil
}

// GetCategory returns the category with the given local id
func GetCategory(db *DB, localID string) (Category, error) {
	row := db.QueryRow(fmt.Sprintf("SELECT %s FROM categories WHERE local_id = ?", categoryColumns), localID)
	return scanCategory(row)
}

// GetCategoryByServerID returns the category with the given server id
func GetCategoryByServerID(db *DB, serverID int64) (Category, error) {
	row := db.QueryRow(fmt.Sprintf("SELECT %s FROM categories WHERE server_id = ?", categoryColumns), serverID)
	return scanCategory(row)
}

// ListCategories returns all categories ordered by name
func ListCategories(db *DB) ([]Category, error) {
	rows, err := db.Query(fmt.Sprintf("SELECT %s FROM categories ORDER BY name", categoryColumns))
	if err != nil {
		return nil, errors.Wrap(err, "querying categories")
	}
	defer rows.Close()

	var ret []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, c)
	}

	return ret, rows.Err()
}

const saleColumns = `local_id, server_id, sale_number, branch_id, items, subtotal, discount, total, payment_method, amount_paid, change_due, customer_name, synced, created_at, updated_at`

func scanSale(s scanner) (Sale, error) {
	var ret Sale
	var items, subtotal, discount, total, amountPaid, changeDue string

	err := s.Scan(&ret.LocalID, &ret.ServerID, &ret.SaleNumber, &ret.BranchID, &items,
		&subtotal, &discount, &total, &ret.PaymentMethod, &amountPaid, &changeDue,
		&ret.CustomerName, &ret.Synced, &ret.CreatedAt, &ret.UpdatedAt)
	if err == sql.ErrNoRows {
		return ret, ErrNotFound
	} else if err != nil {
		return ret, errors.Wrap(err, "scanning a sale row")
	}

	if ret.Items, err = unmarshalItems(items); err != nil {
		return ret, errors.Wrapf(err, "reading items of sale %s", ret.LocalID)
	}
	if ret.Subtotal, err = scanDecimal(subtotal); err != nil {
		return ret, errors.Wrapf(err, "reading subtotal of sale %s", ret.LocalID)
	}
	if ret.Discount, err = scanDecimal(discount); err != nil {
		return ret, errors.Wrapf(err, "reading discount of sale %s", ret.LocalID)
	}
	if ret.Total, err = scanDecimal(total); err != nil {
		return ret, errors.Wrapf(err, "reading total of sale %s", ret.LocalID)
	}
	if ret.AmountPaid, err = scanDecimal(amountPaid); err != nil {
		return ret, errors.Wrapf(err, "reading amount paid of sale %s", ret.LocalID)
	}
	if ret.ChangeDue, err = scanDecimal(changeDue); err != nil {
		return ret, errors.Wrapf(err, "reading change due of sale %s", ret.LocalID)
	}

	return ret, nil
}

// GetSale returns the sale with the given local id
func GetSale(db *DB, localID string) (Sale, error) {
	row := db.QueryRow(fmt.Sprintf("SELECT %s FROM sales WHERE local_id = ?", saleColumns), localID)
	return scanSale(row)
}

// GetSaleByServerID returns the sale with the given server id
func GetSaleByServerID(db *DB, serverID int64) (Sale, error) {
	row := db.QueryRow(fmt.Sprintf("SELECT %s FROM sales WHERE server_id = ?", saleColumns), serverID)
	return scanSale(row)
}

// ListUnsyncedSales returns all sales pending upload, oldest first. Records
// with an unresolved conflict are excluded until the conflict is resolved.
func ListUnsyncedSales(db *DB) ([]Sale, error) {
	rows, err := db.Query(fmt.Sprintf(`SELECT %s FROM sales WHERE NOT synced
		AND NOT EXISTS (SELECT 1 FROM conflicts WHERE conflicts.local_id = sales.local_id AND NOT conflicts.resolved)
		ORDER BY created_at`, saleColumns))
	if err != nil {
		return nil, errors.Wrap(err, "querying unsynced sales")
	}
	defer rows.Close()

	var ret []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, s)
	}

	return ret, rows.Err()
}

// ListSales returns every sale in the local store, oldest first
func ListSales(db *DB) ([]Sale, error) {
	rows, err := db.Query(fmt.Sprintf("SELECT %s FROM sales ORDER BY created_at", saleColumns))
	if err != nil {
		return nil, errors.Wrap(err, "querying sales")
	}
	defer rows.Close()

	var ret []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, s)
	}

	return ret, rows.Err()
}

const jobOrderColumns = `local_id, server_id, job_order_number, branch_id, customer_name, vehicle, mechanic_name, items, labor_cost, total, status, remarks, synced, created_at, updated_at`

func scanJobOrder(s scanner) (JobOrder, error) {
	var ret JobOrder
	var items, laborCost, total string

	err := s.Scan(&ret.LocalID, &ret.ServerID, &ret.JobOrderNumber, &ret.BranchID, &ret.CustomerName,
		&ret.Vehicle, &ret.MechanicName, &items, &laborCost, &total, &ret.Status, &ret.Remarks,
		&ret.Synced, &ret.CreatedAt, &ret.UpdatedAt)
	if err == sql.ErrNoRows {
		return ret, ErrNotFound
	} else if err != nil {
		return ret, errors.Wrap(err, "scanning a job order row")
	}

	if ret.Items, err = unmarshalItems(items); err != nil {
		return ret, errors.Wrapf(err, "reading items of job order %s", ret.LocalID)
	}
	if ret.LaborCost, err = scanDecimal(laborCost); err != nil {
		return ret, errors.Wrapf(err, "reading labor cost of job order %s", ret.LocalID)
	}
	if ret.Total, err = scanDecimal(total); err != nil {
		return ret, errors.Wrapf(err, "reading total of job order %s", ret.LocalID)
	}

	return ret, nil
}

// GetJobOrder returns the job order with the given local id
func GetJobOrder(db *DB, localID string) (JobOrder, error) {
	row := db.QueryRow(fmt.Sprintf("SELECT %s FROM job_orders WHERE local_id = ?", jobOrderColumns), localID)
	return scanJobOrder(row)
}

// GetJobOrderByServerID returns the job order with the given server id
func GetJobOrderByServerID(db *DB, serverID int64) (JobOrder, error) {
	row := db.QueryRow(fmt.Sprintf("SELECT %s FROM job_orders WHERE server_id = ?", jobOrderColumns), serverID)
	return scanJobOrder(row)
}

// ListUnsyncedJobOrders returns all job orders pending upload, oldest first,
// excluding those with an unresolved conflict
func ListUnsyncedJobOrders(db *DB) ([]JobOrder, error) {
	rows, err := db.Query(fmt.Sprintf(`SELECT %s FROM job_orders WHERE NOT synced
		AND NOT EXISTS (SELECT 1 FROM conflicts WHERE conflicts.local_id = job_orders.local_id AND NOT conflicts.resolved)
		ORDER BY created_at`, jobOrderColumns))
	if err != nil {
		return nil, errors.Wrap(err, "querying unsynced job orders")
	}
	defer rows.Close()

	var ret []JobOrder
	for rows.Next() {
		j, err := scanJobOrder(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, j)
	}

	return ret, rows.Err()
}

// ListJobOrders returns every job order in the local store, oldest first
func ListJobOrders(db *DB) ([]JobOrder, error) {
	rows, err := db.Query(fmt.Sprintf("SELECT %s FROM job_orders ORDER BY created_at", jobOrderColumns))
	if err != nil {
		return nil, errors.Wrap(err, "querying job orders")
	}
	defer rows.Close()

	var ret []JobOrder
	for rows.Next() {
		j, err := scanJobOrder(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, j)
	}

	return ret, rows.Err()
}

const reservationColumns = `local_id, server_id, reservation_number, branch_id, customer_name, reserved_for, items, total, status, synced, created_at, updated_at`

func scanReservation(s scanner) (Reservation, error) {
	var ret Reservation
	var items, total string

	err := s.Scan(&ret.LocalID, &ret.ServerID, &ret.ReservationNumber, &ret.BranchID, &ret.CustomerName,
		&ret.ReservedFor, &items, &total, &ret.Status, &ret.Synced, &ret.CreatedAt, &ret.UpdatedAt)
	if err == sql.ErrNoRows {
		return ret, ErrNotFound
	} else if err != nil {
		return ret, errors.Wrap(err, "scanning a reservation row")
	}

	if ret.Items, err = unmarshalItems(items); err != nil {
		return ret, errors.Wrapf(err, "reading items of reservation %s", ret.LocalID)
	}
	if ret.Total, err = scanDecimal(total); err != nil {
		return ret, errors.Wrapf(err, "reading total of reservation %s", ret.LocalID)
	}

	return ret, nil
}

// GetReservation returns the reservation with the given local id
func GetReservation(db *DB, localID string) (Reservation, error) {
	row := db.QueryRow(fmt.Sprintf("SELECT %s FROM reservations WHERE local_id = ?", reservationColumns), localID)
	return scanReservation(row)
}

// GetReservationByServerID returns the reservation with the given server id
func GetReservationByServerID(db *DB, serverID int64) (Reservation, error) {
	row := db.QueryRow(fmt.Sprintf("SELECT %s FROM reservations WHERE server_id = ?", reservationColumns), serverID)
	return scanReservation(row)
}

// ListUnsyncedReservations returns all reservations pending upload, oldest
// first, excluding those with an unresolved conflict
func ListUnsyncedReservations(db *DB) ([]Reservation, error) {
	rows, err := db.Query(fmt.Sprintf(`SELECT %s FROM reservations WHERE NOT synced
		AND NOT EXISTS (SELECT 1 FROM conflicts WHERE conflicts.local_id = reservations.local_id AND NOT conflicts.resolved)
		ORDER BY created_at`, reservationColumns))
	if err != nil {
		return nil, errors.Wrap(err, "querying unsynced reservations")
	}
	defer rows.Close()

	var ret []Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, r)
	}

	return ret, rows.Err()
}

// ListReservations returns every reservation in the local store, oldest first
func ListReservations(db *DB) ([]Reservation, error) {
	rows, err := db.Query(fmt.Sprintf("SELECT %s FROM reservations ORDER BY created_at", reservationColumns))
	if err != nil {
		return nil, errors.Wrap(err, "querying reservations")
	}
	defer rows.Close()

	var ret []Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, r)
	}

	return ret, rows.Err()
}

const attendanceColumns = `local_id, server_id, branch_id, employee_id, employee_name, clock_in, clock_out, remarks, synced, created_at, updated_at`

func scanAttendance(s scanner) (Attendance, error) {
	var ret Attendance

	err := s.Scan(&ret.LocalID, &ret.ServerID, &ret.BranchID, &ret.EmployeeID, &ret.EmployeeName,
		&ret.ClockIn, &ret.ClockOut, &ret.Remarks, &ret.Synced, &ret.CreatedAt, &ret.UpdatedAt)
	if err == sql.ErrNoRows {
		return ret, ErrNotFound
	} else if err != nil {
		return ret, errors.Wrap(err, "scanning an attendance row")
	}

	return ret, nil
}

// GetAttendance returns the attendance record with the given local id
func GetAttendance(db *DB, localID string) (Attendance, error) {
	row := db.QueryRow(fmt.Sprintf("SELECT %s FROM attendance WHERE local_id = ?", attendanceColumns), localID)
	return scanAttendance(row)
}

// GetAttendanceByServerID returns the attendance record with the given server id
func GetAttendanceByServerID(db *DB, serverID int64) (Attendance, error) {
	row := db.QueryRow(fmt.Sprintf("SELECT %s FROM attendance WHERE server_id = ?", attendanceColumns), serverID)
	return scanAttendance(row)
}

// ListUnsyncedAttendance returns all attendance records pending upload,
// oldest first, excluding those with an unresolved conflict
func ListUnsyncedAttendance(db *DB) ([]Attendance, error) {
	rows, err := db.Query(fmt.Sprintf(`SELECT %s FROM attendance WHERE NOT synced
		AND NOT EXISTS (SELECT 1 FROM conflicts WHERE conflicts.local_id = attendance.local_id AND NOT conflicts.resolved)
		ORDER BY created_at`, attendanceColumns))
	if err != nil {
		return nil, errors.Wrap(err, "querying unsynced attendance")
	}
	defer rows.Close()

	var ret []Attendance
	for rows.Next() {
		a, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, a)
	}

	return ret, rows.Err()
}

// ListAttendance returns every attendance record in the local store, oldest first
func ListAttendance(db *DB) ([]Attendance, error) {
	rows, err := db.Query(fmt.Sprintf("SELECT %s FROM attendance ORDER BY created_at", attendanceColumns))
	if err != nil {
		return nil, errors.Wrap(err, "querying attendance")
	}
	defer rows.Close()

	var ret []Attendance
	for rows.Next() {
		a, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, a)
	}

	return ret, rows.Err()
}

// CountUnsynced returns the number of records pending upload per entity kind
func CountUnsynced(db *DB) (map[string]int, error) {
	ret := map[string]int{}

	tables := map[string]string{
		EntityProduct:     "products",
		EntitySale:        "sales",
		EntityJobOrder:    "job_orders",
		EntityReservation: "reservations",
		EntityAttendance:  "attendance",
	}

	for kind, table := range tables {
		var count int
		if err := db.QueryRow(fmt.Sprintf("SELECT count(*) FROM %s WHERE NOT synced", table)).Scan(&count); err != nil {
			return nil, errors.Wrapf(err, "counting unsynced %s", table)
		}
		ret[kind] = count
	}

	return ret, nil
}

const conflictColumns = `id, entity_type, local_id, local_data, server_data, detected_at, resolved, resolution`

func scanConflict(s scanner) (Conflict, error) {
	var c Conflict

	err := s.Scan(&c.ID, &c.EntityType, &c.LocalID, &c.LocalData, &c.ServerData, &c.DetectedAt, &c.Resolved, &c.Resolution)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	} else if err != nil {
		return c, errors.Wrap(err, "scanning a conflict row")
	}

	return c, nil
}

// GetConflict returns the conflict with the given id
func GetConflict(db *DB, id int64) (Conflict, error) {
	row := db.QueryRow(fmt.Sprintf("SELECT %s FROM conflicts WHERE id = ?", conflictColumns), id)
	return scanConflict(row)
}

// GetUnresolvedConflict returns the unresolved conflict for the given local id, if any
func GetUnresolvedConflict(db *DB, localID string) (Conflict, error) {
	row := db.QueryRow(fmt.Sprintf("SELECT %s FROM conflicts WHERE local_id = ? AND NOT resolved", conflictColumns), localID)
	return scanConflict(row)
}

// ListUnresolvedConflicts returns all conflicts awaiting a resolution, oldest first
func ListUnresolvedConflicts(db *DB) ([]Conflict, error) {
	rows, err := db.Query(fmt.Sprintf("SELECT %s FROM conflicts WHERE NOT resolved ORDER BY detected_at", conflictColumns))
	if err != nil {
		return nil, errors.Wrap(err, "querying unresolved conflicts")
	}
	defer rows.Close()

	var ret []Conflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, c)
	}

	return ret, rows.Err()
}
