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
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Entity kinds as stored in the conflicts table and reported during sync
const (
	EntityProduct     = "product"
	EntityCategory    = "category"
	EntitySale        = "sale"
	EntityJobOrder    = "job_order"
	EntityReservation = "reservation"
	EntityAttendance  = "attendance"
)

// Product is a catalog item sold or serviced at a branch. The stock value
// is authoritative on the server and is overwritten on every pull.
type Product struct {
	LocalID           string          `json:"local_id"`
	ServerID          sql.NullInt64   `json:"server_id"`
	Name              string          `json:"name"`
	SKU               string          `json:"sku"`
	Type              string          `json:"type"`
	CategoryID        sql.NullInt64   `json:"category_id"`
	CategoryName      string          `json:"category_name"`
	Price             decimal.Decimal `json:"price"`
	Cost              decimal.Decimal `json:"cost"`
	Description       string          `json:"description"`
	Stock             int64           `json:"stock"`
	LowStockThreshold int64           `json:"low_stock_threshold"`
	BranchID          int64           `json:"branch_id"`
	Synced            bool            `json:"synced"`
	CreatedAt         int64           `json:"created_at"`
	UpdatedAt         int64           `json:"updated_at"`
}

// Category is a catalog grouping for products and services
type Category struct {
	LocalID   string        `json:"local_id"`
	ServerID  sql.NullInt64 `json:"server_id"`
	Name      string        `json:"name"`
	Type      string        `json:"type"`
	Synced    bool          `json:"synced"`
	CreatedAt int64         `json:"created_at"`
	UpdatedAt int64         `json:"updated_at"`
}

// LineItem is a single line of a sale, job order or reservation
type LineItem struct {
	ProductServerID *int64          `json:"product_server_id,omitempty"`
	ProductLocalID  string          `json:"product_local_id,omitempty"`
	Name            string          `json:"name"`
	Quantity        int64           `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	LineTotal       decimal.Decimal `json:"line_total"`
}

// Sale is a point-of-sale transaction rung up at a branch
type Sale struct {
	LocalID       string          `json:"local_id"`
	ServerID      sql.NullInt64   `json:"server_id"`
	SaleNumber    string          `json:"sale_number"`
	BranchID      int64           `json:"branch_id"`
	Items         []LineItem      `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"payment_method"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	ChangeDue     decimal.Decimal `json:"change_due"`
	CustomerName  string          `json:"customer_name"`
	Synced        bool            `json:"synced"`
	CreatedAt     int64           `json:"created_at"`
	UpdatedAt     int64           `json:"updated_at"`
}

// JobOrder is a repair work order assigned to a mechanic
type JobOrder struct {
	LocalID        string          `json:"local_id"`
	ServerID       sql.NullInt64   `json:"server_id"`
	JobOrderNumber string          `json:"job_order_number"`
	BranchID       int64           `json:"branch_id"`
	CustomerName   string          `json:"customer_name"`
	Vehicle        string          `json:"vehicle"`
	MechanicName   string          `json:"mechanic_name"`
	Items          []LineItem      `json:"items"`
	LaborCost      decimal.Decimal `json:"labor_cost"`
	Total          decimal.Decimal `json:"total"`
	Status         string          `json:"status"`
	Remarks        string          `json:"remarks"`
	Synced         bool            `json:"synced"`
	CreatedAt      int64           `json:"created_at"`
	UpdatedAt      int64           `json:"updated_at"`
}

// Reservation is a customer booking for products or a service slot
type Reservation struct {
	LocalID           string          `json:"local_id"`
	ServerID          sql.NullInt64   `json:"server_id"`
	ReservationNumber string          `json:"reservation_number"`
	BranchID          int64           `json:"branch_id"`
	CustomerName      string          `json:"customer_name"`
	ReservedFor       int64           `json:"reserved_for"`
	Items             []LineItem      `json:"items"`
	Total             decimal.Decimal `json:"total"`
	Status            string          `json:"status"`
	Synced            bool            `json:"synced"`
	CreatedAt         int64           `json:"created_at"`
	UpdatedAt         int64           `json:"updated_at"`
}

// Attendance is a clock-in/clock-out record captured for an employee
type Attendance struct {
	LocalID      string        `json:"local_id"`
	ServerID     sql.NullInt64 `json:"server_id"`
	BranchID     int64         `json:"branch_id"`
	EmployeeID   int64         `json:"employee_id"`
	EmployeeName string        `json:"employee_name"`
	ClockIn      int64         `json:"clock_in"`
	ClockOut     sql.NullInt64 `json:"clock_out"`
	Remarks      string        `json:"remarks"`
	Synced       bool          `json:"synced"`
	CreatedAt    int64         `json:"created_at"`
	UpdatedAt    int64         `json:"updated_at"`
}

// Conflict is a local/server record pair awaiting an explicit resolution
type Conflict struct {
	ID         int64  `json:"id"`
	EntityType string `json:"entity_type"`
	LocalID    string `json:"local_id"`
	LocalData  string `json:"local_data"`
	ServerData string `json:"server_data"`
	DetectedAt int64  `json:"detected_at"`
	Resolved   bool   `json:"resolved"`
	Resolution string `json:"resolution"`
}

func marshalItems(items []LineItem) (string, error) {
	if items == nil {
		items = []LineItem{}
	}

	b, err := json.Marshal(items)
	if err != nil {
		return "", errors.Wrap(err, "marshalling line items")
	}

	return string(b), nil
}

func unmarshalItems(data string) ([]LineItem, error) {
	var items []LineItem
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return nil, errors.Wrap(err, "unmarshalling line items")
	}

	return items, nil
}

func scanDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parsing decimal value '%s'", s)
	}

	return d, nil
}

// Insert inserts a new product
func (p Product) Insert(db *DB) error {
	_, err := db.Exec(`INSERT INTO products
		(local_id, server_id, name, sku, type, category_id, category_name, price, cost, description, stock, low_stock_threshold, branch_id, synced, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.LocalID, p.ServerID, p.Name, p.SKU, p.Type, p.CategoryID, p.CategoryName,
		p.Price.String(), p.Cost.String(), p.Description, p.Stock, p.LowStockThreshold,
		p.BranchID, p.Synced, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return errors.Wrapf(err, "inserting product %s", p.LocalID)
	}

	return nil
}

// Update updates the product with the given data
func (p Product) Update(db *DB) error {
	_, err := db.Exec(`UPDATE products SET server_id = ?, name = ?, sku = ?, type = ?, category_id = ?, category_name = ?,
		price = ?, cost = ?, description = ?, stock = ?, low_stock_threshold = ?, branch_id = ?, synced = ?, updated_at = ?
		WHERE local_id = ?`,
		p.ServerID, p.Name, p.SKU, p.Type, p.CategoryID, p.CategoryName,
		p.Price.String(), p.Cost.String(), p.Description, p.Stock, p.LowStockThreshold,
		p.BranchID, p.Synced, p.UpdatedAt, p.LocalID)
	if err != nil {
		return errors.Wrapf(err, "updating product %s", p.LocalID)
	}

	return nil
}

// Expunge hard-deletes the product from the local store
func (p Product) Expunge(db *DB) error {
	if _, err := db.Exec("DELETE FROM products WHERE local_id = ?", p.LocalID); err != nil {
		return errors.Wrapf(err, "expunging product %s", p.LocalID)
	}

	return nil
}

// Insert inserts a new category
func (c Category) Insert(db *DB) error {
	_, err := db.Exec(`INSERT INTO categories (local_id, server_id, name, type, synced, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.LocalID, c.ServerID, c.Name, c.Type, c.Synced, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return errors.Wrapf(err, "inserting category %s", c.LocalID)
	}

	return nil
}

// Update updates the category with the given data
func (c Category) Update(db *DB) error {
	_, err := db.Exec(`UPDATE categories SET server_id = ?, name = ?, type = ?, synced = ?, updated_at = ? WHERE local_id = ?`,
		c.ServerID, c.Name, c.Type, c.Synced, c.UpdatedAt, c.LocalID)
	if err != nil {
		return errors.Wrapf(err, "updating category %s", c.LocalID)
	}

	return nil
}

// Expunge hard-deletes the category from the local store
func (c Category) Expunge(db *DB) error {
	if _, err := db.Exec("DELETE FROM categories WHERE local_id = ?", c.LocalID); err != nil {
		return errors.Wrapf(err, "expunging category %s", c.LocalID)
	}

	return nil
}

// Insert inserts a new sale
func (s Sale) Insert(db *DB) error {
	items, err := marshalItems(s.Items)
	if err != nil {
		return errors.Wrapf(err, "preparing items for sale %s", s.LocalID)
	}

	_, err = db.Exec(`INSERT INTO sales
		(local_id, server_id, sale_number, branch_id, items, subtotal, discount, total, payment_method, amount_paid, change_due, customer_name, synced, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.LocalID, s.ServerID, s.SaleNumber, s.BranchID, items,
		s.Subtotal.String(), s.Discount.String(), s.Total.String(), s.PaymentMethod,
		s.AmountPaid.String(), s.ChangeDue.String(), s.CustomerName, s.Synced, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return errors.Wrapf(err, "inserting sale %s", s.LocalID)
	}

	return nil
}

// Update updates the sale with the given data
func (s Sale) Update(db *DB) error {
	items, err := marshalItems(s.Items)
	if err != nil {
		return errors.Wrapf(err, "preparing items for sale %s", s.LocalID)
	}

	_, err = db.Exec(`UPDATE sales SET server_id = ?, sale_number = ?, branch_id = ?, items = ?, subtotal = ?, discount = ?, total = ?,
		payment_method = ?, amount_paid = ?, change_due = ?, customer_name = ?, synced = ?, updated_at = ? WHERE local_id = ?`,
		s.ServerID, s.SaleNumber, s.BranchID, items,
		s.Subtotal.String(), s.Discount.String(), s.Total.String(), s.PaymentMethod,
		s.AmountPaid.String(), s.ChangeDue.String(), s.CustomerName, s.Synced, s.UpdatedAt, s.LocalID)
	if err != nil {
		return errors.Wrapf(err, "updating sale %s", s.LocalID)
	}

	return nil
}

// Expunge hard-deletes the sale from the local store
func (s Sale) Expunge(db *DB) error {
	if _, err := db.Exec("DELETE FROM sales WHERE local_id = ?", s.LocalID); err != nil {
		return errors.Wrapf(err, "expunging sale %s", s.LocalID)
	}

	return nil
}

// Insert inserts a new job order
func (j JobOrder) Insert(db *DB) error {
	items, err := marshalItems(j.Items)
	if err != nil {
		return errors.Wrapf(err, "preparing items for job order %s", j.LocalID)
	}

	_, err = db.Exec(`INSERT INTO job_orders
		(local_id, server_id, job_order_number, branch_id, customer_name, vehicle, mechanic_name, items, labor_cost, total, status, remarks, synced, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.LocalID, j.ServerID, j.JobOrderNumber, j.BranchID, j.CustomerName, j.Vehicle,
		j.MechanicName, items, j.LaborCost.String(), j.Total.String(), j.Status, j.Remarks,
		j.Synced, j.CreatedAt, j.UpdatedAt)
	if err != nil {
		return errors.Wrapf(err, "inserting job order %s", j.LocalID)
	}

	return nil
}

// Update updates the job order with the given data
func (j JobOrder) Update(db *DB) error {
	items, err := marshalItems(j.Items)
	if err != nil {
		return errors.Wrapf(err, "preparing items for job order %s", j.LocalID)
	}

	_, err = db.Exec(`UPDATE job_orders SET server_id = ?, job_order_number = ?, branch_id = ?, customer_name = ?, vehicle = ?,
		mechanic_name = ?, items = ?, labor_cost = ?, total = ?, status = ?, remarks = ?, synced = ?, updated_at = ? WHERE local_id = ?`,
		j.ServerID, j.JobOrderNumber, j.BranchID, j.CustomerName, j.Vehicle,
		j.MechanicName, items, j.LaborCost.String(), j.Total.String(), j.Status, j.Remarks,
		j.Synced, j.UpdatedAt, j.LocalID)
	if err != nil {
		return errors.Wrapf(err, "updating job order %s", j.LocalID)
	}

	return nil
}

// Expunge hard-deletes the job order from the local store
func (j JobOrder) Expunge(db *DB) error {
	if _, err := db.Exec("DELETE FROM job_orders WHERE local_id = ?", j.LocalID); err != nil {
		return errors.Wrapf(err, "expunging job order %s", j.LocalID)
	}

	return nil
}

// Insert inserts a new reservation
func (r Reservation) Insert(db *DB) error {
	items, err := marshalItems(r.Items)
	if err != nil {
		return errors.Wrapf(err, "preparing items for reservation %s", r.LocalID)
	}

	_, err = db.Exec(`INSERT INTO reservations
		(local_id, server_id, reservation_number, branch_id, customer_name, reserved_for, items, total, status, synced, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.LocalID, r.ServerID, r.ReservationNumber, r.BranchID, r.CustomerName, r.ReservedFor,
		items, r.Total.String(), r.Status, r.Synced, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return errors.Wrapf(err, "inserting reservation %s", r.LocalID)
	}

	return nil
}

// Update updates the reservation with the given data
func (r Reservation) Update(db *DB) error {
	items, err := marshalItems(r.Items)
	if err != nil {
		return errors.Wrapf(err, "preparing items for reservation %s", r.LocalID)
	}

	_, err = db.Exec(`UPDATE reservations SET server_id = ?, reservation_number = ?, branch_id = ?, customer_name = ?, reserved_for = ?,
		items = ?, total = ?, status = ?, synced = ?, updated_at = ? WHERE local_id = ?`,
		r.ServerID, r.ReservationNumber, r.BranchID, r.CustomerName, r.ReservedFor,
		items, r.Total.String(), r.Status, r.Synced, r.UpdatedAt, r.LocalID)
	if err != nil {
		return errors.Wrapf(err, "updating reservation %s", r.LocalID)
	}

	return nil
}

// Expunge hard-deletes the reservation from the local store
func (r Reservation) Expunge(db *DB) error {
	if _, err := db.Exec("DELETE FROM reservations WHERE local_id = ?", r.LocalID); err != nil {
		return errors.Wrapf(err, "expunging reservation %s", r.LocalID)
	}

	return nil
}

// Insert inserts a new attendance record
func (a Attendance) Insert(db *DB) error {
	_, err := db.Exec(`INSERT INTO attendance
		(local_id, server_id, branch_id, employee_id, employee_name, clock_in, clock_out, remarks, synced, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.LocalID, a.ServerID, a.BranchID, a.EmployeeID, a.EmployeeName, a.ClockIn, a.ClockOut,
		a.Remarks, a.Synced, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return errors.Wrapf(err, "inserting attendance %s", a.LocalID)
	}

	return nil
}

// Update updates the attendance record with the given data
func (a Attendance) Update(db *DB) error {
	_, err := db.Exec(`UPDATE attendance SET server_id = ?, branch_id = ?, employee_id = ?, employee_name = ?, clock_in = ?,
		clock_out = ?, remarks = ?, synced = ?, updated_at = ? WHERE local_id = ?`,
		a.ServerID, a.BranchID, a.EmployeeID, a.EmployeeName, a.ClockIn, a.ClockOut,
		a.Remarks, a.Synced, a.UpdatedAt, a.LocalID)
	if err != nil {
		return errors.Wrapf(err, "updating attendance %s", a.LocalID)
	}

	return nil
}

// Expunge hard-deletes the attendance record from the local store
func (a Attendance) Expunge(db *DB) error {
	if _, err := db.Exec("DELETE FROM attendance WHERE local_id = ?", a.LocalID); err != nil {
		return errors.Wrapf(err, "expunging attendance %s", a.LocalID)
	}

	return nil
}

// Insert inserts a new conflict
func (c *Conflict) Insert(db *DB) error {
	res, err := db.Exec(`INSERT INTO conflicts (entity_type, local_id, local_data, server_data, detected_at, resolved, resolution)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.EntityType, c.LocalID, c.LocalData, c.ServerData, c.DetectedAt, c.Resolved, c.Resolution)
	if err != nil {
		return errors.Wrapf(err, "inserting conflict for %s %s", c.EntityType, c.LocalID)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "getting conflict id")
	}
	c.ID = id

	return nil
}

// Update updates the conflict with the given data
func (c Conflict) Update(db *DB) error {
	_, err := db.Exec("UPDATE conflicts SET resolved = ?, resolution = ? WHERE id = ?", c.Resolved, c.Resolution, c.ID)
	if err != nil {
		return errors.Wrapf(err, "updating conflict %d", c.ID)
	}

	return nil
}
