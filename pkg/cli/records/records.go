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

// Package records creates new local records. Every record created offline
// gets a generated local id and, for transactions, a human-readable number
// that doubles as the idempotency key during upload.
package records

import (
	"fmt"
	"strings"

	"github.com/garahe/garahe/pkg/cli/database"
	"github.com/garahe/garahe/pkg/cli/utils"
	"github.com/garahe/garahe/pkg/clock"
	"github.com/pkg/errors"
)

// Number prefixes per record kind
const (
	PrefixSale        = "SO"
	PrefixJobOrder    = "JO"
	PrefixReservation = "RS"
	PrefixAttendance  = "AT"
)

// GenerateNumber generates a record number such as SO-20250314-3F2A. The
// random suffix keeps numbers generated on the same day apart.
func GenerateNumber(prefix string, clk clock.Clock) (string, error) {
	u, err := utils.GenerateUUID()
	if err != nil {
		return "", errors.Wrap(err, "generating number suffix")
	}

	suffix := strings.ToUpper(strings.ReplaceAll(u, "-", "")[:4])
	return fmt.Sprintf("%s-%s-%s", prefix, clk.Now().Format("20060102"), suffix), nil
}

func stampIdentity(localID *string, createdAt, updatedAt *int64, synced *bool, clk clock.Clock) error {
	u, err := utils.GenerateUUID()
	if err != nil {
		return errors.Wrap(err, "generating local id")
	}

	now := clk.Now().Unix()
	*localID = u
	*createdAt = now
	*updatedAt = now
	*synced = false

	return nil
}

// NewProduct fills in the identity of a locally created product. Products
// have no generated number; their local id is used as the idempotency key.
func NewProduct(clk clock.Clock, p database.Product) (database.Product, error) {
	if err := stampIdentity(&p.LocalID, &p.CreatedAt, &p.UpdatedAt, &p.Synced, clk); err != nil {
		return p, err
	}

	return p, nil
}

// NewSale fills in the identity of a locally created sale
func NewSale(clk clock.Clock, s database.Sale) (database.Sale, error) {
	if err := stampIdentity(&s.LocalID, &s.CreatedAt, &s.UpdatedAt, &s.Synced, clk); err != nil {
		return s, err
	}

	number, err := GenerateNumber(PrefixSale, clk)
	if err != nil {
		return s, err
	}
	s.SaleNumber = number

	return s, nil
}

// NewJobOrder fills in the identity of a locally created job order
func NewJobOrder(clk clock.Clock, j database.JobOrder) (database.JobOrder, error) {
	if err := stampIdentity(&j.LocalID, &j.CreatedAt, &j.UpdatedAt, &j.Synced, clk); err != nil {
		return j, err
	}

	number, err := GenerateNumber(PrefixJobOrder, clk)
	if err != nil {
		return j, err
	}
	j.JobOrderNumber = number

	return j, nil
}

// NewReservation fills in the identity of a locally created reservation
func NewReservation(clk clock.Clock, r database.Reservation) (database.Reservation, error) {
	if err := stampIdentity(&r.LocalID, &r.CreatedAt, &r.UpdatedAt, &r.Synced, clk); err != nil {
		return r, err
	}

	number, err := GenerateNumber(PrefixReservation, clk)
	if err != nil {
		return r, err
	}
	r.ReservationNumber = number

	return r, nil
}

// NewAttendance fills in the identity of a locally created attendance record
func NewAttendance(clk clock.Clock, a database.Attendance) (database.Attendance, error) {
	if err := stampIdentity(&a.LocalID, &a.CreatedAt, &a.UpdatedAt, &a.Synced, clk); err != nil {
		return a, err
	}

	return a, nil
}
