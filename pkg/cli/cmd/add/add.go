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

// Package add creates records in the local store while offline. Created
// records are queued for upload on the next sync cycle.
package add

import (
	"strconv"
	"strings"

	"github.com/garahe/garahe/pkg/cli/context"
	"github.com/garahe/garahe/pkg/cli/database"
	"github.com/garahe/garahe/pkg/cli/log"
	"github.com/garahe/garahe/pkg/cli/records"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var example = `
 * Ring up a sale with two line items
 garahe add sale -i "brake pad:2:450" -i "labor:1:300" --payment cash --paid 1200

 * Open a job order for a vehicle
 garahe add joborder --customer "Aling Nena" --vehicle "Mitsubishi L300" --mechanic "Edgar" -i "change oil:1:350" --labor 150

 * Book a reservation
 garahe add reservation --customer "Mang Ben" --for 1742076000 -i "tire:4:1800"

 * Clock an employee in
 garahe add attendance --employee-id 3 --employee "Marco Reyes"

 * Register a product created at the branch
 garahe add product "brake pad" --price 450 --stock 12`

// NewCmd returns a new add command
func NewCmd(ctx context.GaraheCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Create records while offline",
		Example: example,
	}

	cmd.AddCommand(newSaleCmd(ctx))
	cmd.AddCommand(newJobOrderCmd(ctx))
	cmd.AddCommand(newReservationCmd(ctx))
	cmd.AddCommand(newAttendanceCmd(ctx))
	cmd.AddCommand(newProductCmd(ctx))

	return cmd
}

// parseItems parses repeated "name:quantity:unit_price" flags into line
// items and returns them with their sum
func parseItems(raw []string) ([]database.LineItem, decimal.Decimal, error) {
	items := make([]database.LineItem, 0, len(raw))
	subtotal := decimal.Zero

	for _, r := range raw {
		parts := strings.Split(r, ":")
		if len(parts) != 3 {
			return nil, decimal.Zero, errors.Errorf("invalid item '%s': want name:quantity:unit_price", r)
		}

		qty, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || qty <= 0 {
			return nil, decimal.Zero, errors.Errorf("invalid quantity in item '%s'", r)
		}

		price, err := decimal.NewFromString(parts[2])
		if err != nil {
			return nil, decimal.Zero, errors.Errorf("invalid unit price in item '%s'", r)
		}

		lineTotal := price.Mul(decimal.NewFromInt(qty))
		items = append(items, database.LineItem{
			Name:      parts[0],
			Quantity:  qty,
			UnitPrice: price,
			LineTotal: lineTotal,
		})
		subtotal = subtotal.Add(lineTotal)
	}

	return items, subtotal, nil
}

func parseAmount(val, name string) (decimal.Decimal, error) {
	if val == "" {
		return decimal.Zero, nil
	}

	d, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parsing %s", name)
	}

	return d, nil
}

func newSaleCmd(ctx context.GaraheCtx) *cobra.Command {
	var itemFlags []string
	var discount, paid, payment, customer string

	cmd := &cobra.Command{
		Use:   "sale",
		Short: "Ring up a sale",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, subtotal, err := parseItems(itemFlags)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				return errors.New("a sale needs at least one item")
			}

			disc, err := parseAmount(discount, "discount")
			if err != nil {
				return err
			}
			total := subtotal.Sub(disc)

			amountPaid := total
			if paid != "" {
				amountPaid, err = parseAmount(paid, "amount paid")
				if err != nil {
					return err
				}
			}
			if amountPaid.LessThan(total) {
				return errors.New("amount paid is less than the total")
			}

			s, err := records.NewSale(ctx.Clock, database.Sale{
				BranchID:      ctx.BranchID,
				Items:         items,
				Subtotal:      subtotal,
				Discount:      disc,
				Total:         total,
				PaymentMethod: payment,
				AmountPaid:    amountPaid,
				ChangeDue:     amountPaid.Sub(total),
				CustomerName:  customer,
			})
			if err != nil {
				return errors.Wrap(err, "creating sale")
			}
			if err := s.Insert(ctx.DB); err != nil {
				return errors.Wrap(err, "saving sale")
			}

			log.Successf("created sale %s\n", s.SaleNumber)

			return nil
		},
	}

	f := cmd.Flags()
	f.StringArrayVarP(&itemFlags, "item", "i", nil, "A line item as name:quantity:unit_price")
	f.StringVar(&discount, "discount", "", "The discount amount")
	f.StringVar(&paid, "paid", "", "The amount paid. Defaults to the total")
	f.StringVar(&payment, "payment", "cash", "The payment method")
	f.StringVar(&customer, "customer", "", "The customer name")

	return cmd
}

func newJobOrderCmd(ctx context.GaraheCtx) *cobra.Command {
	var itemFlags []string
	var customer, vehicle, mechanic, labor, remarks string

	cmd := &cobra.Command{
		Use:   "joborder",
		Short: "Open a repair job order",
		RunE: func(cmd *cobra.Command, args []string) error {
			if customer == "" {
				return errors.New("a job order needs a customer")
			}

			items, subtotal, err := parseItems(itemFlags)
			if err != nil {
				return err
			}

			laborCost, err := parseAmount(labor, "labor cost")
			if err != nil {
				return err
			}

			j, err := records.NewJobOrder(ctx.Clock, database.JobOrder{
				BranchID:     ctx.BranchID,
				CustomerName: customer,
				Vehicle:      vehicle,
				MechanicName: mechanic,
				Items:        items,
				LaborCost:    laborCost,
				Total:        subtotal.Add(laborCost),
				Status:       "pending",
				Remarks:      remarks,
			})
			if err != nil {
				return errors.Wrap(err, "creating job order")
			}
			if err := j.Insert(ctx.DB); err != nil {
				return errors.Wrap(err, "saving job order")
			}

			log.Successf("created job order %s\n", j.JobOrderNumber)

			return nil
		},
	}

	f := cmd.Flags()
	f.StringArrayVarP(&itemFlags, "item", "i", nil, "A line item as name:quantity:unit_price")
	f.StringVar(&customer, "customer", "", "The customer name")
	f.StringVar(&vehicle, "vehicle", "", "The vehicle being serviced")
	f.StringVar(&mechanic, "mechanic", "", "The assigned mechanic")
	f.StringVar(&labor, "labor", "", "The labor cost")
	f.StringVar(&remarks, "remarks", "", "Free-form remarks")

	return cmd
}

func newReservationCmd(ctx context.GaraheCtx) *cobra.Command {
	var itemFlags []string
	var customer string
	var reservedFor int64

	cmd := &cobra.Command{
		Use:   "reservation",
		Short: "Book a reservation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if customer == "" {
				return errors.New("a reservation needs a customer")
			}

			items, subtotal, err := parseItems(itemFlags)
			if err != nil {
				return err
			}

			r, err := records.NewReservation(ctx.Clock, database.Reservation{
				BranchID:     ctx.BranchID,
				CustomerName: customer,
				ReservedFor:  reservedFor,
				Items:        items,
				Total:        subtotal,
				Status:       "pending",
			})
			if err != nil {
				return errors.Wrap(err, "creating reservation")
			}
			if err := r.Insert(ctx.DB); err != nil {
				return errors.Wrap(err, "saving reservation")
			}

			log.Successf("created reservation %s\n", r.ReservationNumber)

			return nil
		},
	}

	f := cmd.Flags()
	f.StringArrayVarP(&itemFlags, "item", "i", nil, "A line item as name:quantity:unit_price")
	f.StringVar(&customer, "customer", "", "The customer name")
	f.Int64Var(&reservedFor, "for", 0, "The reserved time as a unix timestamp")

	return cmd
}

func newAttendanceCmd(ctx context.GaraheCtx) *cobra.Command {
	var employeeID int64
	var employee, remarks string

	cmd := &cobra.Command{
		Use:   "attendance",
		Short: "Clock an employee in",
		RunE: func(cmd *cobra.Command, args []string) error {
			if employeeID == 0 {
				return errors.New("an attendance record needs an employee id")
			}

			a, err := records.NewAttendance(ctx.Clock, database.Attendance{
				BranchID:     ctx.BranchID,
				EmployeeID:   employeeID,
				EmployeeName: employee,
				ClockIn:      ctx.Clock.Now().Unix(),
				Remarks:      remarks,
			})
			if err != nil {
				return errors.Wrap(err, "creating attendance record")
			}
			if err := a.Insert(ctx.DB); err != nil {
				return errors.Wrap(err, "saving attendance record")
			}

			log.Successf("clocked in employee %d\n", a.EmployeeID)

			return nil
		},
	}

	f := cmd.Flags()
	f.Int64Var(&employeeID, "employee-id", 0, "The employee id")
	f.StringVar(&employee, "employee", "", "The employee name")
	f.StringVar(&remarks, "remarks", "", "Free-form remarks")

	return cmd
}

func newProductCmd(ctx context.GaraheCtx) *cobra.Command {
	var sku, productType, price, cost, description string
	var stock, lowStock int64

	cmd := &cobra.Command{
		Use:   "product <name>",
		Short: "Register a product created at the branch",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("Incorrect number of argument")
			}

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			priceVal, err := parseAmount(price, "price")
			if err != nil {
				return err
			}
			costVal, err := parseAmount(cost, "cost")
			if err != nil {
				return err
			}

			p, err := records.NewProduct(ctx.Clock, database.Product{
				Name:              args[0],
				SKU:               sku,
				Type:              productType,
				Price:             priceVal,
				Cost:              costVal,
				Description:       description,
				Stock:             stock,
				LowStockThreshold: lowStock,
				BranchID:          ctx.BranchID,
			})
			if err != nil {
				return errors.Wrap(err, "creating product")
			}
			if err := p.Insert(ctx.DB); err != nil {
				return errors.Wrap(err, "saving product")
			}

			log.Successf("created product %s\n", p.Name)

			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&sku, "sku", "", "The product SKU")
	f.StringVar(&productType, "type", "product", "The product type")
	f.StringVar(&price, "price", "0", "The selling price")
	f.StringVar(&cost, "cost", "0", "The acquisition cost")
	f.StringVar(&description, "description", "", "The product description")
	f.Int64Var(&stock, "stock", 0, "The starting stock on hand")
	f.Int64Var(&lowStock, "low-stock", 0, "The low stock alert threshold")

	return cmd
}
