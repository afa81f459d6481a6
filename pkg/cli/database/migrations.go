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
	"github.com/pkg/errors"
	migrate "github.com/rubenv/sql-migrate"
)

// migrations is the ordered sequence of local schema migrations. New
// migrations are appended, never reordered or edited after release.
var migrations = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "1-init",
			Up: []string{
				`CREATE TABLE IF NOT EXISTS products
				(
					local_id text PRIMARY KEY,
					server_id integer,
					name text NOT NULL,
					sku text NOT NULL DEFAULT '',
					type text NOT NULL DEFAULT 'product',
					category_id integer,
					category_name text NOT NULL DEFAULT '',
					price text NOT NULL DEFAULT '0',
					cost text NOT NULL DEFAULT '0',
					description text NOT NULL DEFAULT '',
					stock integer NOT NULL DEFAULT 0,
					low_stock_threshold integer NOT NULL DEFAULT 0,
					branch_id integer NOT NULL,
					synced bool NOT NULL DEFAULT false,
					created_at integer NOT NULL,
					updated_at integer NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS categories
				(
					local_id text PRIMARY KEY,
					server_id integer,
					name text NOT NULL,
					type text NOT NULL DEFAULT 'product',
					synced bool NOT NULL DEFAULT false,
					created_at integer NOT NULL,
					updated_at integer NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS sales
				(
					local_id text PRIMARY KEY,
					server_id integer,
					sale_number text NOT NULL,
					branch_id integer NOT NULL,
					items text NOT NULL DEFAULT '[]',
					subtotal text NOT NULL DEFAULT '0',
					discount text NOT NULL DEFAULT '0',
					total text NOT NULL DEFAULT '0',
					payment_method text NOT NULL DEFAULT '',
					amount_paid text NOT NULL DEFAULT '0',
					change_due text NOT NULL DEFAULT '0',
					customer_name text NOT NULL DEFAULT '',
					synced bool NOT NULL DEFAULT false,
					created_at integer NOT NULL,
					updated_at integer NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS job_orders
				(
					local_id text PRIMARY KEY,
					server_id integer,
					job_order_number text NOT NULL,
					branch_id integer NOT NULL,
					customer_name text NOT NULL DEFAULT '',
					vehicle text NOT NULL DEFAULT '',
					mechanic_name text NOT NULL DEFAULT '',
					items text NOT NULL DEFAULT '[]',
					labor_cost text NOT NULL DEFAULT '0',
					total text NOT NULL DEFAULT '0',
					status text NOT NULL DEFAULT 'pending',
					remarks text NOT NULL DEFAULT '',
					synced bool NOT NULL DEFAULT false,
					created_at integer NOT NULL,
					updated_at integer NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS reservations
				(
					local_id text PRIMARY KEY,
					server_id integer,
					reservation_number text NOT NULL,
					branch_id integer NOT NULL,
					customer_name text NOT NULL DEFAULT '',
					reserved_for integer NOT NULL DEFAULT 0,
					items text NOT NULL DEFAULT '[]',
					total text NOT NULL DEFAULT '0',
					status text NOT NULL DEFAULT 'pending',
					synced bool NOT NULL DEFAULT false,
					created_at integer NOT NULL,
					updated_at integer NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS attendance
				(
					local_id text PRIMARY KEY,
					server_id integer,
					branch_id integer NOT NULL,
					employee_id integer NOT NULL,
					employee_name text NOT NULL DEFAULT '',
					clock_in integer NOT NULL,
					clock_out integer,
					remarks text NOT NULL DEFAULT '',
					synced bool NOT NULL DEFAULT false,
					created_at integer NOT NULL,
					updated_at integer NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS conflicts
				(
					id integer PRIMARY KEY AUTOINCREMENT,
					entity_type text NOT NULL,
					local_id text NOT NULL,
					local_data text NOT NULL,
					server_data text NOT NULL,
					detected_at integer NOT NULL,
					resolved bool NOT NULL DEFAULT false,
					resolution text NOT NULL DEFAULT ''
				)`,
				`CREATE TABLE IF NOT EXISTS system
				(
					key text NOT NULL,
					value text NOT NULL
				)`,
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_products_server_id ON products(server_id) WHERE server_id IS NOT NULL`,
				`CREATE INDEX IF NOT EXISTS idx_products_synced ON products(synced)`,
				`CREATE INDEX IF NOT EXISTS idx_products_branch_id ON products(branch_id)`,
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_categories_server_id ON categories(server_id) WHERE server_id IS NOT NULL`,
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_sales_server_id ON sales(server_id) WHERE server_id IS NOT NULL`,
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_sales_number ON sales(sale_number)`,
				`CREATE INDEX IF NOT EXISTS idx_sales_synced ON sales(synced)`,
				`CREATE INDEX IF NOT EXISTS idx_sales_branch_id ON sales(branch_id)`,
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_job_orders_server_id ON job_orders(server_id) WHERE server_id IS NOT NULL`,
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_job_orders_number ON job_orders(job_order_number)`,
				`CREATE INDEX IF NOT EXISTS idx_job_orders_synced ON job_orders(synced)`,
				`CREATE INDEX IF NOT EXISTS idx_job_orders_branch_id ON job_orders(branch_id)`,
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_reservations_server_id ON reservations(server_id) WHERE server_id IS NOT NULL`,
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_reservations_number ON reservations(reservation_number)`,
				`CREATE INDEX IF NOT EXISTS idx_reservations_synced ON reservations(synced)`,
				`CREATE INDEX IF NOT EXISTS idx_reservations_branch_id ON reservations(branch_id)`,
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_attendance_server_id ON attendance(server_id) WHERE server_id IS NOT NULL`,
				`CREATE INDEX IF NOT EXISTS idx_attendance_synced ON attendance(synced)`,
				`CREATE INDEX IF NOT EXISTS idx_attendance_branch_id ON attendance(branch_id)`,
				`CREATE INDEX IF NOT EXISTS idx_conflicts_local_id ON conflicts(local_id)`,
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_system_key ON system(key)`,
			},
		},
	},
}

// Migrate brings the local database schema up to date
func Migrate(db *DB) error {
	if _, err := migrate.Exec(db.conn, "sqlite3", migrations, migrate.Up); err != nil {
		return errors.Wrap(err, "running schema migrations")
	}

	return nil
}
