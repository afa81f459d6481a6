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

// Package database provides the local offline store for Garahe records
package database

import (
	"database/sql"

	// Register the sqlite3 driver for every binary that links this package.
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// ErrNotFound is an error for a record that does not exist in the local store
var ErrNotFound = errors.New("record not found")

// DB is a handle to the local database. It wraps either a connection or
// an active transaction, so that the same query methods can be used
// inside and outside a transaction.
type DB struct {
	conn *sql.DB
	tx   *sql.Tx
}

// Open opens a connection to the local database at the given path
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening database connection")
	}

	// sqlite handles one writer at a time. Funnel all access through a single
	// connection so that concurrent writes queue instead of failing with SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection
func (d *DB) Close() error {
	return d.conn.Close()
}

// Begin starts a transaction and returns a handle scoped to it
func (d *DB) Begin() (*DB, error) {
	tx, err := d.conn.Begin()
	if err != nil {
		return nil, errors.Wrap(err, "beginning a transaction")
	}

	return &DB{conn: d.conn, tx: tx}, nil
}

// Commit commits the active transaction
func (d *DB) Commit() error {
	if d.tx == nil {
		return errors.New("no active transaction")
	}

	return d.tx.Commit()
}

// Rollback aborts the active transaction
func (d *DB) Rollback() error {
	if d.tx == nil {
		return errors.New("no active transaction")
	}

	return d.tx.Rollback()
}

// Exec executes the given query against the active transaction, or the
// connection if no transaction is active
func (d *DB) Exec(query string, args ...interface{}) (sql.Result, error) {
	if d.tx != nil {
		return d.tx.Exec(query, args...)
	}

	return d.conn.Exec(query, args...)
}

// Query runs the given query and returns the resulting rows
func (d *DB) Query(query string, args ...interface{}) (*sql.Rows, error) {
	if d.tx != nil {
		return d.tx.Query(query, args...)
	}

	return d.conn.Query(query, args...)
}

// QueryRow runs the given query that is expected to return at most one row
func (d *DB) QueryRow(query string, args ...interface{}) *sql.Row {
	if d.tx != nil {
		return d.tx.QueryRow(query, args...)
	}

	return d.conn.QueryRow(query, args...)
}

// DoInTransaction runs the given function inside a transaction, committing
// on success and rolling back if the function returns an error.
func (d *DB) DoInTransaction(fn func(tx *DB) error) error {
	tx, err := d.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning a transaction")
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}

	return nil
}
