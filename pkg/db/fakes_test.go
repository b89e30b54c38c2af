/*
 * Copyright 2025 Carver Automation Corporation.
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

package db

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var errFakeRowScanMismatch = errors.New("fake row scan mismatch")

// assign copies value into dest the way pgx would, allocating for pointer
// destinations such as **time.Time.
func assign(dest, value interface{}) error {
	dv := reflect.ValueOf(dest).Elem()

	if value == nil {
		dv.Set(reflect.Zero(dv.Type()))
		return nil
	}

	vv := reflect.ValueOf(value)

	if dv.Kind() == reflect.Ptr && vv.Type() != dv.Type() {
		p := reflect.New(dv.Type().Elem())
		p.Elem().Set(vv)
		dv.Set(p)

		return nil
	}

	if !vv.Type().AssignableTo(dv.Type()) {
		return fmt.Errorf("%w: cannot assign %s to %s", errFakeRowScanMismatch, vv.Type(), dv.Type())
	}

	dv.Set(vv)

	return nil
}

type fakeRow struct {
	values []interface{}
	err    error
}

func (r *fakeRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}

	if len(dest) != len(r.values) {
		return fmt.Errorf("%w: dest=%d values=%d", errFakeRowScanMismatch, len(dest), len(r.values))
	}

	for i := range dest {
		if err := assign(dest[i], r.values[i]); err != nil {
			return err
		}
	}

	return nil
}

type fakeRows struct {
	rows    [][]interface{}
	idx     int
	err     error
	scanErr error
	closed  bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}

	r.idx++

	return true
}

func (r *fakeRows) Scan(dest ...interface{}) error {
	if r.scanErr != nil {
		return r.scanErr
	}

	row := &fakeRow{values: r.rows[r.idx-1]}

	return row.Scan(dest...)
}

func (r *fakeRows) Values() ([]interface{}, error) {
	return r.rows[r.idx-1], nil
}

// fakeQuerier records statements and replays canned results.
type fakeQuerier struct {
	row      *fakeRow
	rows     *fakeRows
	queryErr error
	execErr  error

	queries []string
	args    [][]interface{}
}

func (f *fakeQuerier) Query(_ context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	f.queries = append(f.queries, sql)
	f.args = append(f.args, args)

	if f.queryErr != nil {
		return nil, f.queryErr
	}

	return f.rows, nil
}

func (f *fakeQuerier) QueryRow(_ context.Context, sql string, args ...interface{}) pgx.Row {
	f.queries = append(f.queries, sql)
	f.args = append(f.args, args)

	return f.row
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	f.queries = append(f.queries, sql)
	f.args = append(f.args, args)

	return pgconn.NewCommandTag("CREATE TABLE"), f.execErr
}
