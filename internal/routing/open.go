// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package routing

import (
	"database/sql"
	"fmt"
)

// Open returns the HarvestRepository a cmd/eida-* binary wires up at
// startup: a SQLStore over driver/dsn when both are non-empty, or the
// in-memory reference store otherwise (the zero-config, single-process
// default this module's own binaries ship with). driver must already be
// registered with database/sql by the binary's main package (a blank
// import of the chosen driver, e.g. lib/pq or pgx's stdlib shim) since
// this package never imports one itself. The returned close func is a no-op
// for the in-memory store.
func Open(driver, dsn string) (HarvestRepository, func() error, error) {
	if driver == "" || dsn == "" {
		store := NewMemStore()
		return store, func() error { return nil }, nil
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("routing: open %s: %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("routing: ping %s: %w", driver, err)
	}
	return NewSQLStore(db), db.Close, nil
}
