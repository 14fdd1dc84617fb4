// Copyright 2025 Kadir Pekel
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

// Package store is the Agent Memory append-only event store: a single
// embedded database (SQLite by default; PostgreSQL and MySQL for centralized
// deployments) whose tables stand in for the column-family layout described
// in spec.md §4.1 and §6. Direct port of the dialect-switching approach in
// the teacher's SQL session service, generalized from one table pair
// (sessions/messages) to the seven families plus the topics table Agent
// Memory needs.
package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect names the supported database/sql drivers.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

func (d Dialect) driverName() string {
	if d == DialectSQLite {
		return "sqlite3"
	}
	return string(d)
}

func (d Dialect) valid() bool {
	switch d {
	case DialectSQLite, DialectPostgres, DialectMySQL:
		return true
	}
	return false
}

// rebind rewrites a query written with "?" placeholders into the dialect's
// native placeholder syntax ("?" for sqlite/mysql, "$1,$2,..." for postgres).
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// autoIncrementPK returns the dialect-specific column definition for an
// auto-incrementing integer primary key.
func (d Dialect) autoIncrementPK() string {
	switch d {
	case DialectPostgres:
		return "BIGSERIAL PRIMARY KEY"
	case DialectMySQL:
		return "BIGINT PRIMARY KEY AUTO_INCREMENT"
	default:
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
}

// upsertClause returns an "ON CONFLICT"/"ON DUPLICATE KEY" clause appropriate
// for the dialect, given the conflict target column and the columns to
// overwrite on conflict.
func (d Dialect) upsertClause(conflictCol string, updateCols []string) string {
	switch d {
	case DialectMySQL:
		parts := make([]string, len(updateCols))
		for i, c := range updateCols {
			parts[i] = fmt.Sprintf("%s=VALUES(%s)", c, c)
		}
		return "ON DUPLICATE KEY UPDATE " + strings.Join(parts, ", ")
	default: // postgres, sqlite both support the standard syntax
		parts := make([]string, len(updateCols))
		for i, c := range updateCols {
			parts[i] = fmt.Sprintf("%s=excluded.%s", c, c)
		}
		return fmt.Sprintf("ON CONFLICT(%s) DO UPDATE SET %s", conflictCol, strings.Join(parts, ", "))
	}
}
