// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package poses

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// sqliteTable is the table name inside an SQLite scorefile. Mandatory columns
// are stored as plain text, stage columns as JSON text, absent values as NULL.
// SQLite files are written to the OS filesystem directly.
const sqliteTable = "poses"

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func (t *Table) saveSQLite(path string) (err error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	defer db.Close() //nolint:errcheck

	tx, err := db.Begin()
	if err != nil {
		return errors.Join(ErrStorage, err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	doc := t.document()
	defs := make([]string, len(doc.Columns))
	marks := make([]string, len(doc.Columns))

	for i, c := range doc.Columns {
		defs[i] = quoteIdent(c) + " TEXT"
		marks[i] = "?"
	}

	stmts := []string{
		"DROP TABLE IF EXISTS " + quoteIdent(sqliteTable),
		fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(sqliteTable), strings.Join(defs, ", ")),
	}

	for _, s := range stmts {
		if _, err = tx.Exec(s); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrStorage, path, err)
		}
	}

	insert, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(sqliteTable), strings.Join(marks, ", ")))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrStorage, path, err)
	}
	defer insert.Close() //nolint:errcheck

	for _, cells := range doc.Data {
		args := make([]any, len(cells))

		for i, v := range cells {
			if args[i], err = sqliteValue(doc.Columns[i], v); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrStorage, path, err)
			}
		}

		if _, err = insert.Exec(args...); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrStorage, path, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrStorage, path, err)
	}

	return nil
}

func sqliteValue(column string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	if isMandatory(column) {
		return v, nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	return string(b), nil
}

func readSQLite(path string) (document, error) {
	if ok, err := afero.Exists(FsFactory(), path); err != nil || !ok {
		return document{}, fmt.Errorf("%s does not exist", path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return document{}, err
	}
	defer db.Close() //nolint:errcheck

	rows, err := db.Query("SELECT * FROM " + quoteIdent(sqliteTable))
	if err != nil {
		return document{}, errors.Join(ErrCorruptTable, err)
	}
	defer rows.Close() //nolint:errcheck

	cols, err := rows.Columns()
	if err != nil {
		return document{}, errors.Join(ErrCorruptTable, err)
	}

	doc := document{Columns: cols}

	for rows.Next() {
		raw := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))

		for i := range raw {
			ptrs[i] = &raw[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return document{}, errors.Join(ErrCorruptTable, err)
		}

		cells := make([]any, len(cols))

		for i, ns := range raw {
			switch {
			case !ns.Valid:
			case isMandatory(cols[i]):
				cells[i] = ns.String
			default:
				if err := json.Unmarshal([]byte(ns.String), &cells[i]); err != nil {
					return document{}, fmt.Errorf("%w: column %s: %w", ErrCorruptTable, cols[i], err)
				}
			}
		}

		doc.Data = append(doc.Data, cells)
	}

	if err := rows.Err(); err != nil {
		return document{}, errors.Join(ErrCorruptTable, err)
	}

	return doc, nil
}
