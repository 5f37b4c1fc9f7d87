// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package poses

import (
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const xlsxSheet = "poses"

func (t *Table) writeXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName(f.GetSheetName(0), xlsxSheet); err != nil {
		return err
	}

	doc := t.document()
	rows := make([][]string, 0, len(doc.Data)+1)
	rows = append(rows, doc.Columns)

	for _, cells := range doc.Data {
		rec, err := encodeCells(cells)
		if err != nil {
			return err
		}

		rows = append(rows, rec)
	}

	for i, rec := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}

		vals := make([]any, len(rec))
		for j, s := range rec {
			if n := utf8.RuneCountInString(s); n > excelize.TotalCellChars {
				return fmt.Errorf("row %d column %s: %d characters exceed the xlsx cell limit of %d",
					i, rows[0][j], n, excelize.TotalCellChars)
			}

			if s != "" {
				vals[j] = s
			}
		}

		if err := f.SetSheetRow(xlsxSheet, cell, &vals); err != nil {
			return err
		}
	}

	return f.Write(w)
}

func readXLSX(r io.Reader) (document, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return document{}, errors.Join(ErrCorruptTable, err)
	}
	defer f.Close() //nolint:errcheck

	recs, err := f.GetRows(xlsxSheet)
	if err != nil {
		return document{}, errors.Join(ErrCorruptTable, err)
	}

	return decodeRecords(recs)
}
