// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package poses

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/afero"
)

// Format is a table storage format.
type Format string

// Supported storage formats.
const (
	FormatJSON   Format = "json"
	FormatCSV    Format = "csv"
	FormatYAML   Format = "yaml"
	FormatXLSX   Format = "xlsx"
	FormatSQLite Format = "sqlite"
)

var (
	// ErrUnknownFormat is returned for unsupported storage formats.
	ErrUnknownFormat = errors.New("unknown table storage format")
	// ErrCorruptTable is returned when a stored table lacks a mandatory column or is malformed.
	ErrCorruptTable = errors.New("corrupt pose table")
	// ErrStorage is returned when a table cannot be written or read.
	ErrStorage = errors.New("table storage error")
)

// Formats lists the supported storage formats.
func Formats() []Format {
	return []Format{FormatJSON, FormatCSV, FormatYAML, FormatXLSX, FormatSQLite}
}

// ParseFormat returns the format named s. "yml" and "db" are accepted as aliases.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(s, "."))); f {
	case FormatJSON, FormatCSV, FormatYAML, FormatXLSX, FormatSQLite:
		return f, nil
	case "yml":
		return FormatYAML, nil
	case "db":
		return FormatSQLite, nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// FormatOf returns the format implied by the extension of path.
func FormatOf(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// Scorefile returns <workdir>/<basename of workdir>_scores.<format>.
func (t *Table) Scorefile(f Format) string {
	dir := filepath.Clean(t.workDir)
	return filepath.Join(dir, filepath.Base(dir)+"_scores."+string(f))
}

// SaveScores writes the table to its scorefile and returns the path.
func (t *Table) SaveScores(f Format) (string, error) {
	path := t.Scorefile(f)
	return path, t.Save(path)
}

// Save writes the table to path in the format implied by its extension.
// An existing file is replaced.
func (t *Table) Save(path string) error {
	f, err := FormatOf(path)
	if err != nil {
		return err
	}

	fs := FsFactory()
	if err := fs.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return errors.Join(ErrStorage, err)
	}

	if f == FormatSQLite {
		return t.saveSQLite(path)
	}

	var buf bytes.Buffer

	switch f {
	case FormatJSON:
		err = t.writeJSON(&buf)
	case FormatYAML:
		err = t.writeYAML(&buf)
	case FormatCSV:
		err = t.writeCSV(&buf)
	case FormatXLSX:
		err = t.writeXLSX(&buf)
	}

	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrStorage, path, err)
	}

	if err := afero.WriteFile(fs, path, buf.Bytes(), filePerm); err != nil {
		return errors.Join(ErrStorage, err)
	}

	return nil
}

// Load reads a table saved with Save. workDir becomes the table's work dir;
// if empty, the directory holding path is used.
func Load(path, workDir string) (*Table, error) {
	f, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	if workDir == "" {
		workDir = filepath.Dir(path)
	}

	var doc document

	if f == FormatSQLite {
		doc, err = readSQLite(path)
	} else {
		var b []byte

		b, err = afero.ReadFile(FsFactory(), path)
		if err != nil {
			return nil, errors.Join(ErrStorage, err)
		}

		switch f {
		case FormatJSON:
			doc, err = readJSON(b)
		case FormatYAML:
			doc, err = readYAML(b)
		case FormatCSV:
			doc, err = readCSV(bytes.NewReader(b))
		case FormatXLSX:
			doc, err = readXLSX(bytes.NewReader(b))
		}
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrStorage, path, err)
	}

	return doc.table(workDir)
}

// document is the format-neutral form of a table. A nil cell is an absent value.
type document struct {
	Columns []string `json:"columns" yaml:"columns"`
	Data    [][]any  `json:"data"    yaml:"data"`
}

func (t *Table) document() document {
	cols := t.Columns()
	doc := document{Columns: cols, Data: make([][]any, len(t.rows))}

	for i, r := range t.rows {
		row := make([]any, len(cols))
		for j, c := range cols {
			row[j], _ = r.Value(c)
		}

		doc.Data[i] = row
	}

	return doc
}

func (d document) table(workDir string) (*Table, error) {
	pos := make(map[string]int, len(d.Columns))
	t := &Table{workDir: workDir, index: make(map[string]int, len(d.Data))}

	for i, c := range d.Columns {
		if _, dup := pos[c]; dup {
			return nil, fmt.Errorf("%w: column %q appears twice", ErrCorruptTable, c)
		}

		pos[c] = i

		if !isMandatory(c) {
			t.columns = append(t.columns, c)
		}
	}

	for _, c := range []string{DescriptionColumn, PoseColumn, InputPoseColumn} {
		if _, ok := pos[c]; !ok {
			return nil, fmt.Errorf("%w: mandatory column %s missing", ErrCorruptTable, c)
		}
	}

	for n, cells := range d.Data {
		if len(cells) > len(d.Columns) {
			return nil, fmt.Errorf("%w: row %d has %d cells for %d columns", ErrCorruptTable, n, len(cells), len(d.Columns))
		}

		cell := func(c string) any {
			if i := pos[c]; i < len(cells) {
				return cells[i]
			}

			return nil
		}

		var r Row

		var ok bool

		if r.Description, ok = cell(DescriptionColumn).(string); !ok || r.Description == "" {
			return nil, fmt.Errorf("%w: row %d has no description", ErrCorruptTable, n)
		}

		if r.Pose, ok = cell(PoseColumn).(string); !ok {
			return nil, fmt.Errorf("%w: row %d (%s) has no pose", ErrCorruptTable, n, r.Description)
		}

		r.InputPose, _ = cell(InputPoseColumn).(string)
		r.Columns = make(map[string]any)

		for _, c := range t.columns {
			if v := cell(c); v != nil {
				r.Columns[c] = v
			}
		}

		if err := t.append(r); err != nil {
			return nil, errors.Join(ErrCorruptTable, err)
		}
	}

	return t, nil
}

func (t *Table) writeJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(t.document())
}

func readJSON(b []byte) (document, error) {
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return document{}, errors.Join(ErrCorruptTable, err)
	}

	return doc, nil
}

func (t *Table) writeYAML(w io.Writer) error {
	y, err := yaml.Marshal(t.document())
	if err != nil {
		return err
	}

	_, err = w.Write(y)

	return err
}

func readYAML(b []byte) (document, error) {
	var doc document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return document{}, errors.Join(ErrCorruptTable, err)
	}

	// YAML integers decode as int64 or uint64; cells hold float64 like JSON.
	for _, cells := range doc.Data {
		for i, v := range cells {
			n, err := normalize(v)
			if err != nil {
				return document{}, errors.Join(ErrCorruptTable, err)
			}

			cells[i] = n
		}
	}

	return doc, nil
}

func (t *Table) writeCSV(w io.Writer) error {
	doc := t.document()
	cw := csv.NewWriter(w)

	if err := cw.Write(doc.Columns); err != nil {
		return err
	}

	for _, cells := range doc.Data {
		rec, err := encodeCells(cells)
		if err != nil {
			return err
		}

		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	cw.Flush()

	return cw.Error()
}

func readCSV(r io.Reader) (document, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	recs, err := cr.ReadAll()
	if err != nil {
		return document{}, errors.Join(ErrCorruptTable, err)
	}

	return decodeRecords(recs)
}

// decodeRecords turns a header row and text cells into a document.
func decodeRecords(recs [][]string) (document, error) {
	if len(recs) == 0 {
		return document{}, fmt.Errorf("%w: no header row", ErrCorruptTable)
	}

	doc := document{Columns: recs[0], Data: make([][]any, 0, len(recs)-1)}

	for _, rec := range recs[1:] {
		cells := make([]any, len(rec))
		for i, s := range rec {
			cells[i] = decodeCell(s)
		}

		doc.Data = append(doc.Data, cells)
	}

	return doc, nil
}

func encodeCells(cells []any) ([]string, error) {
	out := make([]string, len(cells))

	for i, c := range cells {
		s, err := encodeCell(c)
		if err != nil {
			return nil, err
		}

		out[i] = s
	}

	return out, nil
}

// encodeCell renders a value for text-cell formats. Strings stay raw unless
// they are empty or would read back as another JSON value; everything else is JSON.
func encodeCell(v any) (string, error) {
	if v == nil {
		return "", nil
	}

	if s, ok := v.(string); ok && s != "" && !json.Valid([]byte(s)) {
		return s, nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

func decodeCell(s string) any {
	if s == "" {
		return nil
	}

	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}

	return v
}
