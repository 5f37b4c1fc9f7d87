// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package poses

import (
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"
)

// Mandatory columns of every persisted table.
const (
	DescriptionColumn = "poses_description"
	PoseColumn        = "poses"
	InputPoseColumn   = "input_poses"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

var (
	// ErrDuplicateDescription is returned when two rows would share a description.
	ErrDuplicateDescription = errors.New("duplicate pose description")
	// ErrUnknownPose is returned when a description is not in the table.
	ErrUnknownPose = errors.New("pose not found")
	// ErrUnknownColumn is returned when a column is not in the table schema.
	ErrUnknownColumn = errors.New("column not found")
	// ErrReservedColumn is returned when a row carries a mandatory column in Columns.
	ErrReservedColumn = errors.New("reserved column name")
	// ErrEmptyDescription is returned for rows without a description.
	ErrEmptyDescription = errors.New("empty pose description")
	// ErrPosesDir is returned when poses cannot be moved to another directory.
	ErrPosesDir = errors.New("cannot change poses directory")
)

// FsFactory returns the filesystem used for inputs and table storage.
var FsFactory = func() afero.Fs {
	return afero.NewOsFs()
}

// Row is one pose.
type Row struct {
	Description string         // unique within the table
	Pose        string         // current structure path
	InputPose   string         // structure path the pose entered the pipeline with
	Columns     map[string]any // stage columns, values are JSON-native
}

func (r Row) clone() Row {
	r.Columns = maps.Clone(r.Columns)
	if r.Columns == nil {
		r.Columns = make(map[string]any)
	}

	return r
}

// Value returns the value of a column, including the mandatory ones.
func (r Row) Value(column string) (any, bool) {
	switch column {
	case DescriptionColumn:
		return r.Description, true
	case PoseColumn:
		return r.Pose, true
	case InputPoseColumn:
		return r.InputPose, true
	}

	v, ok := r.Columns[column]

	return v, ok
}

// Table is an ordered set of rows sharing a column schema.
type Table struct {
	workDir string
	rows    []Row
	columns []string // stage columns in order of first appearance
	index   map[string]int
}

// New builds a table from rows. Column values are normalised to JSON-native
// types; nil values are dropped. The schema is the union of all row columns
// in order of first appearance, sorted by name within each row.
func New(workDir string, rows []Row) (*Table, error) {
	t := &Table{
		workDir: workDir,
		rows:    make([]Row, 0, len(rows)),
		index:   make(map[string]int, len(rows)),
	}
	known := make(map[string]struct{})

	for _, r := range rows {
		r = r.clone()

		if r.Description == "" {
			return nil, fmt.Errorf("%w: pose %q", ErrEmptyDescription, r.Pose)
		}

		for _, k := range slices.Sorted(maps.Keys(r.Columns)) {
			if isMandatory(k) {
				return nil, fmt.Errorf("%w: %s", ErrReservedColumn, k)
			}

			v, err := normalize(r.Columns[k])
			if err != nil {
				return nil, fmt.Errorf("pose %s column %s: %w", r.Description, k, err)
			}

			if v == nil {
				delete(r.Columns, k)
				continue
			}

			r.Columns[k] = v

			if _, ok := known[k]; !ok {
				known[k] = struct{}{}
				t.columns = append(t.columns, k)
			}
		}

		if err := t.append(r); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// FromPaths builds a table with one row per structure path. The description
// of a pose is its file name up to the first dot.
func FromPaths(workDir string, paths []string) (*Table, error) {
	rows := make([]Row, len(paths))
	for i, p := range paths {
		rows[i] = Row{Description: DescriptionFromPath(p), Pose: p, InputPose: p}
	}

	return New(workDir, rows)
}

// DescriptionFromPath returns the file name of path up to its first dot.
func DescriptionFromPath(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i > 0 {
		return base[:i]
	}

	return base
}

func isMandatory(column string) bool {
	return column == DescriptionColumn || column == PoseColumn || column == InputPoseColumn
}

func (t *Table) append(r Row) error {
	if _, ok := t.index[r.Description]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateDescription, r.Description)
	}

	t.index[r.Description] = len(t.rows)
	t.rows = append(t.rows, r)

	return nil
}

func (t *Table) addColumn(name string) {
	if !slices.Contains(t.columns, name) {
		t.columns = append(t.columns, name)
	}
}

// WorkDir returns the root directory stages write their outputs under.
func (t *Table) WorkDir() string {
	return t.workDir
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Rows returns a copy of the rows in table order.
func (t *Table) Rows() []Row {
	out := make([]Row, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.clone()
	}

	return out
}

// Get returns a copy of the row with the given description.
func (t *Table) Get(description string) (Row, error) {
	i, ok := t.index[description]
	if !ok {
		return Row{}, fmt.Errorf("%w: %s", ErrUnknownPose, description)
	}

	return t.rows[i].clone(), nil
}

// Descriptions returns the description of every row in table order.
func (t *Table) Descriptions() []string {
	out := make([]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.Description
	}

	return out
}

// Poses returns the current structure path of every row in table order.
func (t *Table) Poses() []string {
	out := make([]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.Pose
	}

	return out
}

// Columns returns the full schema: the mandatory columns followed by the
// stage columns in order of first appearance.
func (t *Table) Columns() []string {
	return append([]string{DescriptionColumn, PoseColumn, InputPoseColumn}, t.columns...)
}

// HasColumn reports whether name is part of the schema.
func (t *Table) HasColumn(name string) bool {
	return isMandatory(name) || slices.Contains(t.columns, name)
}

// ColumnsWithPrefix returns the stage columns named <prefix>_*.
func (t *Table) ColumnsWithPrefix(prefix string) []string {
	var out []string

	for _, c := range t.columns {
		if strings.HasPrefix(c, prefix+"_") {
			out = append(out, c)
		}
	}

	return out
}

// Column returns the values of one column in table order. Rows without the
// column yield nil.
func (t *Table) Column(name string) ([]any, error) {
	if !t.HasColumn(name) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
	}

	out := make([]any, len(t.rows))
	for i, r := range t.rows {
		out[i], _ = r.Value(name)
	}

	return out, nil
}

// Sorted returns a copy of the table ordered by description.
func (t *Table) Sorted() *Table {
	rows := t.Rows()
	slices.SortFunc(rows, func(a, b Row) int {
		return strings.Compare(a.Description, b.Description)
	})

	return t.withRows(rows)
}

// withRows returns a table sharing t's schema and work dir. rows must have unique descriptions.
func (t *Table) withRows(rows []Row) *Table {
	out := &Table{
		workDir: t.workDir,
		rows:    rows,
		columns: slices.Clone(t.columns),
		index:   make(map[string]int, len(rows)),
	}

	for i, r := range rows {
		out.index[r.Description] = i
	}

	return out
}

// ChangePosesDir points every pose at a file of the same name in dir. Without
// copy the files must already exist there. With copy they are copied, skipping
// files already present unless overwrite is set.
func (t *Table) ChangePosesDir(dir string, copyFiles, overwrite bool) (*Table, error) {
	fs := FsFactory()
	rows := t.Rows()

	if copyFiles {
		if err := fs.MkdirAll(dir, dirPerm); err != nil {
			return nil, errors.Join(ErrPosesDir, err)
		}
	} else if ok, err := afero.DirExists(fs, dir); err != nil || !ok {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrPosesDir, dir)
	}

	for i := range rows {
		dst := filepath.Join(dir, filepath.Base(rows[i].Pose))

		exists, err := afero.Exists(fs, dst)
		if err != nil {
			return nil, errors.Join(ErrPosesDir, err)
		}

		switch {
		case !copyFiles && !exists:
			return nil, fmt.Errorf("%w: %s does not exist, set copy to place it there", ErrPosesDir, dst)
		case copyFiles && (overwrite || !exists):
			if err := copyFile(fs, rows[i].Pose, dst); err != nil {
				return nil, errors.Join(ErrPosesDir, err)
			}
		}

		rows[i].Pose = dst
	}

	return t.withRows(rows), nil
}

func copyFile(fs afero.Fs, src, dst string) error {
	b, err := afero.ReadFile(fs, src)
	if err != nil {
		return err
	}

	return afero.WriteFile(fs, dst, b, filePerm)
}
