// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package poses

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
)

// Suffixes of the provenance columns every merge writes as <prefix>_<suffix>.
const (
	InputDescriptionSuffix = "input_description"
	InputLocationSuffix    = "input_location"
	DescriptionSuffix      = "description"
	LocationSuffix         = "location"
)

var (
	// ErrConsistency is matched by every *ConsistencyError.
	ErrConsistency = errors.New("pose table consistency violated")
	// ErrEmptyPrefix is returned when a stage output has no column prefix.
	ErrEmptyPrefix = errors.New("stage prefix must not be empty")
	// ErrUnsupportedValue is returned for column values without a JSON representation.
	ErrUnsupportedValue = errors.New("unsupported column value")
)

// Mode tells Merge how records relate to existing rows.
type Mode int

const (
	// OneToOne replaces each referenced row by exactly one record.
	OneToOne Mode = iota
	// OneToMany creates one row per record, cloned from the referenced parent.
	OneToMany
)

func (m Mode) String() string {
	switch m {
	case OneToOne:
		return "one-to-one"
	case OneToMany:
		return "one-to-many"
	}

	return fmt.Sprintf("Mode(%d)", int(m))
}

// Record is one parsed tool output.
type Record struct {
	Description string         `json:"description"` // new, unique description
	Location    string         `json:"location"`    // new structure path
	Source      string         `json:"source"`      // description of the row that produced this record
	Columns     map[string]any `json:"columns"`     // stage columns, without prefix
}

// StageOutput is everything one stage hands back to the table.
type StageOutput struct {
	Prefix   string
	Mode     Mode
	Additive bool // one-to-many only: keep the parents
	Records  []Record
}

// ConsistencyError reports a record the table cannot attribute or accept.
type ConsistencyError struct {
	Prefix      string
	Description string // description of the offending record
	Source      string // its back-reference
	Reason      string
}

// Error implements error.
func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s: stage %q record %q (from %q): %s", ErrConsistency, e.Prefix, e.Description, e.Source, e.Reason)
}

// Is lets errors.Is(err, ErrConsistency) match.
func (e *ConsistencyError) Is(target error) bool {
	return target == ErrConsistency
}

// Merge returns a new table with out applied. The receiver is never modified.
//
// Each record is attributed to the row whose description equals its Source.
// The new row keeps every column of its parent, takes the record's description
// and location, and gains <prefix>_input_description, <prefix>_input_location,
// <prefix>_description, <prefix>_location and one <prefix>_<name> column per
// record column. Existing columns of the same name are overwritten on the new
// rows only. Rows are ordered as the records; with Additive the existing rows
// come first. Rows not referenced by any record are not carried over unless
// Additive is set.
func (t *Table) Merge(out StageOutput) (*Table, error) {
	if out.Prefix == "" {
		return nil, ErrEmptyPrefix
	}

	if out.Additive && out.Mode != OneToMany {
		return nil, fmt.Errorf("%w: additive merge requires %s mode", ErrConsistency, OneToMany)
	}

	res := &Table{
		workDir: t.workDir,
		columns: slices.Clone(t.columns),
		index:   make(map[string]int, len(out.Records)),
	}

	if out.Additive {
		for _, r := range t.rows {
			_ = res.append(r.clone())
		}
	}

	newCols := []string{
		out.Prefix + "_" + InputDescriptionSuffix,
		out.Prefix + "_" + InputLocationSuffix,
		out.Prefix + "_" + DescriptionSuffix,
		out.Prefix + "_" + LocationSuffix,
	}
	consumed := make(map[string]string, len(out.Records))

	for _, rec := range out.Records {
		fail := func(reason string, args ...any) error {
			return &ConsistencyError{
				Prefix:      out.Prefix,
				Description: rec.Description,
				Source:      rec.Source,
				Reason:      fmt.Sprintf(reason, args...),
			}
		}

		if rec.Description == "" {
			return nil, fail("empty description")
		}

		pi, ok := t.index[rec.Source]
		if !ok {
			return nil, fail("back-reference matches no pose")
		}

		if prev, dup := consumed[rec.Source]; dup && out.Mode == OneToOne {
			return nil, fail("pose already merged as %q in %s mode", prev, out.Mode)
		}

		consumed[rec.Source] = rec.Description

		parent := t.rows[pi]
		child := parent.clone()
		child.Description = rec.Description
		child.Pose = rec.Location
		child.Columns[newCols[0]] = parent.Description
		child.Columns[newCols[1]] = parent.Pose
		child.Columns[newCols[2]] = rec.Description
		child.Columns[newCols[3]] = rec.Location

		for _, k := range slices.Sorted(maps.Keys(rec.Columns)) {
			v, err := normalize(rec.Columns[k])
			if err != nil {
				return nil, fail("column %s: %v", k, err)
			}

			name := out.Prefix + "_" + k
			if v == nil {
				delete(child.Columns, name)
				continue
			}

			child.Columns[name] = v
			newCols = append(newCols, name)
		}

		if err := res.append(child); err != nil {
			return nil, fail("description is not unique")
		}
	}

	for _, c := range newCols {
		res.addColumn(c)
	}

	return res, nil
}

// normalize converts v to the value encoding/json would decode it to.
func normalize(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, bool:
		return x, nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedValue, x)
		}

		return x, nil
	case int:
		return float64(x), nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Join(ErrUnsupportedValue, err)
	}

	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, errors.Join(ErrUnsupportedValue, err)
	}

	return out, nil
}
