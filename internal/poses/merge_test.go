// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package poses

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTable(t *testing.T) *Table {
	t.Helper()

	tbl, err := New("/work", []Row{{
		Description: "seed",
		Pose:        "/in/seed.pdb",
		InputPose:   "/in/seed.pdb",
		Columns:     map[string]any{"origin": "lab"},
	}})
	require.NoError(t, err)

	return tbl
}

func replicates(parent string, n int) []Record {
	recs := make([]Record, n)
	for i := range recs {
		desc := fmt.Sprintf("%s_%04d", parent, i+1)
		recs[i] = Record{
			Description: desc,
			Location:    "/work/rfd/" + desc + ".pdb",
			Source:      parent,
			Columns:     map[string]any{"num_residues": 120 + i},
		}
	}

	return recs
}

func TestMerge_OneToManyReplicates(t *testing.T) {
	tbl := seedTable(t)

	out, err := tbl.Merge(StageOutput{Prefix: "rfd", Mode: OneToMany, Records: replicates("seed", 3)})
	require.NoError(t, err)

	assert.Equal(t, []string{"seed_0001", "seed_0002", "seed_0003"}, out.Descriptions())

	_, err = out.Get("seed")
	require.ErrorIs(t, err, ErrUnknownPose)

	for i, r := range out.Rows() {
		assert.Equal(t, "seed", r.Columns["rfd_input_description"])
		assert.Equal(t, "/in/seed.pdb", r.Columns["rfd_input_location"])
		assert.Equal(t, r.Description, r.Columns["rfd_description"])
		assert.Equal(t, r.Pose, r.Columns["rfd_location"])
		assert.Equal(t, float64(120+i), r.Columns["rfd_num_residues"])
		assert.Equal(t, "lab", r.Columns["origin"])
		assert.Equal(t, "/in/seed.pdb", r.InputPose)

		_, err := tbl.Get(r.Columns["rfd_input_description"].(string))
		require.NoError(t, err, "back-reference must reach the pre-merge row")
	}

	assert.Equal(t, []string{
		DescriptionColumn, PoseColumn, InputPoseColumn, "origin",
		"rfd_input_description", "rfd_input_location", "rfd_description", "rfd_location", "rfd_num_residues",
	}, out.Columns())

	assert.Equal(t, []string{"seed"}, tbl.Descriptions(), "receiver must not change")
}

func TestMerge_GhostBackReference(t *testing.T) {
	tbl := seedTable(t)
	before := tbl.Rows()
	beforeCols := tbl.Columns()

	recs := append(replicates("seed", 2), Record{Description: "ghost_0001", Location: "/x.pdb", Source: "ghost"})

	out, err := tbl.Merge(StageOutput{Prefix: "rfd", Mode: OneToMany, Records: recs})
	require.ErrorIs(t, err, ErrConsistency)
	assert.Nil(t, out)

	var ce *ConsistencyError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "ghost", ce.Source)
	assert.Equal(t, "ghost_0001", ce.Description)
	assert.Contains(t, err.Error(), "back-reference")

	assert.Equal(t, before, tbl.Rows())
	assert.Equal(t, beforeCols, tbl.Columns())
}

func TestMerge_OneToOneIsLossless(t *testing.T) {
	tbl, err := New("/work", []Row{
		{Description: "a_0001", Pose: "/w/a_0001.fa", Columns: map[string]any{"mpnn_seq_rec": 0.5, "plddt": 10}},
		{Description: "b_0001", Pose: "/w/b_0001.fa", Columns: map[string]any{"mpnn_seq_rec": 0.7}},
	})
	require.NoError(t, err)

	out, err := tbl.Merge(StageOutput{
		Prefix: "esm",
		Mode:   OneToOne,
		Records: []Record{
			{Description: "b_0001", Location: "/w/esm/b_0001.pdb", Source: "b_0001", Columns: map[string]any{"plddt": 81.5}},
			{Description: "a_0001", Location: "/w/esm/a_0001.pdb", Source: "a_0001", Columns: map[string]any{"plddt": 77.0}},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"b_0001", "a_0001"}, out.Descriptions(), "order follows records")

	a, err := out.Get("a_0001")
	require.NoError(t, err)
	assert.Equal(t, 0.5, a.Columns["mpnn_seq_rec"])
	assert.Equal(t, float64(10), a.Columns["plddt"])
	assert.Equal(t, 77.0, a.Columns["esm_plddt"])
	assert.Equal(t, "/w/esm/a_0001.pdb", a.Pose)
	assert.Equal(t, "/w/a_0001.fa", a.Columns["esm_input_location"])

	for _, r := range tbl.Rows() {
		o, err := out.Get(r.Description)
		require.NoError(t, err)

		for k, v := range r.Columns {
			assert.Equal(t, v, o.Columns[k], "column %s of %s", k, r.Description)
		}
	}
}

func TestMerge_OneToOneRename(t *testing.T) {
	tbl := seedTable(t)

	out, err := tbl.Merge(StageOutput{Prefix: "relax", Records: []Record{
		{Description: "seed_relaxed", Location: "/w/seed_relaxed.pdb", Source: "seed"},
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"seed_relaxed"}, out.Descriptions())

	row, err := out.Get("seed_relaxed")
	require.NoError(t, err)
	assert.Equal(t, "seed", row.Columns["relax_input_description"])
}

func TestMerge_ScopedOverwrite(t *testing.T) {
	tbl, err := New("/work", []Row{
		{Description: "A", Pose: "/A.pdb", Columns: map[string]any{"esm_plddt": 1}},
		{Description: "B", Pose: "/B.pdb", Columns: map[string]any{"esm_plddt": 2}},
	})
	require.NoError(t, err)

	out, err := tbl.Merge(StageOutput{
		Prefix:   "esm",
		Mode:     OneToMany,
		Additive: true,
		Records:  []Record{{Description: "A_0001", Location: "/A_0001.pdb", Source: "A", Columns: map[string]any{"plddt": 9}}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "A_0001"}, out.Descriptions())

	col, err := out.Column("esm_plddt")
	require.NoError(t, err)
	assert.Equal(t, []any{float64(1), float64(2), float64(9)}, col)

	col, err = out.Column("esm_input_description")
	require.NoError(t, err)
	assert.Equal(t, []any{nil, nil, "A"}, col)
}

func TestMerge_Uniqueness(t *testing.T) {
	tbl, err := FromPaths("/w", []string{"a.pdb", "b.pdb"})
	require.NoError(t, err)

	cases := []struct {
		name string
		out  StageOutput
	}{
		{
			name: "duplicate new descriptions",
			out: StageOutput{Prefix: "p", Mode: OneToMany, Records: []Record{
				{Description: "x", Source: "a"},
				{Description: "x", Source: "b"},
			}},
		},
		{
			name: "collides with kept row",
			out: StageOutput{Prefix: "p", Mode: OneToMany, Additive: true, Records: []Record{
				{Description: "b", Source: "a"},
			}},
		},
		{
			name: "one-to-one source used twice",
			out: StageOutput{Prefix: "p", Mode: OneToOne, Records: []Record{
				{Description: "a1", Source: "a"},
				{Description: "a2", Source: "a"},
			}},
		},
		{
			name: "empty description",
			out:  StageOutput{Prefix: "p", Records: []Record{{Source: "a"}}},
		},
		{
			name: "additive one-to-one",
			out:  StageOutput{Prefix: "p", Mode: OneToOne, Additive: true},
		},
		{
			name: "non-finite value",
			out: StageOutput{Prefix: "p", Records: []Record{
				{Description: "a", Source: "a", Columns: map[string]any{"v": math.NaN()}},
			}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tbl.Merge(tc.out)
			require.ErrorIs(t, err, ErrConsistency)
		})
	}

	assert.Equal(t, []string{"a", "b"}, tbl.Descriptions())
}

func TestMerge_EmptyPrefix(t *testing.T) {
	_, err := seedTable(t).Merge(StageOutput{})
	require.ErrorIs(t, err, ErrEmptyPrefix)
}

func TestMerge_NormalizesValues(t *testing.T) {
	type pair struct {
		A int    `json:"a"`
		B string `json:"b"`
	}

	out, err := seedTable(t).Merge(StageOutput{Prefix: "s", Records: []Record{{
		Description: "seed",
		Location:    "/seed.pdb",
		Source:      "seed",
		Columns: map[string]any{
			"perres": []float64{0.5, 0.75},
			"pair":   pair{A: 1, B: "x"},
			"n":      int64(3),
			"drop":   nil,
		},
	}}})
	require.NoError(t, err)

	row, err := out.Get("seed")
	require.NoError(t, err)
	assert.Equal(t, []any{0.5, 0.75}, row.Columns["s_perres"])
	assert.Equal(t, map[string]any{"a": float64(1), "b": "x"}, row.Columns["s_pair"])
	assert.Equal(t, float64(3), row.Columns["s_n"])
	assert.NotContains(t, row.Columns, "s_drop")
}

func TestMerge_EmptyRecordsDropsRows(t *testing.T) {
	out, err := seedTable(t).Merge(StageOutput{Prefix: "esm"})
	require.NoError(t, err)
	assert.Zero(t, out.Len())
	assert.Contains(t, out.Columns(), "esm_input_description")
}
