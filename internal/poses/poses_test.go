// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package poses

import (
	"testing"

	"github.com/prashantv/gostub"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memFs stubs FsFactory with a fresh in-memory filesystem for the test.
func memFs(t *testing.T) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	stubs := gostub.Stub(&FsFactory, func() afero.Fs { return fs })
	t.Cleanup(stubs.Reset)

	return fs
}

func TestFromPaths(t *testing.T) {
	tbl, err := FromPaths("/work", []string{"/in/alpha.pdb", "/in/beta.model.pdb", "/in/gamma"})
	require.NoError(t, err)

	assert.Equal(t, []string{"alpha", "beta", "gamma"}, tbl.Descriptions())
	assert.Equal(t, []string{"/in/alpha.pdb", "/in/beta.model.pdb", "/in/gamma"}, tbl.Poses())
	assert.Equal(t, []string{DescriptionColumn, PoseColumn, InputPoseColumn}, tbl.Columns())
	assert.Equal(t, "/work", tbl.WorkDir())

	row, err := tbl.Get("beta")
	require.NoError(t, err)
	assert.Equal(t, "/in/beta.model.pdb", row.InputPose)
}

func TestFromPaths_Duplicate(t *testing.T) {
	_, err := FromPaths("/work", []string{"/a/x.pdb", "/b/x.pdb"})
	require.ErrorIs(t, err, ErrDuplicateDescription)
}

func TestNew(t *testing.T) {
	tbl, err := New("/w", []Row{
		{Description: "a", Pose: "a.pdb", Columns: map[string]any{"z": 1, "b": "x", "gone": nil}},
		{Description: "b", Pose: "b.pdb", Columns: map[string]any{"c": []int{1, 2}}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{DescriptionColumn, PoseColumn, InputPoseColumn, "b", "z", "c"}, tbl.Columns())

	row, err := tbl.Get("a")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"z": float64(1), "b": "x"}, row.Columns)

	col, err := tbl.Column("c")
	require.NoError(t, err)
	assert.Equal(t, []any{nil, []any{float64(1), float64(2)}}, col)
}

func TestNew_Invalid(t *testing.T) {
	_, err := New("/w", []Row{{Pose: "a.pdb"}})
	require.ErrorIs(t, err, ErrEmptyDescription)

	_, err = New("/w", []Row{{Description: "a", Columns: map[string]any{PoseColumn: "x"}}})
	require.ErrorIs(t, err, ErrReservedColumn)

	_, err = New("/w", []Row{{Description: "a", Columns: map[string]any{"f": func() {}}}})
	require.ErrorIs(t, err, ErrUnsupportedValue)
}

func TestRowsAreCopies(t *testing.T) {
	tbl, err := New("/w", []Row{{Description: "a", Columns: map[string]any{"k": "v"}}})
	require.NoError(t, err)

	rows := tbl.Rows()
	rows[0].Columns["k"] = "changed"
	rows[0].Description = "b"

	row, err := tbl.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "v", row.Columns["k"])
}

func TestColumn_Unknown(t *testing.T) {
	tbl, err := FromPaths("/w", []string{"a.pdb"})
	require.NoError(t, err)

	_, err = tbl.Column("nope")
	require.ErrorIs(t, err, ErrUnknownColumn)

	_, err = tbl.Get("nope")
	require.ErrorIs(t, err, ErrUnknownPose)

	poses, err := tbl.Column(PoseColumn)
	require.NoError(t, err)
	assert.Equal(t, []any{"a.pdb"}, poses)
}

func TestSorted(t *testing.T) {
	tbl, err := FromPaths("/w", []string{"c.pdb", "a.pdb", "b.pdb"})
	require.NoError(t, err)

	sorted := tbl.Sorted()
	assert.Equal(t, []string{"a", "b", "c"}, sorted.Descriptions())
	assert.Equal(t, []string{"c", "a", "b"}, tbl.Descriptions())

	row, err := sorted.Get("c")
	require.NoError(t, err)
	assert.Equal(t, "c.pdb", row.Pose)
}

func TestColumnsWithPrefix(t *testing.T) {
	tbl, err := New("/w", []Row{{Description: "a", Columns: map[string]any{"esm_plddt": 1, "esmx": 2, "rfd_plddt": 3}}})
	require.NoError(t, err)

	assert.Equal(t, []string{"esm_plddt"}, tbl.ColumnsWithPrefix("esm"))
	assert.Empty(t, tbl.ColumnsWithPrefix("mpnn"))
}

func TestChangePosesDir(t *testing.T) {
	fs := memFs(t)
	require.NoError(t, afero.WriteFile(fs, "/in/a.pdb", []byte("A"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/in/b.pdb", []byte("B"), 0o644))

	tbl, err := FromPaths("/w", []string{"/in/a.pdb", "/in/b.pdb"})
	require.NoError(t, err)

	_, err = tbl.ChangePosesDir("/out", false, false)
	require.ErrorIs(t, err, ErrPosesDir)

	require.NoError(t, afero.WriteFile(fs, "/out/a.pdb", []byte("stale"), 0o644))

	moved, err := tbl.ChangePosesDir("/out", true, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"/out/a.pdb", "/out/b.pdb"}, moved.Poses())
	assert.Equal(t, []string{"/in/a.pdb", "/in/b.pdb"}, tbl.Poses())

	b, err := afero.ReadFile(fs, "/out/a.pdb")
	require.NoError(t, err)
	assert.Equal(t, "stale", string(b))

	_, err = tbl.ChangePosesDir("/out", true, true)
	require.NoError(t, err)

	b, err = afero.ReadFile(fs, "/out/a.pdb")
	require.NoError(t, err)
	assert.Equal(t, "A", string(b))

	again, err := moved.ChangePosesDir("/out", false, false)
	require.NoError(t, err)
	assert.Equal(t, moved.Poses(), again.Poses())
}
