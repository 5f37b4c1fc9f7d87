// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package show

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/matt-FFFFFF/protpipe/internal/color"
	"github.com/matt-FFFFFF/protpipe/internal/poses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func table(t *testing.T) *poses.Table {
	t.Helper()

	tbl, err := poses.New("/work", []poses.Row{
		{
			Description: "b",
			Pose:        "/work/b.pdb",
			InputPose:   "/in/b.pdb",
			Columns:     map[string]any{"esm_plddt": 71.25, "esm_perres_plddt": []any{70.0, 72.5}},
		},
		{
			Description: "a",
			Pose:        "/work/a.pdb",
			InputPose:   "/in/a.pdb",
			Columns:     map[string]any{"esm_plddt": 88.5, "ok": true},
		},
	})
	require.NoError(t, err)

	return tbl
}

func TestWrite_Text(t *testing.T) {
	t.Setenv(color.ForceColor, "")

	var buf bytes.Buffer
	require.NoError(t, write(&buf, table(t), []string{"poses_description", "esm_plddt", "esm_perres_plddt", "ok"}, false))

	pad := func(n int) string { return strings.Repeat(" ", n) }
	want := "poses_description  esm_plddt  esm_perres_plddt  ok\n" +
		"b" + pad(18) + "71.25" + pad(6) + "[70,72.5]" + pad(9) + "\n" +
		"a" + pad(18) + "88.5" + pad(7) + pad(18) + "true\n"
	assert.Equal(t, want, buf.String())
}

func TestWrite_JSON(t *testing.T) {
	t.Setenv(color.ForceColor, "")

	var buf bytes.Buffer
	require.NoError(t, write(&buf, table(t).Sorted(), []string{"poses_description", "esm_plddt"}, true))

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	assert.Equal(t, []map[string]any{
		{"poses_description": "a", "esm_plddt": 88.5},
		{"poses_description": "b", "esm_plddt": 71.25},
	}, rows)
}

func TestWrite_AllColumns(t *testing.T) {
	t.Setenv(color.ForceColor, "")

	var buf bytes.Buffer
	require.NoError(t, write(&buf, table(t), nil, true))

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "/in/b.pdb", rows[0]["input_poses"])
	assert.Nil(t, rows[0]["ok"])
}

func TestWrite_UnknownColumn(t *testing.T) {
	err := write(&bytes.Buffer{}, table(t), []string{"nope"}, false)
	require.ErrorIs(t, err, poses.ErrUnknownColumn)
}
