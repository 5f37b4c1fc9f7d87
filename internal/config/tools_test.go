// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"testing"

	"github.com/matt-FFFFFF/protpipe/internal/runner"
	"github.com/prashantv/gostub"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memFs(t *testing.T) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	stubs := gostub.Stub(&FsFactory, func() afero.Fs { return fs })
	t.Cleanup(stubs.Reset)

	return fs
}

func TestLoadTools(t *testing.T) {
	fs := memFs(t)
	require.NoError(t, afero.WriteFile(fs, "/etc/tools.yaml", []byte(`
rfdiffusion:
  python: /envs/rfd/bin/python
  script: /opt/RFdiffusion/scripts/run_inference.py
esmfold:
  python: /envs/esm/bin/python
`), 0o644))

	tools, err := LoadTools("/etc/tools.yaml")
	require.NoError(t, err)

	assert.Equal(t, runner.ToolPaths{
		Python: "/envs/rfd/bin/python",
		Script: "/opt/RFdiffusion/scripts/run_inference.py",
	}, tools.Paths("rfdiffusion"))

	t.Setenv("PROTPIPE_ESMFOLD_SCRIPT", "/opt/esm/esmfold_inference.py")
	t.Setenv("PROTPIPE_RFDIFFUSION_PYTHON", "")

	assert.Equal(t, runner.ToolPaths{
		Python: "/envs/esm/bin/python",
		Script: "/opt/esm/esmfold_inference.py",
	}, tools.Paths("esmfold"))
	assert.Equal(t, "/envs/rfd/bin/python", tools.Paths("rfdiffusion").Python)
	assert.Error(t, tools.Paths("ligandmpnn").Validate("ligandmpnn"))
}

func TestLoadTools_Errors(t *testing.T) {
	fs := memFs(t)

	tools, err := LoadTools("")
	require.NoError(t, err)
	assert.Empty(t, tools)

	_, err = LoadTools("/missing.yaml")
	require.ErrorIs(t, err, ErrToolsFile)

	require.NoError(t, afero.WriteFile(fs, "/tools.yaml", []byte("esmfold:\n  interpreter: python\n"), 0o644))

	_, err = LoadTools("/tools.yaml")
	require.ErrorIs(t, err, ErrToolsFile)
}

func TestLoadDotEnv(t *testing.T) {
	fs := memFs(t)
	require.NoError(t, afero.WriteFile(fs, "/w/.env", []byte(`
# tool locations
PROTPIPE_TEST_SET=from-file
PROTPIPE_TEST_KEEP="from-file"
`), 0o644))

	// t.Setenv restores the variables after the test.
	t.Setenv("PROTPIPE_TEST_SET", "")
	require.NoError(t, os.Unsetenv("PROTPIPE_TEST_SET"))
	t.Setenv("PROTPIPE_TEST_KEEP", "from-env")

	require.NoError(t, LoadDotEnv("/w/.env"))
	assert.Equal(t, "from-file", os.Getenv("PROTPIPE_TEST_SET"))
	assert.Equal(t, "from-env", os.Getenv("PROTPIPE_TEST_KEEP"))

	require.NoError(t, LoadDotEnv("/w/missing.env"))

	require.NoError(t, afero.WriteFile(fs, "/w/bad.env", []byte("KEY='unterminated\n"), 0o644))
	require.ErrorIs(t, LoadDotEnv("/w/bad.env"), ErrDotEnv)
}
