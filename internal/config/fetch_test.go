// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch(t *testing.T) {
	testCases := []struct {
		name     string
		url      string
		wantErr  bool
		wantName string
	}{
		{name: "empty url returns error", url: "", wantErr: true},
		{name: "remote source without file", url: "git::https://example.invalid/repo.git", wantErr: true},
		{name: "local file", url: "./testdata/pipeline.yaml", wantName: "pipeline.yaml"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b, name, err := Fetch(context.Background(), tc.url)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrFetch)
				assert.Nil(t, b)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.wantName, name)
			assert.Contains(t, string(b), "work_dir: /tmp/protpipe-test")
		})
	}
}

func TestLoad_YAMLAndHCLAgree(t *testing.T) {
	fromYAML, err := Load(context.Background(), "./testdata/pipeline.yaml")
	require.NoError(t, err)

	fromHCL, err := Load(context.Background(), "./testdata/pipeline.hcl")
	require.NoError(t, err)

	for _, p := range []*Pipeline{fromYAML, fromHCL} {
		require.NoError(t, p.Validate(registry))
		assert.Equal(t, []string{"/data/seed.pdb"}, p.Inputs.Paths)
		require.Len(t, p.Stages, 2)
		assert.Equal(t, "rfdiffusion", p.Stages[0].Tool)
		assert.Equal(t, "esm", p.Stages[1].Prefix)

		raw, err := p.Stages[0].RawSettings()
		require.NoError(t, err)
		assert.Contains(t, string(raw), "num_diffusions")
	}
}

func TestSplitFileNameFromGetterURL(t *testing.T) {
	testCases := []struct {
		url, wantURL, wantFile string
	}{
		{
			url:      "git::https://github.com/org/repo.git//pipelines/design.yaml?ref=v1.0.0",
			wantURL:  "git::https://github.com/org/repo.git//pipelines?ref=v1.0.0",
			wantFile: "design.yaml",
		},
		{
			url:      "git::https://github.com/org/repo.git//design.hcl",
			wantURL:  "git::https://github.com/org/repo.git",
			wantFile: "design.hcl",
		},
		{url: "git::https://github.com/org/repo.git"},
		{url: "https://example.com//dir/"},
	}

	for _, tc := range testCases {
		t.Run(tc.url, func(t *testing.T) {
			u, f := splitFileNameFromGetterURL(tc.url)
			assert.Equal(t, tc.wantURL, u)
			assert.Equal(t, tc.wantFile, f)
		})
	}
}
