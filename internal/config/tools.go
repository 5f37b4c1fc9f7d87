// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/matt-FFFFFF/protpipe/internal/runner"
	"github.com/spf13/afero"
)

// EnvPrefix starts every environment variable read by protpipe.
const EnvPrefix = "PROTPIPE_"

var (
	// ErrToolsFile is returned when the tools file cannot be read or parsed.
	ErrToolsFile = errors.New("invalid tools file")
	// ErrDotEnv is returned when a .env file cannot be read or parsed.
	ErrDotEnv = errors.New("invalid .env file")
)

// Tools maps tool names to the paths needed to run them.
type Tools map[string]runner.ToolPaths

// LoadTools reads a YAML tools file. An empty path returns empty Tools.
func LoadTools(path string) (Tools, error) {
	tools := make(Tools)
	if path == "" {
		return tools, nil
	}

	b, err := afero.ReadFile(FsFactory(), path)
	if err != nil {
		return nil, errors.Join(ErrToolsFile, err)
	}

	if err := yaml.UnmarshalWithOptions(b, &tools, yaml.DisallowUnknownField()); err != nil {
		return nil, errors.Join(ErrToolsFile, fmt.Errorf("%s: %w", path, err))
	}

	return tools, nil
}

// Paths returns the paths of a tool, with PROTPIPE_<TOOL>_PYTHON and
// PROTPIPE_<TOOL>_SCRIPT taking precedence over the file.
func (t Tools) Paths(tool string) runner.ToolPaths {
	p := t[tool]
	key := EnvPrefix + strings.ToUpper(tool)

	if v, ok := os.LookupEnv(key + "_PYTHON"); ok && v != "" {
		p.Python = v
	}

	if v, ok := os.LookupEnv(key + "_SCRIPT"); ok && v != "" {
		p.Script = v
	}

	return p
}

// LoadDotEnv sets the variables of a .env file that are not set already.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	b, err := afero.ReadFile(FsFactory(), path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err != nil {
		return errors.Join(ErrDotEnv, err)
	}

	vars, err := godotenv.Parse(bytes.NewReader(b))
	if err != nil {
		return errors.Join(ErrDotEnv, fmt.Errorf("%s: %w", path, err))
	}

	for k, v := range vars {
		if _, ok := os.LookupEnv(k); ok {
			continue
		}

		if err := os.Setenv(k, v); err != nil {
			return errors.Join(ErrDotEnv, err)
		}
	}

	return nil
}
