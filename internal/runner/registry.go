// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runner

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/goccy/go-yaml"
	"github.com/matt-FFFFFF/protpipe/internal/jobstarter"
)

var (
	// ErrUnknownTool is returned when a tool name is not registered.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrToolSettings is returned when tool settings cannot be decoded.
	ErrToolSettings = errors.New("invalid tool settings")
)

// Factory builds a runner from the tool's paths, its settings as YAML and
// the default job starter.
type Factory func(paths ToolPaths, settings []byte, def jobstarter.JobStarter) (Runner, error)

// Registration describes a tool.
type Registration struct {
	Description string
	Settings    any // default settings, used for documentation
	New         Factory
}

// Registry maps tool names to their registrations.
type Registry map[string]Registration

// DefaultRegistry holds the tools registered by their packages' init functions.
var DefaultRegistry = make(Registry)

// Register adds a tool to DefaultRegistry.
func Register(name string, reg Registration) {
	DefaultRegistry[name] = reg
}

// Create builds the named tool.
func (r Registry) Create(name string, paths ToolPaths, settings []byte, def jobstarter.JobStarter) (Runner, error) {
	reg, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q, known tools: %v", ErrUnknownTool, name, r.Names())
	}

	return reg.New(paths, settings, def)
}

// Names returns the registered tool names in sorted order.
func (r Registry) Names() []string {
	return slices.Sorted(maps.Keys(r))
}

// DecodeSettings unmarshals YAML settings into v. Unknown keys are rejected;
// raw tool flags belong in the stage passthrough.
func DecodeSettings(tool string, settings []byte, v any) error {
	if len(bytes.TrimSpace(settings)) == 0 {
		return nil
	}

	if err := yaml.UnmarshalWithOptions(settings, v, yaml.DisallowUnknownField()); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrToolSettings, tool, err)
	}

	return nil
}
