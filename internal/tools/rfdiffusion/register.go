// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package rfdiffusion

import (
	"github.com/matt-FFFFFF/protpipe/internal/jobstarter"
	"github.com/matt-FFFFFF/protpipe/internal/runner"
)

// init registers the rfdiffusion tool.
func init() {
	runner.Register(Name, runner.Registration{
		Description: "Diffuses new backbones from each input pose; one row per generated backbone",
		Settings:    DefaultSettings(),
		New:         create,
	})
}

func create(paths runner.ToolPaths, settings []byte, def jobstarter.JobStarter) (runner.Runner, error) {
	s := DefaultSettings()
	if err := runner.DecodeSettings(Name, settings, &s); err != nil {
		return nil, err
	}

	return New(paths, s, def)
}
