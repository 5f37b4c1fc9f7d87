// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package esmfold

import (
	"github.com/matt-FFFFFF/protpipe/internal/jobstarter"
	"github.com/matt-FFFFFF/protpipe/internal/runner"
)

// init registers the esmfold tool.
func init() {
	runner.Register(Name, runner.Registration{
		Description: "Predicts the structure of each input sequence and scores it by pLDDT",
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
