// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runner

// Report describes the non-fatal outcome of a stage.
type Report struct {
	Tool     string
	Prefix   string
	Cached   bool     // scores of a previous run were reused
	Records  int      // records merged into the table
	Failed   []string // rows whose tasks failed
	Dropped  []string // rows whose output could not be parsed
	Warnings []string
}

// OK reports whether every row produced output.
func (r *Report) OK() bool {
	return len(r.Failed) == 0 && len(r.Dropped) == 0
}

func (r *Report) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}
