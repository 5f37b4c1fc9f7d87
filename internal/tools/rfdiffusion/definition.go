// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package rfdiffusion

// Settings are the RFdiffusion specific stage settings.
type Settings struct {
	// Number of backbones generated per input pose.
	NumDiffusions int `yaml:"num_diffusions,omitempty" docdesc:"Number of backbones generated per input pose, defaults to 1"` //nolint:lll
}

// DefaultSettings returns the settings used for keys that are not given.
func DefaultSettings() Settings {
	return Settings{NumDiffusions: 1}
}
