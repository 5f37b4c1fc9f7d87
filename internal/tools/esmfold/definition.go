// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package esmfold

// Settings are the ESMFold specific stage settings.
type Settings struct {
	// Residues folded per trunk chunk; lowers memory use for long sequences.
	ChunkSize int `yaml:"chunk_size,omitempty" docdesc:"Axial attention chunk size, unset folds without chunking"` //nolint:lll
}

// DefaultSettings returns the settings used for keys that are not given.
func DefaultSettings() Settings {
	return Settings{}
}
