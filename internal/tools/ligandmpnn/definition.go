// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package ligandmpnn

// Settings are the LigandMPNN specific stage settings.
type Settings struct {
	// Number of sequences designed per input pose.
	NumSequences int `yaml:"nseq,omitempty" docdesc:"Number of sequences designed per input pose, defaults to 1"` //nolint:lll
	// Model weights to use.
	ModelType string `yaml:"model_type,omitempty" docdesc:"Model to run: ligand_mpnn, protein_mpnn, soluble_mpnn, global_label_membrane_mpnn or per_residue_label_membrane_mpnn"` //nolint:lll
	// Sampling temperature.
	Temperature float64 `yaml:"temperature,omitempty" docdesc:"Sampling temperature, defaults to 0.1"` //nolint:lll
	// Table column holding the residues to keep fixed for each pose.
	FixedResColumn string `yaml:"fixed_res_column,omitempty" docdesc:"Table column holding the residues kept fixed for each pose, e.g. \"A12 A13\""` //nolint:lll
}

// DefaultSettings returns the settings used for keys that are not given.
func DefaultSettings() Settings {
	return Settings{
		NumSequences: 1,
		ModelType:    "ligand_mpnn",
		Temperature:  0.1,
	}
}

var modelTypes = []string{
	"ligand_mpnn",
	"protein_mpnn",
	"soluble_mpnn",
	"global_label_membrane_mpnn",
	"per_residue_label_membrane_mpnn",
}
