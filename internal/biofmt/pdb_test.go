// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package biofmt

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func atomLine(serial int, name, alt, res, chain string, num int, b float64) string {
	return fmt.Sprintf("ATOM  %5d %-4s%1s%3s %1s%4d    %8.3f%8.3f%8.3f%6.2f%6.2f           C",
		serial, name, alt, res, chain, num, 1.0, 2.0, 3.0, 1.0, b)
}

func TestReadPDB(t *testing.T) {
	pdb := strings.Join([]string{
		"HEADER    DESIGN",
		"MODEL        1",
		atomLine(1, "N", "", "MET", "A", 1, 10),
		atomLine(2, "CA", "", "MET", "A", 1, 80),
		atomLine(3, "CA", "", "LYS", "A", 2, 90),
		atomLine(4, "CA", "B", "LYS", "A", 2, 10),
		atomLine(5, "CA", "", "VAL", "B", 3, 70),
		"HETATM    6  C1  LIG X   1       0.000   0.000   0.000  1.00  0.00           C",
		"ENDMDL",
		"MODEL        2",
		atomLine(7, "CA", "", "ALA", "A", 1, 0),
		"END",
	}, "\n")

	s, err := ReadPDB(strings.NewReader(pdb))
	require.NoError(t, err)

	assert.Equal(t, 3, s.NumResidues())
	assert.Equal(t, []float64{80, 90, 70}, s.BFactors())
	assert.InDelta(t, 80.0, s.MeanBFactor(), 1e-9)
	assert.Equal(t, Residue{Chain: "B", Number: 3, Name: "VAL", BFactor: 70}, s.Residues[2])
}

func TestReadPDB_NoCA(t *testing.T) {
	_, err := ReadPDB(strings.NewReader(atomLine(1, "N", "", "MET", "A", 1, 10) + "\n"))
	require.ErrorIs(t, err, ErrPDB)
}

func TestReadPDB_ShortRecord(t *testing.T) {
	_, err := ReadPDB(strings.NewReader("ATOM      1  CA  MET A   1\n"))
	require.ErrorIs(t, err, ErrPDB)
}

func TestMeanBFactor_Empty(t *testing.T) {
	assert.Zero(t, Structure{}.MeanBFactor())
}
