// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package biofmt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrPDB is returned for structure files without usable CA atoms.
var ErrPDB = errors.New("malformed PDB")

// Structure summarises the CA atoms of the first model of a PDB file.
type Structure struct {
	// Residues holds one entry per residue, in file order.
	Residues []Residue
}

// Residue is identified by chain, number and insertion code.
type Residue struct {
	Chain   string
	Number  int
	Name    string
	BFactor float64 // B-factor of the CA atom
}

// NumResidues returns the residue count.
func (s Structure) NumResidues() int {
	return len(s.Residues)
}

// BFactors returns the CA B-factor of every residue.
func (s Structure) BFactors() []float64 {
	out := make([]float64, len(s.Residues))
	for i, r := range s.Residues {
		out[i] = r.BFactor
	}

	return out
}

// MeanBFactor returns the mean CA B-factor, 0 for an empty structure.
func (s Structure) MeanBFactor() float64 {
	if len(s.Residues) == 0 {
		return 0
	}

	var sum float64
	for _, r := range s.Residues {
		sum += r.BFactor
	}

	return sum / float64(len(s.Residues))
}

// ReadPDB reads ATOM records of the first model. Only CA atoms are kept;
// alternate locations other than blank or 'A' are skipped.
func ReadPDB(r io.Reader) (Structure, error) {
	var s Structure

	sc := bufio.NewScanner(r)
	lineNo := 0

	for sc.Scan() {
		lineNo++
		line := sc.Text()

		if strings.HasPrefix(line, "ENDMDL") {
			break
		}

		if !strings.HasPrefix(line, "ATOM  ") {
			continue
		}

		if len(line) < 66 {
			return Structure{}, fmt.Errorf("%w: line %d: ATOM record too short", ErrPDB, lineNo)
		}

		if strings.TrimSpace(line[12:16]) != "CA" {
			continue
		}

		if alt := line[16]; alt != ' ' && alt != 'A' {
			continue
		}

		num, err := strconv.Atoi(strings.TrimSpace(line[22:26]))
		if err != nil {
			return Structure{}, fmt.Errorf("%w: line %d: residue number %q", ErrPDB, lineNo, line[22:26])
		}

		b, err := strconv.ParseFloat(strings.TrimSpace(line[60:66]), 64)
		if err != nil {
			return Structure{}, fmt.Errorf("%w: line %d: B-factor %q", ErrPDB, lineNo, line[60:66])
		}

		s.Residues = append(s.Residues, Residue{
			Chain:   strings.TrimSpace(line[21:22]),
			Number:  num,
			Name:    strings.TrimSpace(line[17:20]),
			BFactor: b,
		})
	}

	if err := sc.Err(); err != nil {
		return Structure{}, errors.Join(ErrPDB, err)
	}

	if len(s.Residues) == 0 {
		return Structure{}, fmt.Errorf("%w: no CA atoms", ErrPDB)
	}

	return s, nil
}
