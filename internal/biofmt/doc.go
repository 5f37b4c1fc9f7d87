// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package biofmt reads and writes the small subset of FASTA and PDB
// needed to bookkeep tool outputs: sequence records with their headers,
// and per-residue CA B-factors of structure files.
package biofmt
