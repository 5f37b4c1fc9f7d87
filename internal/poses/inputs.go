// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package poses

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/matt-FFFFFF/protpipe/internal/biofmt"
	"github.com/matt-FFFFFF/protpipe/internal/ctxlog"
	"github.com/spf13/afero"
)

// SplitFastaDir is the directory under the work dir multi-record FASTA inputs are split into.
const SplitFastaDir = "input_fastas_split"

var (
	// ErrInputNotFound is returned when an input path or glob matches nothing.
	ErrInputNotFound = errors.New("input structure not found")
	// ErrInputFasta is returned when a FASTA input cannot be read or split.
	ErrInputFasta = errors.New("cannot split FASTA input")
)

// Inputs selects the structures a table starts from: either explicit Paths,
// or the files in Dir matching Glob.
type Inputs struct {
	Paths []string `yaml:"paths" hcl:"paths,optional"`
	Dir   string   `yaml:"dir" hcl:"dir,optional"`
	Glob  string   `yaml:"glob" hcl:"glob,optional"`
}

// Parse resolves in to structure paths and builds a table rooted at workDir,
// which is created. FASTA inputs (.fa, .fasta) holding more than one record
// are split into one file per record under <workDir>/input_fastas_split.
func Parse(ctx context.Context, workDir string, in Inputs) (*Table, error) {
	fs := FsFactory()

	paths, err := resolveInputs(fs, in)
	if err != nil {
		return nil, err
	}

	if err := fs.MkdirAll(workDir, dirPerm); err != nil {
		return nil, fmt.Errorf("creating work dir %s: %w", workDir, err)
	}

	var expanded []string

	for _, p := range paths {
		if !isFasta(p) {
			expanded = append(expanded, p)
			continue
		}

		split, err := splitFasta(ctx, fs, p, filepath.Join(workDir, SplitFastaDir))
		if err != nil {
			return nil, err
		}

		expanded = append(expanded, split...)
	}

	ctxlog.Debug(ctx, "parsed input poses", "count", len(expanded), "workDir", workDir)

	return FromPaths(workDir, expanded)
}

func resolveInputs(fs afero.Fs, in Inputs) ([]string, error) {
	if in.Dir != "" {
		glob := in.Glob
		if glob == "" {
			glob = "*"
		}

		matches, err := afero.Glob(fs, filepath.Join(in.Dir, glob))
		if err != nil {
			return nil, fmt.Errorf("%w: glob %s: %v", ErrInputNotFound, glob, err)
		}

		if len(matches) == 0 {
			return nil, fmt.Errorf("%w: no %s files in %s", ErrInputNotFound, glob, in.Dir)
		}

		return append(matches, in.Paths...), nil
	}

	if len(in.Paths) == 0 {
		return nil, fmt.Errorf("%w: no inputs given", ErrInputNotFound)
	}

	for _, p := range in.Paths {
		ok, err := afero.Exists(fs, p)
		if err != nil || !ok {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, p)
		}
	}

	return in.Paths, nil
}

func isFasta(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".fa", ".fasta":
		return true
	}

	return false
}

// splitFasta returns path itself for single-record files, otherwise the paths
// of one .fa file per record in outDir. Existing files with identical content
// are not rewritten.
func splitFasta(ctx context.Context, fs afero.Fs, path, outDir string) ([]string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Join(ErrInputFasta, err)
	}
	defer f.Close() //nolint:errcheck

	recs, err := biofmt.ReadFasta(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInputFasta, path, err)
	}

	if len(recs) <= 1 {
		return []string{path}, nil
	}

	ctxlog.Warn(ctx, "multi-record FASTA input split into one pose per record", "path", path, "records", len(recs), "dir", outDir)

	if err := fs.MkdirAll(outDir, dirPerm); err != nil {
		return nil, errors.Join(ErrInputFasta, err)
	}

	out := make([]string, len(recs))

	for i, r := range recs {
		var buf bytes.Buffer
		if err := biofmt.WriteFasta(&buf, biofmt.FastaRecord{Header: r.Description(), Sequence: r.Sequence}); err != nil {
			return nil, errors.Join(ErrInputFasta, err)
		}

		dst := filepath.Join(outDir, r.Description()+".fa")
		out[i] = dst

		if existing, err := afero.ReadFile(fs, dst); err == nil && bytes.Equal(existing, buf.Bytes()) {
			continue
		}

		if err := afero.WriteFile(fs, dst, buf.Bytes(), filePerm); err != nil {
			return nil, errors.Join(ErrInputFasta, err)
		}
	}

	return out, nil
}
