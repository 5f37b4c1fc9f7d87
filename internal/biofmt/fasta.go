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

var (
	// ErrFasta is returned for malformed FASTA input.
	ErrFasta = errors.New("malformed FASTA")
	// ErrHeaderField is returned when a header lacks a requested field.
	ErrHeaderField = errors.New("missing FASTA header field")
)

// FastaRecord is one sequence of a FASTA file.
type FastaRecord struct {
	Header   string // header line without the leading '>'
	Sequence string // sequence with line breaks removed
}

// Description returns the first comma- or whitespace-delimited token of the header.
func (r FastaRecord) Description() string {
	h := strings.TrimSpace(r.Header)
	if i := strings.IndexAny(h, ", \t"); i >= 0 {
		return h[:i]
	}

	return h
}

// ReadFasta parses every record of r. Blank lines are ignored.
func ReadFasta(r io.Reader) ([]FastaRecord, error) {
	var (
		out []FastaRecord
		seq strings.Builder
		cur *FastaRecord
	)

	flush := func() {
		if cur != nil {
			cur.Sequence = seq.String()
			out = append(out, *cur)
		}

		seq.Reset()
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0

	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())

		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, ">"):
			flush()
			cur = &FastaRecord{Header: strings.TrimSpace(line[1:])}
		case cur == nil:
			return nil, fmt.Errorf("%w: line %d: sequence before first header", ErrFasta, lineNo)
		default:
			seq.WriteString(line)
		}
	}

	if err := sc.Err(); err != nil {
		return nil, errors.Join(ErrFasta, err)
	}

	flush()

	return out, nil
}

// WriteFasta writes records to w, one header and one sequence line each.
func WriteFasta(w io.Writer, records ...FastaRecord) error {
	bw := bufio.NewWriter(w)

	for _, r := range records {
		if _, err := fmt.Fprintf(bw, ">%s\n%s\n", r.Header, r.Sequence); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// HeaderFields parses the `key=value` pairs of a comma-separated header such as
// "seed_0001, id=2, T=0.1, seed=111, overall_confidence=0.41".
// Tokens without '=' are skipped.
func HeaderFields(header string) map[string]string {
	fields := make(map[string]string)

	for _, tok := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(tok), "=")
		if !ok {
			continue
		}

		fields[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	return fields
}

// FloatField returns fields[key] parsed as a float.
func FloatField(fields map[string]string, key string) (float64, error) {
	v, ok := fields[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrHeaderField, key)
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not a number", ErrHeaderField, key, v)
	}

	return f, nil
}
