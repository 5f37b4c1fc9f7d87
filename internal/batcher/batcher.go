// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package batcher groups per-pose work into a bounded number of shell invocations.
//
// Fewer, larger groups save process start-up and array-task overhead; more
// groups use more of the available parallelism. The caller picks the trade-off,
// usually the job starter's concurrency ceiling.
package batcher

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidBatchCount is returned when the requested number of batches is not positive.
var ErrInvalidBatchCount = errors.New("number of batches must be positive")

// Batch is one shell invocation made of an ordered list of commands.
type Batch struct {
	Commands []string
}

// Command renders the batch as a single shell command line.
// Commands are chained with && so the first failure fails the batch.
func (b Batch) Command() string {
	return strings.Join(b.Commands, " && ")
}

// Split partitions items into min(n, len(items)) groups whose sizes differ by at most one.
// Items keep their relative order within and across groups, so concatenating the
// groups reproduces items. Larger groups come first.
func Split[T any](items []T, n int) ([][]T, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBatchCount, n)
	}

	if len(items) == 0 {
		return nil, nil
	}

	n = min(n, len(items))
	size, rest := len(items)/n, len(items)%n
	groups := make([][]T, 0, n)
	start := 0

	for i := range n {
		end := start + size
		if i < rest {
			end++
		}

		groups = append(groups, items[start:end:end])
		start = end
	}

	return groups, nil
}

// Commands splits cmds into at most n batches.
func Commands(cmds []string, n int) ([]Batch, error) {
	groups, err := Split(cmds, n)
	if err != nil {
		return nil, err
	}

	batches := make([]Batch, len(groups))
	for i, g := range groups {
		batches[i] = Batch{Commands: g}
	}

	return batches, nil
}

// Lines returns the rendered command line of every batch, in order.
func Lines(batches []Batch) []string {
	out := make([]string, len(batches))
	for i, b := range batches {
		out[i] = b.Command()
	}

	return out
}
