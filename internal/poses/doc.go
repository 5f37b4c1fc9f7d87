// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package poses holds the table of candidate structures threaded through a
// pipeline. Each row is one pose, identified by a unique description, with its
// current structure path, the path it entered the pipeline with and an open
// set of columns added by stages.
//
// Tables are values: Merge, ChangePosesDir and Sorted return a new *Table and
// leave the receiver untouched. Callers thread the result into the next stage.
package poses
