// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package runner defines the contract every pipeline tool implements and the
// stage steps they share: prefix checks, work directories, batching,
// execution on a job starter, cached scores, parsing and the merge into the
// pose table.
//
// A tool supplies a Tool (how to build commands and read outputs) and gets a
// Runner by wrapping it in a Stage. Tools register a Factory under their name
// so pipelines can build them from configuration.
package runner
