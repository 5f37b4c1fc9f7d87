// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package jobstarter runs a list of independent shell commands and waits for all of them.
//
// Two strategies implement JobStarter. Local runs commands as child processes on
// this machine with at most MaxCores running at once. Array writes a single
// cluster array-job script, submits it to a Scheduler (SLURM by default) and
// polls until every array task has reached a terminal state.
//
// Both strategies leave their scratch files (command lists, job scripts and
// per-task stdout/stderr logs) in the working directory for inspection.
package jobstarter
