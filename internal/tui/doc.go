// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package tui shows the stages of a running pipeline in the terminal.
//
// The Runner executes the pipeline in the background and feeds its progress
// events to a bubbletea program, which quits once the pipeline returns.
// Pressing q or ctrl+c cancels the pipeline.
package tui
