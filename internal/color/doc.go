// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package color paints terminal output with ANSI codes. Output is plain when
// NO_COLOR is set or the destination is not a terminal, unless FORCE_COLOR is set.
package color
