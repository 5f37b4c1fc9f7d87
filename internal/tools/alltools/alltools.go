// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package alltools imports all tool packages to ensure their registration.
package alltools

import (
	// Import all tool packages to trigger their init() functions.
	_ "github.com/matt-FFFFFF/protpipe/internal/tools/esmfold"
	_ "github.com/matt-FFFFFF/protpipe/internal/tools/ligandmpnn"
	_ "github.com/matt-FFFFFF/protpipe/internal/tools/rfdiffusion"
)
