// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package alltools

import (
	"testing"

	"github.com/matt-FFFFFF/protpipe/internal/runner"
	"github.com/stretchr/testify/assert"
)

func TestAllToolsRegistered(t *testing.T) {
	assert.Equal(t, []string{"esmfold", "ligandmpnn", "rfdiffusion"}, runner.DefaultRegistry.Names())
}
