// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package jobstarter

import (
	"os/exec"
	"strings"
)

const (
	binSh         = "/bin/sh"
	commandSwitch = "-c"
)

// Shell returns the shell used to run commands: /bin/sh, or sh from PATH when it is missing.
var Shell = func() string {
	if p, err := exec.LookPath(binSh); err == nil {
		return p
	}

	return "sh"
}

// Quote single-quotes s for a POSIX shell.
func Quote(s string) string {
	if s != "" && strings.IndexFunc(s, needsQuote) < 0 {
		return s
	}

	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func needsQuote(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	case strings.ContainsRune("-_./:=,+@%", r):
		return false
	}

	return true
}
