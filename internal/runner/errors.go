// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runner

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is matched by every *ConfigurationError.
	ErrConfiguration = errors.New("configuration error")
	// ErrParse is matched by every *ParseError.
	ErrParse = errors.New("tool output parse error")
	// ErrStage is returned, joined with the cause, when a stage aborts.
	ErrStage = errors.New("stage failed")
)

// ConfigurationError reports a missing or invalid setting. It is never retried.
type ConfigurationError struct {
	Tool   string
	Field  string
	Reason string
}

// Error implements error.
func (e *ConfigurationError) Error() string {
	if e.Tool == "" {
		return fmt.Sprintf("%s: %s: %s", ErrConfiguration, e.Field, e.Reason)
	}

	return fmt.Sprintf("%s: %s %s: %s", ErrConfiguration, e.Tool, e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrConfiguration) match.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// ParseError reports tool output of one row that is missing or malformed.
type ParseError struct {
	Tool        string
	Description string // row the output belongs to
	Path        string // file that was read, if any
	Err         error
}

// Error implements error.
func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s %s: %v", ErrParse, e.Tool, e.Description, e.Err)
	}

	return fmt.Sprintf("%s: %s %s (%s): %v", ErrParse, e.Tool, e.Description, e.Path, e.Err)
}

// Is lets errors.Is(err, ErrParse) match.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}
