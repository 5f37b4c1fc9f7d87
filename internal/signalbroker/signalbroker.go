// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package signalbroker turns operating system termination signals into context cancellation.
//
// The first SIGINT, SIGTERM or SIGQUIT is only logged. The second signal of the
// same type cancels the root context, which kills local worker processes and
// cancels submitted array jobs.
package signalbroker

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/matt-FFFFFF/protpipe/internal/ctxlog"
)

var termSignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGTERM,
	syscall.SIGQUIT,
	os.Interrupt,
}

// New registers a buffered channel for sigs, or for the termination signals when none are given.
func New(ctx context.Context, sigs ...os.Signal) chan os.Signal {
	ch := make(chan os.Signal, 1)

	if len(sigs) == 0 {
		sigs = termSignals
	}

	ctxlog.Debug(ctx, "signalbroker", "detail", "registering signal channel", "signals", sigs)
	signal.Notify(ch, sigs...)

	return ch
}

// Stop unregisters ch from signal delivery.
func Stop(ch chan os.Signal) {
	signal.Stop(ch)
}
