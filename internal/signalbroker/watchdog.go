// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package signalbroker

import (
	"context"
	"os"

	"github.com/matt-FFFFFF/protpipe/internal/ctxlog"
)

// Watch reads sigCh until ctx is done. It calls cancel on the second signal of a given type.
func Watch(ctx context.Context, sigCh <-chan os.Signal, cancel context.CancelFunc) {
	seen := make(map[os.Signal]struct{})

	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-sigCh:
			if !ok {
				return
			}

			if _, dup := seen[sig]; dup {
				ctxlog.Error(ctx, "watchdog", "detail", "second signal received, cancelling running stage", "signal", sig.String())
				cancel()

				return
			}

			ctxlog.Warn(ctx, "watchdog", "detail", "signal received, send again to cancel the running stage", "signal", sig.String())

			seen[sig] = struct{}{}
		}
	}
}
