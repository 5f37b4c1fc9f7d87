// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package ctxlog carries a *slog.Logger through a context.Context.
//
// The default logger writes human-readable lines to stdout through PrettyHandler.
// Its level is read from PROTPIPE_LOG_LEVEL and may be changed at runtime through LevelVar.
package ctxlog
