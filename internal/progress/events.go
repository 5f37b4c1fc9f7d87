// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"time"
)

// EventType is the kind of a stage event.
type EventType int

const (
	// EventStarted is sent before a stage runs.
	EventStarted EventType = iota
	// EventCompleted is sent when a stage ran its tool and merged the results.
	EventCompleted
	// EventCached is sent when a stage was satisfied from its score cache.
	EventCached
	// EventFailed is sent when a stage returned an error.
	EventFailed
)

// String returns the lower case name of the event type.
func (t EventType) String() string {
	switch t {
	case EventStarted:
		return "started"
	case EventCompleted:
		return "completed"
	case EventCached:
		return "cached"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event describes a change in the state of one stage.
type Event struct {
	Stage     int    // 1-based stage position
	Stages    int    // number of stages in the pipeline
	Prefix    string // column prefix of the stage
	Tool      string
	Type      EventType
	Poses     int   // poses in the table after the stage
	Failed    int   // poses whose tool invocation failed
	Dropped   int   // poses that produced no usable output
	Err       error // set for EventFailed
	Timestamp time.Time
}

// Reporter receives stage events. Implementations must be safe for concurrent use.
type Reporter interface {
	Report(event Event)
	Close()
}

// Listener handles events forwarded by a ChannelReporter.
type Listener interface {
	OnEvent(event Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Event)

// OnEvent implements Listener.
func (f ListenerFunc) OnEvent(event Event) {
	f(event)
}

// NullReporter discards every event.
type NullReporter struct{}

// Report implements Reporter.
func (NullReporter) Report(Event) {}

// Close implements Reporter.
func (NullReporter) Close() {}
