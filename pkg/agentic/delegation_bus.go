// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package agentic

import (
	"context"
	"errors"
)

// ChildEventKind enumerates the namespaced events a delegated child agent
// reports back to its parent (spec.md §4.7, grounded on original_source's
// ask_agent.py event-sink pattern: ContextVar-based sink carried per call).
type ChildEventKind string

const (
	ChildEventContent    ChildEventKind = "child_content"
	ChildEventToolStart  ChildEventKind = "child_tool_start"
	ChildEventToolResult ChildEventKind = "child_tool_result"
)

// ChildEvent is one event a delegated agent pushes onto its parent's bus.
type ChildEvent struct {
	Kind      ChildEventKind
	AgentName string
	Content   string
	ToolName  string
	ToolArgs  map[string]any
	ToolResult any
}

// ErrBusFull is returned by Push when the bounded queue has no room; Push
// never blocks.
var ErrBusFull = errors.New("agentic: delegation bus is full")

// DelegationBus is a bounded, task-local queue a delegated child agent's
// invocation uses to report events back to its parent, carried as a
// context.Context value rather than a global (spec.md §4.7, §5) — the Go
// analogue of the original's contextvars.ContextVar sink.
type DelegationBus struct {
	ch chan ChildEvent
}

// NewDelegationBus constructs a bus with the given bounded capacity.
func NewDelegationBus(capacity int) *DelegationBus {
	if capacity <= 0 {
		capacity = 64
	}
	return &DelegationBus{ch: make(chan ChildEvent, capacity)}
}

type delegationBusKey struct{}

// WithDelegationBus returns a context carrying bus, retrievable by a
// delegated child via DelegationBusFromContext.
func WithDelegationBus(ctx context.Context, bus *DelegationBus) context.Context {
	return context.WithValue(ctx, delegationBusKey{}, bus)
}

// DelegationBusFromContext retrieves the bus placed by WithDelegationBus,
// if any. A delegation tool with no bus in context runs standalone — its
// events are simply not forwarded to a parent stream.
func DelegationBusFromContext(ctx context.Context) (*DelegationBus, bool) {
	bus, ok := ctx.Value(delegationBusKey{}).(*DelegationBus)
	return bus, ok
}

// Push attempts a non-blocking send, returning ErrBusFull if the queue is
// at capacity — a stalled parent must never block a child's progress
// (spec.md §5).
func (b *DelegationBus) Push(event ChildEvent) error {
	select {
	case b.ch <- event:
		return nil
	default:
		return ErrBusFull
	}
}

// Events returns the receive-only channel a StreamMultiplexer fans in
// from.
func (b *DelegationBus) Events() <-chan ChildEvent {
	return b.ch
}

// Close signals no further events will be pushed.
func (b *DelegationBus) Close() {
	close(b.ch)
}
