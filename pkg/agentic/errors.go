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

import "fmt"

// Kind is the taxonomy of error kinds the core can raise. Kinds classify
// failures, they are not identifiers for a specific error instance.
type Kind string

const (
	KindInvalidSchema Kind = "invalid_schema"
	KindAgentNotFound Kind = "agent_not_found"
	KindToolNotFound  Kind = "tool_not_found"
	KindLimitExceeded Kind = "limit_exceeded"
	KindModelError    Kind = "model_error"
	KindToolError     Kind = "tool_error"
	KindSessionBusy   Kind = "session_busy"
	KindCancelled     Kind = "cancelled"
	KindStoreError    Kind = "store_error"
)

// Error is the core's structured error type, following the teacher's
// AgentRegistryError shape: component + action + message + optional cause.
type Error struct {
	Kind      Kind
	Component string
	Action    string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s:%s] %s: %v", e.Kind, e.Component, e.Action, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s:%s] %s", e.Kind, e.Component, e.Action, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether this error carries the given Kind, so callers can
// write `errors.Is(err, agentic.KindAgentNotFound)`-style comparisons via
// a sentinel wrapper (see IsKind below); Is itself participates in the
// standard errors.Is tree when compared against another *Error.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.Kind != "" && other.Kind == e.Kind
}

// NewError builds a structured Error.
func NewError(kind Kind, component, action, message string, err error) *Error {
	return &Error{Kind: kind, Component: component, Action: action, Message: message, Err: err}
}

// IsKind reports whether err (or something it wraps) is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == k {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
