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
	"iter"
)

// Tool is the contract a TurnExecutor invokes for every tool_call in a
// model response (spec.md §6). Implementations never panic; any failure
// is reported through the returned error and surfaced as the content
// ("error: ...") of the call's tool_response row, never propagated as an
// exception that aborts the turn.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON-Schema "properties" object describing
	// this tool's arguments, for inclusion in the model request.
	Parameters() map[string]any
	// Invoke executes the tool with the given arguments and returns a
	// JSON-serialisable result.
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// ModelRuntime is the contract a TurnExecutor calls into for inference
// (spec.md §6). A single streaming method serves both modes: non-streaming
// callers drain the sequence to its last item.
type ModelRuntime interface {
	Name() string
	Generate(ctx context.Context, req *GenerateRequest) iter.Seq2[*GenerateResponse, error]
}

// GenerateRequest is the ModelRuntime input.
type GenerateRequest struct {
	Messages          []*Message
	Tools             []ToolRef
	SystemInstruction string
	OutputType        OutputType
	Temperature       *float64
	MaxTokens         *int
}

// GenerateResponse is one item of a ModelRuntime streaming response.
type GenerateResponse struct {
	TextDelta    string
	ToolCalls    []ToolCallRef
	Partial      bool
	FinishReason string
	Usage        Usage
}

// Usage reports token accounting for a single model call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// SchemaRow is the persisted form of a compiled AgentSchema: a named,
// kinded document with its flat JSON-Schema-shaped payload (spec.md §6).
type SchemaRow struct {
	Name       string
	Kind       string
	JSONSchema map[string]any
}

// Store is the persistence gateway contract (spec.md §6): the minimal
// set of operations AgentRegistry, TurnExecutor, and BackgroundSummariser
// need, independent of the backing SQL engine.
type Store interface {
	FetchSchema(ctx context.Context, name, kind string) (*SchemaRow, error)
	UpsertSchema(ctx context.Context, row SchemaRow) (*SchemaRow, error)

	FetchSession(ctx context.Context, id string) (*SessionRow, error)
	UpsertSession(ctx context.Context, row SessionRow) (*SessionRow, error)

	FetchMessages(ctx context.Context, sessionID string, limit int) ([]MessageRow, error)
	PersistTurn(ctx context.Context, sessionID string, rows []MessageRow) error

	MergeMetadata(ctx context.Context, entity Entity, patch map[string]any) (map[string]any, error)

	SaveMoment(ctx context.Context, m Moment) (*Moment, error)
	FetchMoments(ctx context.Context, userID string, limit int) ([]Moment, error)
	SearchMoments(ctx context.Context, userID, query string, limit int) ([]Moment, error)
}
