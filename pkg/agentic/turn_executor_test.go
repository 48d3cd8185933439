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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedModel replays a fixed sequence of responses per call, grounded
// on the need for a deterministic ModelRuntime fake (spec.md §8 scenarios).
type scriptedModel struct {
	calls     int
	responses [][]*GenerateResponse
}

func (m *scriptedModel) Name() string { return "scripted" }

func (m *scriptedModel) Generate(_ context.Context, _ *GenerateRequest) iter.Seq2[*GenerateResponse, error] {
	idx := m.calls
	m.calls++
	return func(yield func(*GenerateResponse, error) bool) {
		if idx >= len(m.responses) {
			return
		}
		for _, r := range m.responses[idx] {
			if !yield(r, nil) {
				return
			}
		}
	}
}

type echoTool struct{ name string }

func (e echoTool) Name() string                  { return e.name }
func (e echoTool) Description() string           { return "echoes its arguments" }
func (e echoTool) Parameters() map[string]any    { return map[string]any{} }
func (e echoTool) Invoke(_ context.Context, args map[string]any) (any, error) {
	return args, nil
}

func TestTurnExecutor_NoToolCalls(t *testing.T) {
	model := &scriptedModel{responses: [][]*GenerateResponse{
		{{TextDelta: "hello there", FinishReason: "stop"}},
	}}
	schema, err := Build(Document{Name: "assistant"})
	require.NoError(t, err)

	executor := NewTurnExecutor(model, nil, UsageLimits{})
	rows, err := executor.RunCollect(context.Background(), TurnInput{
		Schema: schema, Session: &SessionRow{ID: "s1"}, UserText: "hi",
	})
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, MessageTypeUser, rows[0].MessageType)
	assert.Equal(t, MessageTypeAssistant, rows[1].MessageType)
	assert.Equal(t, "hello there", rows[1].Content)
}

func TestTurnExecutor_ExecutesToolCallThenLoops(t *testing.T) {
	model := &scriptedModel{responses: [][]*GenerateResponse{
		{{ToolCalls: []ToolCallRef{{ID: "c1", Name: "echo", Arguments: map[string]any{"x": 1}}}}},
		{{TextDelta: "final answer", FinishReason: "stop"}},
	}}
	schema, err := Build(Document{Name: "assistant", Tools: []ToolRef{{Name: "echo"}}})
	require.NoError(t, err)

	executor := NewTurnExecutor(model, map[string]Tool{"echo": echoTool{name: "echo"}}, UsageLimits{})
	rows, err := executor.RunCollect(context.Background(), TurnInput{
		Schema: schema, Session: &SessionRow{ID: "s1"}, UserText: "use the tool",
	})
	require.NoError(t, err)

	var types []MessageType
	for _, r := range rows {
		types = append(types, r.MessageType)
	}
	assert.Equal(t, []MessageType{
		MessageTypeUser, MessageTypeAssistant, MessageTypeToolCall,
		MessageTypeToolResponse, MessageTypeAssistant,
	}, types)
	assert.Equal(t, "final answer", rows[len(rows)-1].Content)
}

func TestTurnExecutor_ChainedToolEndsTurnWithoutAnotherModelCall(t *testing.T) {
	model := &scriptedModel{responses: [][]*GenerateResponse{
		{{ToolCalls: []ToolCallRef{{ID: "c1", Name: "save_moments"}}}},
	}}
	schema, err := Build(Document{
		Name:        "dreamer",
		Tools:       []ToolRef{{Name: "save_moments"}},
		ChainedTool: "save_moments",
	})
	require.NoError(t, err)

	executor := NewTurnExecutor(model, map[string]Tool{"save_moments": echoTool{name: "save_moments"}}, UsageLimits{})
	rows, err := executor.RunCollect(context.Background(), TurnInput{
		Schema: schema, Session: &SessionRow{ID: "s1"}, UserText: "dream",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, model.calls, "chained tool result ends the turn without a second model call")
	assert.Equal(t, MessageTypeToolResponse, rows[len(rows)-1].MessageType)
}

func TestTurnExecutor_ToolErrorIsRecordedNotRaised(t *testing.T) {
	model := &scriptedModel{responses: [][]*GenerateResponse{
		{{ToolCalls: []ToolCallRef{{ID: "c1", Name: "missing_tool"}}}},
		{{TextDelta: "handled the error", FinishReason: "stop"}},
	}}
	schema, err := Build(Document{Name: "assistant", Tools: []ToolRef{{Name: "missing_tool"}}})
	require.NoError(t, err)

	executor := NewTurnExecutor(model, map[string]Tool{}, UsageLimits{})
	rows, err := executor.RunCollect(context.Background(), TurnInput{
		Schema: schema, Session: &SessionRow{ID: "s1"}, UserText: "go",
	})
	require.NoError(t, err)
	found := false
	for _, r := range rows {
		if r.MessageType == MessageTypeToolResponse {
			found = true
			assert.Contains(t, r.Content, "error:")
		}
	}
	assert.True(t, found)
}

func TestTurnExecutor_RequestLimitExceeded(t *testing.T) {
	model := &scriptedModel{responses: [][]*GenerateResponse{
		{{ToolCalls: []ToolCallRef{{ID: "c1", Name: "echo"}}}},
		{{ToolCalls: []ToolCallRef{{ID: "c2", Name: "echo"}}}},
	}}
	schema, err := Build(Document{Name: "assistant", Tools: []ToolRef{{Name: "echo"}}})
	require.NoError(t, err)

	executor := NewTurnExecutor(model, map[string]Tool{"echo": echoTool{name: "echo"}}, UsageLimits{RequestLimit: 1})
	_, err = executor.RunCollect(context.Background(), TurnInput{
		Schema: schema, Session: &SessionRow{ID: "s1"}, UserText: "go",
	})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindLimitExceeded))
}
