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
	"fmt"
	"iter"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/google/uuid"
)

// TurnInput bundles what a TurnExecutor needs to run one turn.
type TurnInput struct {
	Schema    *AgentSchema
	Session   *SessionRow
	History   []*Message
	UserText  string
	ToolNotes map[string]string
}

// TurnExecutor runs the outer loop — preprocess, model call, postprocess,
// tool execution — until the model produces a final response or a usage
// limit is hit (spec.md §4.6). Grounded on the teacher's llmagent Flow:
// the same runOneStep shape, generalised from ADK Agent/Event to the
// flat Tool/ModelRuntime contracts of interfaces.go.
type TurnExecutor struct {
	Model     ModelRuntime
	Tools     map[string]Tool
	Limits    UsageLimits
}

// NewTurnExecutor constructs an executor over the provided tool catalog;
// each tool call is looked up in it by name when the call is made.
func NewTurnExecutor(model ModelRuntime, tools map[string]Tool, limits UsageLimits) *TurnExecutor {
	return &TurnExecutor{Model: model, Tools: tools, Limits: limits}
}

// Run executes one full turn, yielding StreamEvents as they occur (spec.md
// §4.6, §6). A successful turn ends with a StreamEventDone event whose Text
// is the model's finish reason, or "chained_tool" after a chained-tool
// call; a failed turn ends with a (nil, err) yield. Run does not deliver
// the turn's MessageRows; callers needing them use RunCollect instead.
func (te *TurnExecutor) Run(ctx context.Context, in TurnInput) iter.Seq2[*StreamEvent, error] {
	return func(yield func(*StreamEvent, error) bool) {
		_, err := te.runCollect(ctx, in, yield)
		if err != nil {
			yield(nil, err)
		}
	}
}

// RunCollect runs the turn to completion and returns its MessageRows, ready
// for Store.PersistTurn. The stream events are discarded, and nothing is
// persisted here.
func (te *TurnExecutor) RunCollect(ctx context.Context, in TurnInput) ([]MessageRow, error) {
	return te.runCollect(ctx, in, func(*StreamEvent, error) bool { return true })
}

func (te *TurnExecutor) runCollect(ctx context.Context, in TurnInput, yield func(*StreamEvent, error) bool) ([]MessageRow, error) {
	var rows []MessageRow
	messages := append([]*Message{}, in.History...)
	messages = append(messages, &Message{Role: a2a.MessageRoleUser, Parts: []a2a.Part{a2a.TextPart{Text: in.UserText}}})
	rows = append(rows, MessageRow{
		ID:          uuid.NewString(),
		SessionID:   in.Session.ID,
		MessageType: MessageTypeUser,
		Content:     in.UserText,
		AgentName:   in.Schema.Name,
		CreatedAt:   nowOrZero(),
	})

	systemInstruction := in.Schema.CompileSystemPrompt(in.ToolNotes)
	outputType := in.Schema.CompileOutputType()

	requestCount := 0
	toolCallCount := 0
	totalTokens := 0

	for {
		if te.Limits.RequestLimit > 0 && requestCount >= te.Limits.RequestLimit {
			return rows, NewError(KindLimitExceeded, "TurnExecutor", "Run", "request limit exceeded", nil)
		}
		requestCount++

		req := &GenerateRequest{
			Messages:          messages,
			Tools:             in.Schema.Tools(),
			SystemInstruction: systemInstruction,
			OutputType:        outputType,
		}

		var finalText string
		var toolCalls []ToolCallRef
		var finishReason string

		for resp, err := range te.Model.Generate(ctx, req) {
			if err != nil {
				return rows, NewError(KindModelError, "TurnExecutor", "Run", "model generation failed", err)
			}
			if resp.TextDelta != "" {
				finalText += resp.TextDelta
				if !yield(&StreamEvent{Kind: StreamEventContent, Text: resp.TextDelta}, nil) {
					return rows, nil
				}
			}
			if len(resp.ToolCalls) > 0 {
				toolCalls = append(toolCalls, resp.ToolCalls...)
			}
			totalTokens += resp.Usage.TotalTokens
			if resp.FinishReason != "" {
				finishReason = resp.FinishReason
			}
		}

		if te.Limits.TotalTokenLimit > 0 && totalTokens > te.Limits.TotalTokenLimit {
			return rows, NewError(KindLimitExceeded, "TurnExecutor", "Run", "token limit exceeded", nil)
		}

		assistantRow := MessageRow{
			ID:          uuid.NewString(),
			SessionID:   in.Session.ID,
			MessageType: MessageTypeAssistant,
			Content:     finalText,
			Model:       in.Schema.Model(),
			AgentName:   in.Schema.Name,
			CreatedAt:   nowOrZero(),
		}
		rows = append(rows, assistantRow)
		messages = append(messages, &Message{Role: a2a.MessageRoleAgent, Parts: []a2a.Part{a2a.TextPart{Text: finalText}}})

		if len(toolCalls) == 0 {
			if !yield(&StreamEvent{Kind: StreamEventDone, Text: finishReason}, nil) {
				return rows, nil
			}
			return rows, nil
		}

		for _, call := range toolCalls {
			if te.Limits.ToolCallsLimit > 0 && toolCallCount >= te.Limits.ToolCallsLimit {
				return rows, NewError(KindLimitExceeded, "TurnExecutor", "Run", "tool call limit exceeded", nil)
			}
			toolCallCount++

			callCopy := call
			rows = append(rows, MessageRow{
				ID:          uuid.NewString(),
				SessionID:   in.Session.ID,
				MessageType: MessageTypeToolCall,
				ToolCalls:   &callCopy,
				AgentName:   in.Schema.Name,
				CreatedAt:   nowOrZero(),
			})
			if !yield(&StreamEvent{Kind: StreamEventToolCall, Tool: &callCopy}, nil) {
				return rows, nil
			}

			result, toolErr := te.invokeTool(ctx, call)
			responseRow := MessageRow{
				ID:          uuid.NewString(),
				SessionID:   in.Session.ID,
				MessageType: MessageTypeToolResponse,
				ToolCalls:   &callCopy,
				AgentName:   in.Schema.Name,
				CreatedAt:   nowOrZero(),
			}
			if toolErr != nil {
				// Tool failures are reported as data, never raised as
				// exceptions that abort the turn (spec.md §7).
				responseRow.Content = fmt.Sprintf("error: %v", toolErr)
			} else {
				responseRow.Content = fmt.Sprintf("%v", result)
			}
			rows = append(rows, responseRow)
			if !yield(&StreamEvent{Kind: StreamEventToolResult, Tool: &callCopy}, nil) {
				return rows, nil
			}

			if in.Schema.ChainedTool() != "" && in.Schema.ChainedTool() == call.Name {
				// The chained tool's result stands in for the final
				// response; the loop ends here rather than looping back
				// for another model call (spec.md §4.6(a)).
				if !yield(&StreamEvent{Kind: StreamEventDone, Text: "chained_tool"}, nil) {
					return rows, nil
				}
				return rows, nil
			}
		}
	}
}

func (te *TurnExecutor) invokeTool(ctx context.Context, call ToolCallRef) (any, error) {
	tool, ok := te.Tools[call.Name]
	if !ok {
		return nil, NewError(KindToolNotFound, "TurnExecutor", "invokeTool", "no such tool: "+call.Name, nil)
	}
	result, err := tool.Invoke(ctx, call.Arguments)
	if err != nil {
		return nil, NewError(KindToolError, "TurnExecutor", "invokeTool", "tool execution failed", err)
	}
	return result, nil
}

// nowOrZero exists so every CreatedAt assignment routes through one place;
// callers that need deterministic timestamps for tests construct rows
// directly instead of going through TurnExecutor.
func nowOrZero() time.Time {
	return time.Now()
}
