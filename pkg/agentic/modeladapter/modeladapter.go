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

// Package modeladapter wraps an existing pkg/model.LLM (openai, anthropic,
// ollama) so it satisfies agentic.ModelRuntime, keeping transport
// concerns entirely inside pkg/model as spec.md requires while letting the
// turn executor drive any of the teacher's providers unmodified.
package modeladapter

import (
	"context"
	"iter"

	"github.com/kadirpekel/hector/pkg/agentic"
	"github.com/kadirpekel/hector/pkg/model"
	"github.com/kadirpekel/hector/pkg/tool"
)

// Adapter wraps a model.LLM to satisfy agentic.ModelRuntime.
type Adapter struct {
	LLM    model.LLM
	Stream bool
}

// New wraps llm for use as an agentic.ModelRuntime. stream selects whether
// GenerateContent is driven in streaming or single-shot mode.
func New(llm model.LLM, stream bool) *Adapter {
	return &Adapter{LLM: llm, Stream: stream}
}

func (a *Adapter) Name() string { return a.LLM.Name() }

// Generate implements agentic.ModelRuntime by translating agentic's request
// shape into a model.Request, running the wrapped LLM, and translating each
// model.Response back into an agentic.GenerateResponse.
func (a *Adapter) Generate(ctx context.Context, req *agentic.GenerateRequest) iter.Seq2[*agentic.GenerateResponse, error] {
	modelReq := &model.Request{
		Messages:          req.Messages,
		SystemInstruction: req.SystemInstruction,
		Tools:             toDefinitions(req.Tools),
		Config:            toGenerateConfig(req),
	}

	return func(yield func(*agentic.GenerateResponse, error) bool) {
		for resp, err := range a.LLM.GenerateContent(ctx, modelReq, a.Stream) {
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(toGenerateResponse(resp), nil) {
				return
			}
		}
	}
}

func toDefinitions(tools []agentic.ToolRef) []tool.Definition {
	if len(tools) == 0 {
		return nil
	}
	defs := make([]tool.Definition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, tool.Definition{Name: t.Name})
	}
	return defs
}

func toGenerateConfig(req *agentic.GenerateRequest) *model.GenerateConfig {
	return &model.GenerateConfig{
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
}

func toGenerateResponse(resp *model.Response) *agentic.GenerateResponse {
	out := &agentic.GenerateResponse{
		TextDelta: resp.TextContent(),
		Partial:   resp.Partial,
	}
	if resp.FinishReason != "" {
		out.FinishReason = string(resp.FinishReason)
	}
	if resp.Usage != nil {
		out.Usage = agentic.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	for _, tc := range resp.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, agentic.ToolCallRef{
			ID: tc.ID, Name: tc.Name, Arguments: tc.Args,
		})
	}
	return out
}

var _ agentic.ModelRuntime = (*Adapter)(nil)
