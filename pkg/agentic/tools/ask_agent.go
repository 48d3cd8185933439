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

package tools

import (
	"context"
	"fmt"

	"github.com/kadirpekel/hector/pkg/agentic"
)

// AgentInvoker resolves a schema and runs a turn against it; it is the
// minimal seam ask_agent needs out of the runtime core, so this package
// does not import the turn executor's model/tool wiring directly.
type AgentInvoker interface {
	Invoke(ctx context.Context, agentName, prompt string) (string, error)
}

// AskAgentTool invokes another agent by name, forwarding the child's
// streamed events onto the caller's DelegationBus if one is present in
// context, grounded on ask_agent.py's ContextVar event-sink pattern —
// here expressed as a context.Context value instead of a module-global.
type AskAgentTool struct {
	Invoker AgentInvoker
}

func (t *AskAgentTool) Name() string        { return "ask_agent" }
func (t *AskAgentTool) Description() string { return "Delegate a prompt to another named agent and return its response." }
func (t *AskAgentTool) Parameters() map[string]any {
	return map[string]any{
		"agent_name": map[string]any{"type": "string", "description": "Name of the agent to delegate to."},
		"prompt":     map[string]any{"type": "string", "description": "Prompt to send to the child agent."},
	}
}

func (t *AskAgentTool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	agentName, err := requireString(args, "agent_name")
	if err != nil {
		return nil, fmt.Errorf("ask_agent: %w", err)
	}
	prompt, err := requireString(args, "prompt")
	if err != nil {
		return nil, fmt.Errorf("ask_agent: %w", err)
	}

	bus, hasBus := agentic.DelegationBusFromContext(ctx)
	if hasBus {
		_ = bus.Push(agentic.ChildEvent{Kind: agentic.ChildEventToolStart, AgentName: agentName, ToolName: "ask_agent"})
	}

	response, err := t.Invoker.Invoke(ctx, agentName, prompt)
	if err != nil {
		if hasBus {
			_ = bus.Push(agentic.ChildEvent{Kind: agentic.ChildEventToolResult, AgentName: agentName, ToolResult: err.Error()})
		}
		return nil, fmt.Errorf("ask_agent: delegate to %q failed: %w", agentName, err)
	}

	if hasBus {
		_ = bus.Push(agentic.ChildEvent{Kind: agentic.ChildEventContent, AgentName: agentName, Content: response})
		_ = bus.Push(agentic.ChildEvent{Kind: agentic.ChildEventToolResult, AgentName: agentName, ToolResult: response})
	}

	return map[string]any{"status": "success", "agent": agentName, "response": response}, nil
}
