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

package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kadirpekel/hector/pkg/agentic"
)

// registryInvoker satisfies tools.AgentInvoker by resolving a schema from
// the shared AgentRegistry and running a single, session-less turn against
// it, so ask_agent can delegate to any other locally registered agent
// without the tools package depending on the runtime core's wiring.
type registryInvoker struct {
	registry *agentic.AgentRegistry
	store    agentic.Store
	model    agentic.ModelRuntime
	tools    map[string]agentic.Tool
}

func (r *registryInvoker) Invoke(ctx context.Context, agentName, prompt string) (string, error) {
	schema, err := r.registry.Resolve(ctx, agentName)
	if err != nil {
		return "", fmt.Errorf("resolve delegate agent %q: %w", agentName, err)
	}

	executor := agentic.NewTurnExecutor(r.model, r.tools, schema.CompileUsageLimits())
	sessionID := "delegate-" + uuid.NewString()
	rows, err := executor.RunCollect(ctx, agentic.TurnInput{
		Schema:   schema,
		Session:  &agentic.SessionRow{ID: sessionID},
		UserText: prompt,
	})
	if err != nil {
		return "", fmt.Errorf("run delegate turn for %q: %w", agentName, err)
	}
	if err := r.store.PersistTurn(ctx, sessionID, rows); err != nil {
		return "", fmt.Errorf("persist delegate turn for %q: %w", agentName, err)
	}

	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].MessageType == agentic.MessageTypeAssistant {
			return rows[i].Content, nil
		}
	}
	return "", fmt.Errorf("delegate agent %q produced no assistant response", agentName)
}
