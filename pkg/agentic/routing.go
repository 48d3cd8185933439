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
)

// RoutingPhase enumerates RoutingState's states (spec.md §3, §4.9).
type RoutingPhase string

const (
	RoutingIdle        RoutingPhase = "idle"
	RoutingExecuting   RoutingPhase = "executing"
	RoutingReEvaluate  RoutingPhase = "re-evaluate"
	RoutingEscalated   RoutingPhase = "escalated"
)

// RoutingTransition records one classifier decision for audit (spec.md §4.9).
type RoutingTransition struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}

// RoutingState is the delegation state machine persisted under a session's
// "routing" metadata key (spec.md §3, §4.9).
type RoutingState struct {
	ActiveAgent string            `json:"active_agent"`
	State       RoutingPhase      `json:"state"`
	Target      string            `json:"target,omitempty"`
	TurnCount   int               `json:"turn_count"`
	MaxTurns    int               `json:"max_turns"`
	Fallback    string            `json:"fallback"`
	Escalation  string            `json:"escalation,omitempty"`
	Delegation  string            `json:"delegation,omitempty"`
	Transitions []RoutingTransition `json:"transitions,omitempty"`
}

// NewRoutingState returns the idle zero-state, falling back to fallback
// when no agent has yet been activated.
func NewRoutingState(fallback string) *RoutingState {
	return &RoutingState{
		ActiveAgent: fallback,
		State:       RoutingIdle,
		Fallback:    fallback,
		MaxTurns:    20,
	}
}

// ShouldReclassify reports whether the router must consult the classifier
// before the next turn, rather than continue with ActiveAgent (spec.md
// §4.9): true when idle, true when re-evaluate, and true when executing
// but the per-agent turn budget has been exhausted.
func (rs *RoutingState) ShouldReclassify() bool {
	switch rs.State {
	case RoutingIdle, RoutingReEvaluate:
		return true
	case RoutingExecuting:
		return rs.TurnCount >= rs.MaxTurns
	default:
		return false
	}
}

// Activate transitions to executing under the given agent, resetting the
// turn counter. A zero maxTurns leaves the existing MaxTurns untouched.
func (rs *RoutingState) Activate(agentName string, maxTurns int) {
	rs.Transitions = append(rs.Transitions, RoutingTransition{From: rs.ActiveAgent, To: agentName, Reason: "classified"})
	rs.ActiveAgent = agentName
	rs.State = RoutingExecuting
	rs.TurnCount = 0
	if maxTurns > 0 {
		rs.MaxTurns = maxTurns
	}
}

// IncrementTurn advances the turn counter, transitioning to re-evaluate
// once the per-agent budget is exhausted (spec.md §4.9).
func (rs *RoutingState) IncrementTurn() {
	rs.TurnCount++
	if rs.TurnCount >= rs.MaxTurns {
		rs.State = RoutingReEvaluate
	}
}

// Complete returns the state machine to idle under the fallback agent.
func (rs *RoutingState) Complete() {
	rs.State = RoutingIdle
	rs.ActiveAgent = rs.Fallback
}

// Escalate marks the state machine escalated, recording why; used when a
// classifier declines to choose or a delegation loop is detected.
func (rs *RoutingState) Escalate(reason string) {
	rs.State = RoutingEscalated
	rs.Escalation = reason
}

// RouterClassifier decides which agent should handle the next turn,
// given the available agents and the conversation so far (spec.md §4.9,
// grounded on original_source's RouterClassifier Protocol).
type RouterClassifier interface {
	Classify(ctx context.Context, message string, profile map[string]any, history []MessageRow, state *RoutingState, available []string) (string, error)
}

// DefaultClassifier always returns the routing state's configured
// fallback, matching original_source's DefaultClassifier placeholder.
type DefaultClassifier struct{}

func (DefaultClassifier) Classify(_ context.Context, _ string, _ map[string]any, _ []MessageRow, state *RoutingState, _ []string) (string, error) {
	return state.Fallback, nil
}

// Router applies lazy reclassification: it only invokes the classifier
// when ShouldReclassify reports true, otherwise it continues with the
// active agent and merely increments the turn counter (spec.md §4.9).
type Router struct {
	Classifier RouterClassifier
}

// NewRouter builds a Router backed by DefaultClassifier unless overridden.
func NewRouter(classifier RouterClassifier) *Router {
	if classifier == nil {
		classifier = DefaultClassifier{}
	}
	return &Router{Classifier: classifier}
}

// Route returns the agent name that should handle this turn, mutating
// state in place to reflect the routing decision.
func (r *Router) Route(ctx context.Context, state *RoutingState, message string, profile map[string]any, history []MessageRow, available []string) (string, error) {
	if !state.ShouldReclassify() {
		state.IncrementTurn()
		return state.ActiveAgent, nil
	}

	target, err := r.Classifier.Classify(ctx, message, profile, history, state, available)
	if err != nil {
		return "", NewError(KindModelError, "Router", "Route", "classifier failed", err)
	}
	if target == "" {
		state.Escalate("classifier returned no agent")
		return "", NewError(KindAgentNotFound, "Router", "Route", "classifier declined to select an agent", nil)
	}

	state.Activate(target, 0)
	return target, nil
}
