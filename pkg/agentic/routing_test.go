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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutingState_ShouldReclassify(t *testing.T) {
	rs := NewRoutingState("general")
	assert.True(t, rs.ShouldReclassify(), "idle state always reclassifies")

	rs.Activate("billing", 3)
	assert.False(t, rs.ShouldReclassify())

	rs.TurnCount = 3
	assert.True(t, rs.ShouldReclassify(), "exhausted turn budget forces reclassification")

	rs.State = RoutingReEvaluate
	assert.True(t, rs.ShouldReclassify())
}

func TestRoutingState_IncrementTurnTransitionsOnLimit(t *testing.T) {
	rs := NewRoutingState("general")
	rs.Activate("billing", 2)
	rs.IncrementTurn()
	assert.Equal(t, RoutingExecuting, rs.State)
	rs.IncrementTurn()
	assert.Equal(t, RoutingReEvaluate, rs.State)
}

func TestRoutingState_Complete(t *testing.T) {
	rs := NewRoutingState("general")
	rs.Activate("billing", 5)
	rs.Complete()
	assert.Equal(t, RoutingIdle, rs.State)
	assert.Equal(t, "general", rs.ActiveAgent)
}

type stubClassifier struct{ target string }

func (s stubClassifier) Classify(context.Context, string, map[string]any, []MessageRow, *RoutingState, []string) (string, error) {
	return s.target, nil
}

func TestRouter_LazyReclassification(t *testing.T) {
	router := NewRouter(stubClassifier{target: "billing"})
	rs := NewRoutingState("general")

	name, err := router.Route(context.Background(), rs, "how much do I owe", nil, nil, []string{"billing", "general"})
	require.NoError(t, err)
	assert.Equal(t, "billing", name)
	assert.Equal(t, RoutingExecuting, rs.State)

	// Classifier is not consulted again until the turn budget runs out.
	router2 := NewRouter(stubClassifier{target: "should-not-be-used"})
	name, err = router2.Route(context.Background(), rs, "follow up", nil, nil, []string{"billing", "general"})
	require.NoError(t, err)
	assert.Equal(t, "billing", name)
	assert.Equal(t, 1, rs.TurnCount)
}

func TestRouter_EscalatesOnEmptyClassification(t *testing.T) {
	router := NewRouter(stubClassifier{target: ""})
	rs := NewRoutingState("general")
	_, err := router.Route(context.Background(), rs, "???", nil, nil, nil)
	require.Error(t, err)
	assert.Equal(t, RoutingEscalated, rs.State)
}

func TestDefaultClassifier_ReturnsFallback(t *testing.T) {
	rs := NewRoutingState("general")
	name, err := DefaultClassifier{}.Classify(context.Background(), "hi", nil, nil, rs, nil)
	require.NoError(t, err)
	assert.Equal(t, "general", name)
}
