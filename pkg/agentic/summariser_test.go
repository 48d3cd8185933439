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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSummarizer struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (f *fakeSummarizer) Summarize(_ context.Context, sessionID string, rows []MessageRow) (Moment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sessionID)
	if f.fail[sessionID] {
		return Moment{}, assert.AnError
	}
	return Moment{UserID: "u1", Summary: "summary of " + sessionID}, nil
}

func TestBackgroundSummariser_SummarizesEachSession(t *testing.T) {
	store := newFakeStore()
	store.messages["s1"] = []MessageRow{{MessageType: MessageTypeUser, Content: "hi"}}
	store.messages["s2"] = []MessageRow{{MessageType: MessageTypeUser, Content: "hey"}}

	summarizer := &fakeSummarizer{fail: map[string]bool{}}
	bs := NewBackgroundSummariser(store, summarizer, 2)

	ids := make(chan string, 2)
	ids <- "s1"
	ids <- "s2"
	close(ids)

	require.NoError(t, bs.Run(context.Background(), ids))

	assert.Len(t, store.moments["u1"], 2)
}

func TestBackgroundSummariser_SkipsEmptySessionsAndSurvivesFailures(t *testing.T) {
	store := newFakeStore()
	store.messages["empty"] = nil
	store.messages["boom"] = []MessageRow{{MessageType: MessageTypeUser, Content: "hi"}}
	store.messages["ok"] = []MessageRow{{MessageType: MessageTypeUser, Content: "hi"}}

	summarizer := &fakeSummarizer{fail: map[string]bool{"boom": true}}
	bs := NewBackgroundSummariser(store, summarizer, 1)

	ids := make(chan string, 3)
	ids <- "empty"
	ids <- "boom"
	ids <- "ok"
	close(ids)

	// A failure on one session must not abort the worker pool or return an error.
	require.NoError(t, bs.Run(context.Background(), ids))
	assert.Len(t, store.moments["u1"], 1)
}
