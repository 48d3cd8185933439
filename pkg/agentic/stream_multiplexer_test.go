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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamMultiplexer_FansInPrimaryAndChild(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mux := NewStreamMultiplexer(8)
	primary := make(chan StreamEvent, 4)
	childBus := NewDelegationBus(4)

	mux.AddSource(ctx, primary)
	mux.AddChildBus(ctx, childBus)

	primary <- StreamEvent{Kind: StreamEventContent, Text: "hello"}
	close(primary)

	require.NoError(t, childBus.Push(ChildEvent{Kind: ChildEventContent, AgentName: "billing", Content: "child says hi"}))
	childBus.Close()

	mux.CloseWhenDone()

	var gotPrimary, gotChild bool
	deadline := time.After(2 * time.Second)
	for ev := range waitOrTimeout(t, mux.Out(), deadline) {
		switch ev.Kind {
		case StreamEventContent:
			assert.Equal(t, "hello", ev.Text)
			gotPrimary = true
		case StreamEventChild:
			require.NotNil(t, ev.Child)
			assert.Equal(t, "child says hi", ev.Child.Content)
			gotChild = true
		}
	}

	assert.True(t, gotPrimary)
	assert.True(t, gotChild)
}

// waitOrTimeout drains ch into a fresh channel, failing the test if it is
// still open when deadline fires instead of hanging the test run forever.
func waitOrTimeout(t *testing.T, ch <-chan StreamEvent, deadline <-chan time.Time) <-chan StreamEvent {
	t.Helper()
	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					return
				}
				out <- ev
			case <-deadline:
				t.Error("timed out waiting for multiplexer to close")
				return
			}
		}
	}()
	return out
}
