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
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageHistoryCodec_FastPathRoundTrip(t *testing.T) {
	var codec MessageHistoryCodec
	messages := []*Message{{Role: "user"}, {Role: "agent"}}

	blob, err := codec.EncodeFast(messages)
	require.NoError(t, err)

	metadata := map[string]any{PAIMessagesMetadataKey: blob}
	decoded, ok := codec.DecodeFast(metadata)
	require.True(t, ok)
	require.Len(t, decoded, 2)
	assert.EqualValues(t, "user", decoded[0].Role)
}

func TestMessageHistoryCodec_FastPathMissing(t *testing.T) {
	var codec MessageHistoryCodec
	_, ok := codec.DecodeFast(map[string]any{})
	assert.False(t, ok)
}

func TestMessageHistoryCodec_ReconstructDropsThinkAndToolResult(t *testing.T) {
	var codec MessageHistoryCodec
	rows := []MessageRow{
		{MessageType: MessageTypeUser, Content: "hi"},
		{MessageType: MessageTypeThink, Content: "scratch space"},
		{MessageType: MessageTypeToolCall, Content: "calling search", ToolCalls: &ToolCallRef{ID: "call-1", Name: "search"}},
		{MessageType: MessageTypeToolResponse, Content: "result text", ToolCalls: &ToolCallRef{ID: "call-1", Name: "search"}},
		{MessageType: MessageTypeToolResult, Content: "duplicate scratch"},
		{MessageType: MessageTypeAssistant, Content: "here you go"},
	}

	messages := codec.Reconstruct(rows)

	require.Len(t, messages, 4) // user, tool_call, folded tool_response, assistant
	assert.Equal(t, "hi", textOf(messages[0]))
	assert.Equal(t, "calling search", textOf(messages[1]))
	assert.Equal(t, "result text", textOf(messages[2]))
	assert.Equal(t, "here you go", textOf(messages[3]))
}

func textOf(m *Message) string {
	if len(m.Parts) == 0 {
		return ""
	}
	if tp, ok := m.Parts[0].(a2a.TextPart); ok {
		return tp.Text
	}
	return ""
}
