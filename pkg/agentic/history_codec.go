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
	"encoding/json"

	"github.com/a2aproject/a2a-go/a2a"
)

// droppedMessageTypes are rows reconstructed into provider messages only
// through the fast path; the slow reconstruction path omits them, since
// "think" content is provider-internal scratch space and "tool_result" is
// internal-only; a tool's output is replayed from its tool_response row,
// which Reconstruct folds in after the owning tool_call (spec.md §4.5(b)).
var droppedMessageTypes = map[MessageType]struct{}{
	MessageTypeThink:      {},
	MessageTypeToolResult: {},
}

// MessageHistoryCodec reconstructs the provider-facing message list for a
// turn either from an opaque cached blob (fast path) or by mapping stored
// rows one-by-one (reconstruction path), per spec.md §4.5.
type MessageHistoryCodec struct{}

// DecodeFast returns the cached message list from session metadata's
// pai_messages key, if present and well-formed. A false second return
// means the caller must fall back to Reconstruct.
func (MessageHistoryCodec) DecodeFast(metadata map[string]any) ([]*Message, bool) {
	raw, ok := metadata[PAIMessagesMetadataKey]
	if !ok {
		return nil, false
	}
	blob, err := json.Marshal(raw)
	if err != nil {
		return nil, false
	}
	var messages []*Message
	if err := json.Unmarshal(blob, &messages); err != nil {
		return nil, false
	}
	return messages, true
}

// EncodeFast serialises the message list back into the cache blob shape,
// for writing to session metadata after a turn completes.
func (MessageHistoryCodec) EncodeFast(messages []*Message) (any, error) {
	raw, err := json.Marshal(messages)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Reconstruct rebuilds the provider-facing message list by mapping each
// stored row to a Message, dropping think/tool_result rows and folding a
// tool_call row's paired tool_response into a single tool-result message
// (spec.md §4.5(b)).
func (MessageHistoryCodec) Reconstruct(rows []MessageRow) []*Message {
	responses := make(map[string]MessageRow, len(rows))
	for _, row := range rows {
		if row.MessageType == MessageTypeToolResponse && row.ToolCalls != nil {
			responses[row.ToolCalls.ID] = row
		}
	}

	var messages []*Message
	for _, row := range rows {
		if _, dropped := droppedMessageTypes[row.MessageType]; dropped {
			continue
		}
		if row.MessageType == MessageTypeToolResponse {
			// Folded into its tool_call below.
			continue
		}

		role := roleForMessageType(row.MessageType)
		msg := &a2a.Message{
			Role:  role,
			Parts: []a2a.Part{a2a.TextPart{Text: row.Content}},
		}
		messages = append(messages, msg)

		if row.MessageType == MessageTypeToolCall && row.ToolCalls != nil {
			if resp, ok := responses[row.ToolCalls.ID]; ok {
				messages = append(messages, &a2a.Message{
					Role:  a2a.MessageRoleAgent,
					Parts: []a2a.Part{a2a.TextPart{Text: resp.Content}},
				})
			}
		}
	}
	return messages
}

func roleForMessageType(t MessageType) a2a.MessageRole {
	switch t {
	case MessageTypeUser:
		return a2a.MessageRoleUser
	default:
		return a2a.MessageRoleAgent
	}
}
