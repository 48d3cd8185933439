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
	"time"

	"github.com/a2aproject/a2a-go/a2a"
)

// MessageType enumerates the kinds of a persisted message row.
type MessageType string

const (
	MessageTypeUser         MessageType = "user"
	MessageTypeSystem       MessageType = "system"
	MessageTypeAssistant    MessageType = "assistant"
	MessageTypeToolCall     MessageType = "tool_call"
	MessageTypeToolResponse MessageType = "tool_response"
	MessageTypeObservation  MessageType = "observation"
	MessageTypeMemory       MessageType = "memory"
	MessageTypeThink        MessageType = "think"
	MessageTypeToolResult   MessageType = "tool_result"
)

// ToolCallRef correlates a tool_call row with its tool_response row.
type ToolCallRef struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// MessageRow is a single persisted turn row (spec.md §3).
type MessageRow struct {
	ID           string         `json:"id"`
	SessionID    string         `json:"session_id"`
	MessageType  MessageType    `json:"message_type"`
	Content      string         `json:"content"`
	ToolCalls    *ToolCallRef   `json:"tool_calls,omitempty"`
	InputTokens  *int           `json:"input_tokens,omitempty"`
	OutputTokens *int           `json:"output_tokens,omitempty"`
	LatencyMS    *int64         `json:"latency_ms,omitempty"`
	Model        string         `json:"model,omitempty"`
	AgentName    string         `json:"agent_name,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// GraphEdge is one edge in a Moment's affinity graph.
type GraphEdge struct {
	Target   string  `json:"target"`
	Relation string  `json:"relation"`
	Weight   float64 `json:"weight"`
	Reason   string  `json:"reason"`
}

// MomentType enumerates the kinds of durable summary rows.
type MomentType string

const (
	MomentTypeSessionChunk   MomentType = "session_chunk"
	MomentTypeDream          MomentType = "dream"
	MomentTypePlotCollection MomentType = "plot_collection"
)

// Moment is a durable summary row with graph edges to related entities
// (spec.md §3).
type Moment struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	MomentType      MomentType     `json:"moment_type"`
	Summary         string         `json:"summary"`
	TopicTags       []string       `json:"topic_tags,omitempty"`
	EmotionTags     []string       `json:"emotion_tags,omitempty"`
	GraphEdges      []GraphEdge    `json:"graph_edges,omitempty"`
	SourceSessionID string         `json:"source_session_id,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// SessionRow is the persisted session record (spec.md §3).
type SessionRow struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	AgentName string         `json:"agent_name"`
	Mode      string         `json:"mode"`
	UserID    string         `json:"user_id,omitempty"`
	Metadata  map[string]any `json:"metadata"`
}

// RoutingMetadataKey is the session metadata key holding the routing table.
const RoutingMetadataKey = "routing"

// PAIMessagesMetadataKey is the session metadata key holding the opaque,
// provider-specific serialized message history used by the fast path of
// MessageHistoryCodec (spec.md §4.5(a)).
const PAIMessagesMetadataKey = "pai_messages"

// Message is the model runtime's structured message shape. It reuses the
// a2a wire types (already the teacher's universal content representation)
// rather than inventing a parallel one.
type Message = a2a.Message

// Entity identifies a user or session whose metadata is being merged
// (spec.md §6 merge_metadata).
type Entity struct {
	Kind string // "user" | "session"
	ID   string
}
