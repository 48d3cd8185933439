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
	"fmt"
	"sort"
	"strings"
	"time"
)

// ContextAttributes are the facts rendered into the "[Context]" block
// injected after the system prompt (spec.md §4.4), grounded on the
// original ContextAttributes.render() shape.
type ContextAttributes struct {
	Now         time.Time
	UserID      string
	UserEmail   string
	UserName    string
	SessionID   string
	AgentName   string
	SessionInfo map[string]any
	Metadata    map[string]any
}

// excludedMetadataKeys are never echoed into the rendered Context JSON:
// pai_messages is an opaque codec blob and routing is session routing
// state. Render emits no separate routing line either, so the routing
// table does not appear anywhere in the block.
var excludedMetadataKeys = map[string]struct{}{
	PAIMessagesMetadataKey: {},
	RoutingMetadataKey:     {},
}

// Render produces the exact "[Context]" block text appended after the
// system prompt.
func (c ContextAttributes) Render() string {
	var b strings.Builder

	b.WriteString("[Context]\n")
	b.WriteString(fmt.Sprintf("Date: %s\n", c.Now.Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("Time: %s\n", c.Now.Format("15:04:05 MST")))
	if c.UserID != "" {
		b.WriteString(fmt.Sprintf("User ID: %s\n", c.UserID))
	}
	if c.UserEmail != "" {
		b.WriteString(fmt.Sprintf("User email: %s\n", c.UserEmail))
	}
	if c.UserName != "" {
		b.WriteString(fmt.Sprintf("User name: %s\n", c.UserName))
	}
	if c.SessionID != "" {
		b.WriteString(fmt.Sprintf("Session: %s\n", c.SessionID))
	}
	if c.AgentName != "" {
		b.WriteString(fmt.Sprintf("Agent: %s\n", c.AgentName))
	}

	if len(c.SessionInfo) > 0 {
		b.WriteString("\n## Session Context\n")
		writeSortedJSONLines(&b, c.SessionInfo)
	}

	filtered := make(map[string]any, len(c.Metadata))
	for k, v := range c.Metadata {
		if _, excluded := excludedMetadataKeys[k]; excluded {
			continue
		}
		filtered[k] = v
	}
	if len(filtered) > 0 {
		b.WriteString("\n## Context JSON\n")
		raw, err := json.MarshalIndent(filtered, "", "  ")
		if err == nil {
			b.Write(raw)
			b.WriteString("\n")
		}
	}

	return b.String()
}

func writeSortedJSONLines(b *strings.Builder, m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(fmt.Sprintf("- %s: %v\n", k, m[k]))
	}
}

// ExtraSection is an additional block appended after the rendered context,
// reserved for future positions beyond "after_system_prompt" (spec.md §4.4
// notes only this position is currently supported).
type ExtraSection struct {
	Title    string
	Body     string
	Position string
}

// ContextInjector composes the system prompt, the rendered context block,
// and any extra sections into the final instructions string sent to the
// model runtime (spec.md §4.4).
type ContextInjector struct {
	SystemPrompt   string
	Attributes     ContextAttributes
	ExtraSections  []ExtraSection
}

// BuildInstructions returns the composed system instructions.
func (ci *ContextInjector) BuildInstructions() string {
	var b strings.Builder
	b.WriteString(ci.SystemPrompt)
	b.WriteString("\n\n")
	b.WriteString(ci.Attributes.Render())

	for _, s := range ci.ExtraSections {
		if s.Position != "" && s.Position != "after_system_prompt" {
			continue
		}
		b.WriteString("\n\n## ")
		b.WriteString(s.Title)
		b.WriteString("\n")
		b.WriteString(s.Body)
	}

	return b.String()
}
