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
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// PropertySpec describes one field of an AgentSchema's properties map.
// In conversational mode (StructuredOutput=false) properties are thinking
// aides appended to the system prompt; in structured mode they define the
// required output shape (spec.md §3, §4.1).
type PropertySpec struct {
	Type        string `yaml:"type" json:"type"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Required    bool   `yaml:"-" json:"-"`
}

// ToolRef is one entry in an AgentSchema's tool list.
type ToolRef struct {
	Name        string `yaml:"name" json:"name"`
	Provider    string `yaml:"provider,omitempty" json:"provider,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// UsageLimits bounds a single turn's resource consumption.
type UsageLimits struct {
	RequestLimit    int `yaml:"request_limit,omitempty" json:"request_limit,omitempty"`
	ToolCallsLimit  int `yaml:"tool_calls_limit,omitempty" json:"tool_calls_limit,omitempty"`
	TotalTokenLimit int `yaml:"total_tokens_limit,omitempty" json:"total_tokens_limit,omitempty"`
}

// Document is the flat declarative agent document (spec.md §3, §4.1):
// a JSON-Schema-like shape (Type/Description/Properties/Required) plus
// runtime-config fields. It is the wire/on-disk/store-row representation;
// AgentSchema is its compiled, immutable form.
type Document struct {
	Name        string                  `yaml:"name" json:"name"`
	Description string                  `yaml:"description,omitempty" json:"description,omitempty"`
	Type        string                  `yaml:"type,omitempty" json:"type,omitempty"`
	SystemPrompt string                 `yaml:"system_prompt,omitempty" json:"system_prompt,omitempty"`
	Properties  map[string]PropertySpec `yaml:"properties,omitempty" json:"properties,omitempty"`
	Required    []string                `yaml:"required,omitempty" json:"required,omitempty"`

	Tools            []ToolRef    `yaml:"tools,omitempty" json:"tools,omitempty"`
	ChainedTool      string       `yaml:"chained_tool,omitempty" json:"chained_tool,omitempty"`
	StructuredOutput bool         `yaml:"structured_output,omitempty" json:"structured_output,omitempty"`
	Model            string       `yaml:"model,omitempty" json:"model,omitempty"`
	Temperature      *float64     `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	MaxTokens        *int         `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	Limits           *UsageLimits `yaml:"limits,omitempty" json:"limits,omitempty"`

	RoutingEnabled  bool `yaml:"routing_enabled,omitempty" json:"routing_enabled,omitempty"`
	RoutingMaxTurns int  `yaml:"routing_max_turns,omitempty" json:"routing_max_turns,omitempty"`
	ObservationMode string `yaml:"observation_mode,omitempty" json:"observation_mode,omitempty"`
}

// OutputKind distinguishes free-text conversational output from a
// structured-object output (spec.md §4.1 compile_output_type).
type OutputKind string

const (
	OutputKindText   OutputKind = "text"
	OutputKindObject OutputKind = "object"
)

// OutputType is the compiled result of compile_output_type.
type OutputType struct {
	Kind   OutputKind
	Schema map[string]any
}

// AgentSchema is the immutable, compiled form of a Document (spec.md §3,
// §4.1). It is cached by AgentRegistry and shared by reference.
type AgentSchema struct {
	Name             string
	Description      string
	document         Document
	toolNames        map[string]struct{}
}

// Build validates uniqueness of tool names, normalises tool entries, and
// defaults missing config fields (spec.md §4.1).
func Build(doc Document) (*AgentSchema, error) {
	if strings.TrimSpace(doc.Name) == "" {
		return nil, NewError(KindInvalidSchema, "AgentSchema", "Build", "name is required", nil)
	}

	seen := make(map[string]struct{}, len(doc.Tools))
	for i, t := range doc.Tools {
		if t.Name == "" {
			return nil, NewError(KindInvalidSchema, "AgentSchema", "Build",
				fmt.Sprintf("tool at index %d has an empty name", i), nil)
		}
		if _, dup := seen[t.Name]; dup {
			return nil, NewError(KindInvalidSchema, "AgentSchema", "Build",
				fmt.Sprintf("duplicate tool name %q", t.Name), nil)
		}
		seen[t.Name] = struct{}{}
	}

	required := make(map[string]struct{}, len(doc.Required))
	for _, r := range doc.Required {
		required[r] = struct{}{}
	}
	for r := range required {
		if _, ok := doc.Properties[r]; !ok {
			return nil, NewError(KindInvalidSchema, "AgentSchema", "Build",
				fmt.Sprintf("required property %q is not declared in properties", r), nil)
		}
	}
	for name, prop := range doc.Properties {
		_, isRequired := required[name]
		prop.Required = isRequired
		doc.Properties[name] = prop
	}

	if doc.Type == "" {
		doc.Type = "object"
	}
	if doc.RoutingMaxTurns == 0 {
		doc.RoutingMaxTurns = 20
	}
	if doc.ObservationMode == "" {
		doc.ObservationMode = "sync"
	}

	return &AgentSchema{
		Name:        doc.Name,
		Description: doc.Description,
		document:    doc,
		toolNames:   seen,
	}, nil
}

// BuildFromRow constructs an AgentSchema from a loosely-typed store row's
// json_schema column (spec.md §4.2), tolerating extra keys the way the
// original LegacyAgentConfig.from_json_schema did.
func BuildFromRow(name string, jsonSchema map[string]any) (*AgentSchema, error) {
	var doc Document
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &doc,
		WeaklyTypedInput: true,
		TagName:          "json",
	})
	if err != nil {
		return nil, NewError(KindInvalidSchema, "AgentSchema", "BuildFromRow", "failed to construct decoder", err)
	}
	if err := decoder.Decode(jsonSchema); err != nil {
		return nil, NewError(KindInvalidSchema, "AgentSchema", "BuildFromRow", "failed to decode json_schema", err)
	}
	if doc.Name == "" {
		doc.Name = name
	}
	return Build(doc)
}

// FromYAML parses a flat YAML/JSON document into an AgentSchema.
func FromYAML(raw []byte) (*AgentSchema, error) {
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, NewError(KindInvalidSchema, "AgentSchema", "FromYAML", "malformed document", err)
	}
	return Build(doc)
}

// ToDocument returns the underlying flat document, for round-tripping to
// YAML/JSON or a store row's json_schema column.
func (s *AgentSchema) ToDocument() Document {
	return s.document
}

// ToJSONSchema serialises the document's json_schema column payload.
func (s *AgentSchema) ToJSONSchema() (map[string]any, error) {
	raw, err := json.Marshal(s.document)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// HasTool reports whether the schema declares a tool with this name.
func (s *AgentSchema) HasTool(name string) bool {
	_, ok := s.toolNames[name]
	return ok
}

// Tools returns the declared tool references, in order.
func (s *AgentSchema) Tools() []ToolRef {
	return s.document.Tools
}

// ChainedTool returns the chained-tool name, if any (spec.md §4.6.a). Only
// meaningful when StructuredOutput() is true.
func (s *AgentSchema) ChainedTool() string {
	return s.document.ChainedTool
}

// StructuredOutput reports whether this agent produces a structured object.
func (s *AgentSchema) StructuredOutput() bool {
	return s.document.StructuredOutput
}

// RoutingEnabled reports whether this agent participates in RoutingState.
func (s *AgentSchema) RoutingEnabled() bool {
	return s.document.RoutingEnabled
}

// RoutingMaxTurns returns the agent's configured max_turns for RoutingState.
func (s *AgentSchema) RoutingMaxTurns() int {
	return s.document.RoutingMaxTurns
}

// Model returns the configured model identifier.
func (s *AgentSchema) Model() string {
	return s.document.Model
}

// CompileSystemPrompt concatenates the description/system prompt, an
// optional "Tool Notes" section, and — in conversational mode — a
// "Thinking Structure" section built from Properties (spec.md §4.1).
func (s *AgentSchema) CompileSystemPrompt(toolNotes map[string]string) string {
	var b strings.Builder

	if s.document.SystemPrompt != "" {
		b.WriteString(s.document.SystemPrompt)
	} else {
		b.WriteString(s.document.Description)
	}

	var notedTools []string
	for _, t := range s.document.Tools {
		if note, ok := toolNotes[t.Name]; ok && note != "" {
			notedTools = append(notedTools, fmt.Sprintf("- %s: %s", t.Name, note))
		}
	}
	if len(notedTools) > 0 {
		b.WriteString("\n\n## Tool Notes\n")
		b.WriteString(strings.Join(notedTools, "\n"))
	}

	if !s.document.StructuredOutput && len(s.document.Properties) > 0 {
		b.WriteString("\n\n## Thinking Structure\n")
		for name, prop := range s.document.Properties {
			b.WriteString(fmt.Sprintf("- %s (%s): %s\n", name, prop.Type, prop.Description))
		}
	}

	return b.String()
}

// CompileOutputType returns text for conversational agents (or those with
// no declared properties), otherwise a schema object derived from
// Properties + Required (spec.md §4.1).
func (s *AgentSchema) CompileOutputType() OutputType {
	if !s.document.StructuredOutput || len(s.document.Properties) == 0 {
		return OutputType{Kind: OutputKindText}
	}

	props := make(map[string]any, len(s.document.Properties))
	var required []string
	for name, p := range s.document.Properties {
		props[name] = map[string]any{"type": p.Type, "description": p.Description}
		if p.Required {
			required = append(required, name)
		}
	}

	return OutputType{
		Kind: OutputKindObject,
		Schema: map[string]any{
			"type":       "object",
			"properties": props,
			"required":   required,
		},
	}
}

// CompileUsageLimits maps the declared limits to the model runtime's limit
// type, applying zero-value defaults (spec.md §4.1).
func (s *AgentSchema) CompileUsageLimits() UsageLimits {
	if s.document.Limits == nil {
		return UsageLimits{}
	}
	return *s.document.Limits
}
