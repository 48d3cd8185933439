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

// Package agentic is the runtime core of a schema-driven assistant
// platform: it turns a declarative agent document into a live,
// streaming, tool-using conversation and composes multiple agents
// into a parent/child delegation graph whose events multiplex onto
// a single client stream.
//
// The core is split into collaborating pieces: AgentSchema,
// AgentRegistry, ContextInjector, MessageHistoryCodec, TurnExecutor,
// DelegationBus, StreamMultiplexer, the persistence gateway (the Store
// interface, implemented by the sqlstore package), BackgroundSummariser,
// and RoutingState. There is no separate ToolResolver type: the tools a
// turn can call are the schema's declared Tools() looked up in the
// TurnExecutor's tool map. See SPEC_FULL.md and DESIGN.md at the
// repository root for the component design.
package agentic
