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

// Command agentcore is the CLI for the agentic runtime core.
//
// Usage:
//
//	agentcore serve --schema-dir ./agents --db .agentcore/agentcore.db
//	agentcore schema lint ./agents/assistant.yaml
//	agentcore replay --db .agentcore/agentcore.db --session SESSION_ID
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/hector/pkg/agentic"
	"github.com/kadirpekel/hector/pkg/agentic/modeladapter"
	"github.com/kadirpekel/hector/pkg/agentic/sqlstore"
	"github.com/kadirpekel/hector/pkg/agentic/tools"
	"github.com/kadirpekel/hector/pkg/logger"
	"github.com/kadirpekel/hector/pkg/model"
	"github.com/kadirpekel/hector/pkg/model/anthropic"
	"github.com/kadirpekel/hector/pkg/model/ollama"
	"github.com/kadirpekel/hector/pkg/model/openai"
)

// CLI defines the command-line interface.
type CLI struct {
	Serve  ServeCmd  `cmd:"" help:"Start the demo SSE server."`
	Schema SchemaCmd `cmd:"" help:"Lint an agent schema document."`
	Replay ReplayCmd `cmd:"" help:"Replay a persisted turn from a store dump."`

	DB        string `help:"Storage DSN (sqlite path, or postgres/mysql DSN)." default:".agentcore/agentcore.db"`
	Driver    string `help:"Storage driver: sqlite, postgres, or mysql." default:"sqlite"`
	LogLevel  string `name:"log-level" help:"debug, info, warn, or error." default:"info"`
	LogFormat string `name:"log-format" help:"simple or verbose." default:"simple"`
}

// ServeCmd starts the demo HTTP/SSE server.
type ServeCmd struct {
	Port          int    `help:"Port to listen on." default:"8090"`
	SchemaDir     string `name:"schema-dir" help:"Directory of on-disk agent schema documents." type:"path"`
	ModelProvider string `name:"model-provider" help:"Model backend: ollama, openai, or anthropic." default:"ollama" enum:"ollama,openai,anthropic"`
	ModelName     string `name:"model-name" help:"Model name passed to the selected provider."`
	ModelAPIKey   string `name:"model-api-key" help:"API key for openai/anthropic (ignored for ollama)." env:"AGENTCORE_MODEL_API_KEY"`
	OllamaURL     string `name:"ollama-url" help:"Ollama server base URL." default:"http://localhost:11434"`
	NoModel       bool   `name:"no-model" help:"Start without a model runtime (schema/lock endpoints only)."`
	UserID        string `name:"user-id" help:"User ID the memory tools (save_moments, get_moments, search, update_user_metadata) operate under." default:"demo-user"`
}

// buildModelRuntime constructs the ModelRuntime backing the turn executor by
// adapting one of the teacher's LLM provider implementations, rather than
// binding a new vendor SDK, per the turn executor's transport-agnostic
// ModelRuntime contract.
func (c *ServeCmd) buildModelRuntime() (agentic.ModelRuntime, error) {
	var llm model.LLM
	var err error

	switch c.ModelProvider {
	case "openai":
		name := c.ModelName
		if name == "" {
			name = "gpt-4o-mini"
		}
		llm, err = openai.New(openai.Config{APIKey: c.ModelAPIKey, Model: name})
	case "anthropic":
		name := c.ModelName
		if name == "" {
			name = "claude-3-5-haiku-latest"
		}
		llm, err = anthropic.New(anthropic.Config{APIKey: c.ModelAPIKey, Model: name})
	default:
		name := c.ModelName
		if name == "" {
			name = "llama3.2"
		}
		llm, err = ollama.New(ollama.Config{BaseURL: c.OllamaURL, Model: name})
	}
	if err != nil {
		return nil, fmt.Errorf("construct %s client: %w", c.ModelProvider, err)
	}
	return modeladapter.New(llm, true), nil
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	store, err := sqlstore.Open(cli.Driver, cli.DB)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	registry := agentic.NewAgentRegistry(agentic.RegistryOptions{
		Store:     store,
		SchemaDir: c.SchemaDir,
	})
	defer registry.Close()

	var runtime agentic.ModelRuntime
	if !c.NoModel {
		runtime, err = c.buildModelRuntime()
		if err != nil {
			return err
		}
	}

	toolCatalog := map[string]agentic.Tool{
		"save_moments":         &tools.SaveMomentsTool{Store: store, UserID: c.UserID},
		"get_moments":          &tools.GetMomentsTool{Store: store, UserID: c.UserID},
		"search":               &tools.SearchTool{Store: store, UserID: c.UserID},
		"update_user_metadata": &tools.UpdateUserMetadataTool{Store: store, UserID: c.UserID},
	}
	if runtime != nil {
		toolCatalog["ask_agent"] = &tools.AskAgentTool{Invoker: &registryInvoker{registry: registry, store: store, model: runtime, tools: toolCatalog}}
	}

	srv := NewDemoServer(registry, store, runtime, toolCatalog)
	slog.Info("agentcore: demo server ready", "port", c.Port, "model", runtime != nil, "tools", len(toolCatalog))
	fmt.Printf("\nagentcore demo server ready on :%d\n", c.Port)
	fmt.Println("Press Ctrl+C to stop")
	return srv.ListenAndServe(ctx, c.Port)
}

// SchemaCmd validates an agent schema document without starting a server.
type SchemaCmd struct {
	Lint LintCmd `cmd:"" help:"Parse and validate a schema file."`
}

// LintCmd parses one YAML/JSON agent document and reports validation errors.
type LintCmd struct {
	Path string `arg:"" help:"Path to the agent schema document." type:"path"`
}

func (c *LintCmd) Run() error {
	raw, err := os.ReadFile(c.Path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", c.Path, err)
	}
	schema, err := agentic.FromYAML(raw)
	if err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}
	fmt.Printf("ok: %s (%d tool(s), structured_output=%v, routing_enabled=%v)\n",
		schema.Name, len(schema.Tools()), schema.StructuredOutput(), schema.RoutingEnabled())
	return nil
}

// ReplayCmd re-runs the persisted rows of one session through the message
// history codec, printing the reconstructed conversation — useful for
// debugging a turn without re-invoking the model.
type ReplayCmd struct {
	Session string `help:"Session ID to replay." required:""`
	Limit   int    `help:"Max rows to load." default:"200"`
}

func (c *ReplayCmd) Run(cli *CLI) error {
	ctx := context.Background()
	store, err := sqlstore.Open(cli.Driver, cli.DB)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	rows, err := store.FetchMessages(ctx, c.Session, c.Limit)
	if err != nil {
		return fmt.Errorf("failed to fetch messages: %w", err)
	}

	var codec agentic.MessageHistoryCodec
	messages := codec.Reconstruct(rows)
	for _, m := range messages {
		for _, part := range m.Parts {
			fmt.Printf("[%s] %v\n", m.Role, part)
		}
	}
	return nil
}

func main() {
	cli := CLI{}
	kctx := kong.Parse(&cli,
		kong.Name("agentcore"),
		kong.Description("Runtime core for a schema-driven, tool-using agent platform"),
		kong.UsageOnError(),
	)

	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		kctx.FatalIfErrorf(err)
	}
	logger.Init(level, os.Stderr, cli.LogFormat)

	err = kctx.Run(&cli)
	kctx.FatalIfErrorf(err)
}
