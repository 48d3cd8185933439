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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/kadirpekel/hector/pkg/agentic"
)

// DemoServer exposes a minimal HTTP surface over the agentic core: schema
// lookup and an SSE turn stream driving a real TurnExecutor. It exists to
// exercise AgentRegistry, TurnExecutor, SessionLocks, and the
// StreamMultiplexer's wire-facing event vocabulary end-to-end; it is not
// the production transport (spec.md §6 leaves the wire envelope to the
// outer layer).
type DemoServer struct {
	router   chi.Router
	registry *agentic.AgentRegistry
	store    agentic.Store
	model    agentic.ModelRuntime
	tools    map[string]agentic.Tool
	locks    *agentic.SessionLocks
}

// NewDemoServer builds the router. model may be nil, in which case the
// stream endpoint still exercises schema resolution and SessionLocks but
// answers 503 Service Unavailable instead of opening the event stream.
func NewDemoServer(registry *agentic.AgentRegistry, store agentic.Store, model agentic.ModelRuntime, tools map[string]agentic.Tool) *DemoServer {
	s := &DemoServer{registry: registry, store: store, model: model, tools: tools, locks: agentic.NewSessionLocks()}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Get("/agents/{name}", s.handleGetSchema)
	r.Get("/agents/{name}/stream", s.handleStream)
	s.router = r

	return s
}

// ListenAndServe starts the HTTP server and blocks until ctx is cancelled.
func (s *DemoServer) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: s.router}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *DemoServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *DemoServer) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	schema, err := s.registry.Resolve(r.Context(), name)
	if agentic.IsKind(err, agentic.KindAgentNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(schema.ToDocument())
}

// handleStream drives one real TurnExecutor turn and relays its events over
// SSE, named events mirroring original_source's format_sse_event/format_done.
// The wire serialisation stays here rather than in the agentic package
// itself, since that envelope is the outer layer's concern (spec.md §6).
func (s *DemoServer) handleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")
	schema, err := s.registry.Resolve(ctx, name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if !s.locks.TryAcquire(sessionID) {
		http.Error(w, agentic.NewError(agentic.KindSessionBusy, "DemoServer", "handleStream", "a turn is already running for this session", nil).Error(), http.StatusConflict)
		return
	}
	defer s.locks.Release(sessionID)

	message := r.URL.Query().Get("message")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	if s.model == nil {
		http.Error(w, "no model runtime configured", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	rows, err := s.store.FetchMessages(ctx, sessionID, 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	var codec agentic.MessageHistoryCodec
	history := codec.Reconstruct(rows)

	executor := agentic.NewTurnExecutor(s.model, s.tools, schema.CompileUsageLimits())
	mux := agentic.NewStreamMultiplexer(16)
	primary := make(chan agentic.StreamEvent, 16)
	mux.AddSource(ctx, primary)

	// RunCollect runs the turn exactly once; its rows are both persisted
	// and replayed onto the primary stream source, rather than calling Run
	// a second time (which would re-invoke the model and every tool call).
	go func() {
		defer close(primary)
		turnRows, turnErr := executor.RunCollect(ctx, agentic.TurnInput{
			Schema: schema, Session: &agentic.SessionRow{ID: sessionID}, History: history, UserText: message,
		})
		if turnErr != nil {
			primary <- agentic.StreamEvent{Kind: agentic.StreamEventError, Err: turnErr}
			return
		}
		for _, row := range turnRows {
			primary <- rowToStreamEvent(row)
		}
		if err := s.store.PersistTurn(ctx, sessionID, turnRows); err != nil {
			primary <- agentic.StreamEvent{Kind: agentic.StreamEventError, Err: err}
		}
	}()
	mux.CloseWhenDone()

	for ev := range mux.Out() {
		writeSSEEvent(w, &ev)
		flusher.Flush()
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// rowToStreamEvent replays a persisted MessageRow as the StreamEvent an SSE
// client would have seen had it been present for the live turn, so the demo
// endpoint can persist-then-replay instead of running the turn twice.
func rowToStreamEvent(row agentic.MessageRow) agentic.StreamEvent {
	switch row.MessageType {
	case agentic.MessageTypeToolCall:
		return agentic.StreamEvent{Kind: agentic.StreamEventToolCall, Tool: row.ToolCalls}
	case agentic.MessageTypeToolResponse:
		return agentic.StreamEvent{Kind: agentic.StreamEventToolResult, Text: row.Content, Tool: row.ToolCalls}
	default:
		return agentic.StreamEvent{Kind: agentic.StreamEventContent, Text: row.Content}
	}
}

func writeSSEEvent(w http.ResponseWriter, ev *agentic.StreamEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, payload)
}
