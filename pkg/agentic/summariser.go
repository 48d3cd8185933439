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
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Summarizer compresses a window of a session's messages into a durable
// Moment (spec.md §4.10); the concrete implementation is typically a
// ModelRuntime-backed prompt, but the interface stays narrow so tests can
// supply a deterministic fake.
type Summarizer interface {
	Summarize(ctx context.Context, sessionID string, rows []MessageRow) (Moment, error)
}

// BackgroundSummariser periodically compresses old session chunks into
// Moment rows with graph edges, off the request path (spec.md §4.10). It
// runs a bounded pool of workers pulling session IDs from a channel,
// following the teacher's errgroup-based concurrency idiom.
type BackgroundSummariser struct {
	Store      Store
	Summarizer Summarizer
	Workers    int
}

// NewBackgroundSummariser constructs a summariser with a default worker
// count if workers <= 0.
func NewBackgroundSummariser(store Store, summarizer Summarizer, workers int) *BackgroundSummariser {
	if workers <= 0 {
		workers = 4
	}
	return &BackgroundSummariser{Store: store, Summarizer: summarizer, Workers: workers}
}

// Run drains sessionIDs, summarising each session's recent messages into
// a Moment, until the channel closes or ctx is cancelled. Failures on one
// session are logged and do not abort the others (spec.md §7: background
// work degrades, it does not propagate into the request path).
func (b *BackgroundSummariser) Run(ctx context.Context, sessionIDs <-chan string) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < b.Workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case sessionID, ok := <-sessionIDs:
					if !ok {
						return nil
					}
					if err := b.summarizeOne(ctx, sessionID); err != nil {
						slog.Warn("agentic: background summarisation failed", "session_id", sessionID, "error", err)
					}
				}
			}
		})
	}
	return g.Wait()
}

func (b *BackgroundSummariser) summarizeOne(ctx context.Context, sessionID string) error {
	rows, err := b.Store.FetchMessages(ctx, sessionID, 0)
	if err != nil {
		return NewError(KindStoreError, "BackgroundSummariser", "summarizeOne", "fetch messages failed", err)
	}
	if len(rows) == 0 {
		return nil
	}

	moment, err := b.Summarizer.Summarize(ctx, sessionID, rows)
	if err != nil {
		return NewError(KindModelError, "BackgroundSummariser", "summarizeOne", "summarization failed", err)
	}
	if moment.ID == "" {
		moment.ID = uuid.NewString()
	}
	moment.MomentType = MomentTypeSessionChunk
	moment.SourceSessionID = sessionID

	if _, err := b.Store.SaveMoment(ctx, moment); err != nil {
		return NewError(KindStoreError, "BackgroundSummariser", "summarizeOne", "save moment failed", err)
	}
	return nil
}
