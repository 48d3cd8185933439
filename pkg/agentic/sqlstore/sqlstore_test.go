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

package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/kadirpekel/hector/pkg/agentic"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_SchemaUpsertAndFetch(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.UpsertSchema(ctx, agentic.SchemaRow{Name: "assistant", Kind: "agent", JSONSchema: map[string]any{"name": "assistant"}})
	require.NoError(t, err)

	row, err := store.FetchSchema(ctx, "assistant", "agent")
	require.NoError(t, err)
	require.NotNil(t, row)
	require.Equal(t, "assistant", row.JSONSchema["name"])

	_, err = store.UpsertSchema(ctx, agentic.SchemaRow{Name: "assistant", Kind: "agent", JSONSchema: map[string]any{"name": "assistant", "model": "gpt"}})
	require.NoError(t, err)
	row, err = store.FetchSchema(ctx, "assistant", "agent")
	require.NoError(t, err)
	require.Equal(t, "gpt", row.JSONSchema["model"])
}

func TestStore_PersistTurnIsAtomicAndOrdered(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	rows := []agentic.MessageRow{
		{ID: "m1", MessageType: agentic.MessageTypeUser, Content: "hi", CreatedAt: now},
		{ID: "m2", MessageType: agentic.MessageTypeAssistant, Content: "hello", CreatedAt: now.Add(time.Second)},
	}
	require.NoError(t, store.PersistTurn(ctx, "s1", rows))

	fetched, err := store.FetchMessages(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, fetched, 2)
	require.Equal(t, "hi", fetched[0].Content)
	require.Equal(t, "hello", fetched[1].Content)
}

func TestStore_MergeMetadataForUser(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	merged, err := store.MergeMetadata(ctx, agentic.Entity{Kind: "user", ID: "u1"}, map[string]any{"preference": "dark_mode"})
	require.NoError(t, err)
	require.Equal(t, "dark_mode", merged["preference"])

	merged, err = store.MergeMetadata(ctx, agentic.Entity{Kind: "user", ID: "u1"}, map[string]any{"locale": "en"})
	require.NoError(t, err)
	require.Equal(t, "dark_mode", merged["preference"])
	require.Equal(t, "en", merged["locale"])
}

func TestStore_SaveAndSearchMoments(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.SaveMoment(ctx, agentic.Moment{
		ID: "mo1", UserID: "u1", MomentType: agentic.MomentTypeDream,
		Summary: "dreamed about flying over mountains", CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	found, err := store.SearchMoments(ctx, "u1", "flying", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "mo1", found[0].ID)

	all, err := store.FetchMoments(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, all, 1)
}
