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

package tools

import (
	"context"
	"testing"

	"github.com/kadirpekel/hector/pkg/agentic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is a minimal in-memory agentic.Store for this package's tests.
type fakeStore struct {
	moments  map[string][]agentic.Moment
	userMeta map[string]map[string]any
}

func newFakeStore() *fakeStore {
	return &fakeStore{moments: map[string][]agentic.Moment{}, userMeta: map[string]map[string]any{}}
}

func (f *fakeStore) FetchSchema(context.Context, string, string) (*agentic.SchemaRow, error) { return nil, nil }
func (f *fakeStore) UpsertSchema(context.Context, agentic.SchemaRow) (*agentic.SchemaRow, error) {
	return nil, nil
}
func (f *fakeStore) FetchSession(context.Context, string) (*agentic.SessionRow, error) { return nil, nil }
func (f *fakeStore) UpsertSession(context.Context, agentic.SessionRow) (*agentic.SessionRow, error) {
	return nil, nil
}
func (f *fakeStore) FetchMessages(context.Context, string, int) ([]agentic.MessageRow, error) {
	return nil, nil
}
func (f *fakeStore) PersistTurn(context.Context, string, []agentic.MessageRow) error { return nil }

func (f *fakeStore) MergeMetadata(_ context.Context, entity agentic.Entity, patch map[string]any) (map[string]any, error) {
	current, ok := f.userMeta[entity.ID]
	if !ok {
		current = map[string]any{}
	}
	for k, v := range patch {
		current[k] = v
	}
	f.userMeta[entity.ID] = current
	return current, nil
}

func (f *fakeStore) SaveMoment(_ context.Context, m agentic.Moment) (*agentic.Moment, error) {
	f.moments[m.UserID] = append(f.moments[m.UserID], m)
	return &m, nil
}

func (f *fakeStore) FetchMoments(_ context.Context, userID string, limit int) ([]agentic.Moment, error) {
	rows := f.moments[userID]
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (f *fakeStore) SearchMoments(_ context.Context, userID, query string, limit int) ([]agentic.Moment, error) {
	return f.FetchMoments(context.Background(), userID, limit)
}

var _ agentic.Store = (*fakeStore)(nil)

func TestSaveMomentsTool_PrefixesNameAndBuildsGraphEdges(t *testing.T) {
	store := newFakeStore()
	tool := &SaveMomentsTool{Store: store, UserID: "u1"}

	result, err := tool.Invoke(context.Background(), map[string]any{
		"moments": []any{
			map[string]any{
				"name":    "flight",
				"summary": "flew over mountains",
				"affinity_fragments": []any{
					map[string]any{"target": "mountains", "relation": "dream_affinity", "weight": 0.8},
				},
			},
		},
	})
	require.NoError(t, err)

	out := result.(map[string]any)
	assert.Equal(t, 1, out["moments_count"])

	saved := store.moments["u1"]
	require.Len(t, saved, 1)
	assert.Equal(t, agentic.MomentTypeDream, saved[0].MomentType)
	assert.Equal(t, "dream-flight", saved[0].Metadata["name"])
	require.Len(t, saved[0].GraphEdges, 1)
	assert.Equal(t, "mountains", saved[0].GraphEdges[0].Target)
}

func TestGetMomentsTool_ClampsLimitAndReportsHasMore(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 5; i++ {
		store.moments["u1"] = append(store.moments["u1"], agentic.Moment{ID: string(rune('a' + i)), UserID: "u1"})
	}
	tool := &GetMomentsTool{Store: store, UserID: "u1"}

	result, err := tool.Invoke(context.Background(), map[string]any{"limit": float64(2)})
	require.NoError(t, err)
	out := result.(map[string]any)
	assert.Equal(t, 2, out["count"])
	assert.Equal(t, true, out["has_more"])
}

func TestSearchTool_RequiresQuery(t *testing.T) {
	tool := &SearchTool{Store: newFakeStore(), UserID: "u1"}
	_, err := tool.Invoke(context.Background(), map[string]any{})
	require.Error(t, err)
}

func TestUpdateUserMetadataTool_MergesPatch(t *testing.T) {
	store := newFakeStore()
	tool := &UpdateUserMetadataTool{Store: store, UserID: "u1"}

	result, err := tool.Invoke(context.Background(), map[string]any{
		"metadata": map[string]any{"preference": "dark_mode"},
	})
	require.NoError(t, err)
	out := result.(map[string]any)
	assert.Equal(t, "success", out["status"])
	assert.Equal(t, "dark_mode", store.userMeta["u1"]["preference"])
}

func TestUpdateUserMetadataTool_RequiresUserID(t *testing.T) {
	tool := &UpdateUserMetadataTool{Store: newFakeStore()}
	result, err := tool.Invoke(context.Background(), map[string]any{"metadata": map[string]any{"a": 1}})
	require.NoError(t, err)
	out := result.(map[string]any)
	assert.Equal(t, "error", out["status"])
}
