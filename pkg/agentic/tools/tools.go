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

// Package tools provides the built-in agentic.Tool implementations
// grounded on original_source/p8/api/tools: ask_agent (delegation),
// save_moments (chained-tool target for the dreaming agent), get_moments
// and search (retrieval), and update_user_metadata (merge_metadata
// exerciser).
package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kadirpekel/hector/pkg/agentic"
)

// requireString extracts a required string argument.
func requireString(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	return s, nil
}

func stringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// SaveMomentsTool persists dream moments, storing each moment's
// affinity_fragments as its GraphEdges, grounded on save_moments.py. The
// related entities the edges point at are not updated.
type SaveMomentsTool struct {
	Store  agentic.Store
	UserID string
}

func (t *SaveMomentsTool) Name() string        { return "save_moments" }
func (t *SaveMomentsTool) Description() string { return "Save dream moments with graph edges derived from their affinity fragments." }
func (t *SaveMomentsTool) Parameters() map[string]any {
	return map[string]any{
		"moments": map[string]any{
			"type":        "array",
			"description": "List of moment definitions: name, summary, topic_tags, emotion_tags, affinity_fragments.",
		},
	}
}

func (t *SaveMomentsTool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	rawMoments, ok := args["moments"].([]any)
	if !ok {
		return nil, fmt.Errorf("save_moments: moments argument must be an array")
	}

	var savedIDs []string
	for _, rm := range rawMoments {
		m, ok := rm.(map[string]any)
		if !ok {
			continue
		}

		name, _ := m["name"].(string)
		if name == "" {
			name = "unnamed"
		}
		if !strings.HasPrefix(name, "dream-") {
			name = "dream-" + name
		}

		var edges []agentic.GraphEdge
		if affinities, ok := m["affinity_fragments"].([]any); ok {
			for _, raw := range affinities {
				af, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				target, _ := af["target"].(string)
				if target == "" {
					continue
				}
				relation, _ := af["relation"].(string)
				if relation == "" {
					relation = "dream_affinity"
				}
				weight := 0.5
				if w, ok := af["weight"].(float64); ok {
					weight = w
				}
				reason, _ := af["reason"].(string)
				edges = append(edges, agentic.GraphEdge{Target: target, Relation: relation, Weight: weight, Reason: reason})
			}
		}

		moment := agentic.Moment{
			ID:          uuid.NewString(),
			UserID:      t.UserID,
			MomentType:  agentic.MomentTypeDream,
			Summary:     fmt.Sprintf("%v", m["summary"]),
			TopicTags:   stringSlice(m["topic_tags"]),
			EmotionTags: stringSlice(m["emotion_tags"]),
			GraphEdges:  edges,
			Metadata:    map[string]any{"source": "dreaming", "name": name},
		}

		saved, err := t.Store.SaveMoment(ctx, moment)
		if err != nil {
			return nil, fmt.Errorf("save_moments: %w", err)
		}
		savedIDs = append(savedIDs, saved.ID)
	}

	return map[string]any{
		"status":           "success",
		"saved_moment_ids": savedIDs,
		"moments_count":    len(savedIDs),
	}, nil
}

// GetMomentsTool pages through a user's moments with limit/offset,
// grounded on get_moments.py; it does not filter by type or date.
type GetMomentsTool struct {
	Store  agentic.Store
	UserID string
}

func (t *GetMomentsTool) Name() string        { return "get_moments" }
func (t *GetMomentsTool) Description() string { return "Query moments with limit/offset pagination." }
func (t *GetMomentsTool) Parameters() map[string]any {
	return map[string]any{
		"limit":  map[string]any{"type": "integer", "description": "Max results (1-100, default 20)."},
		"offset": map[string]any{"type": "integer", "description": "Pagination offset."},
	}
}

func (t *GetMomentsTool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	limit := 20
	if v, ok := args["limit"].(float64); ok {
		limit = int(v)
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if v, ok := args["offset"].(float64); ok && v > 0 {
		offset = int(v)
	}

	moments, err := t.Store.FetchMoments(ctx, t.UserID, offset+limit+1)
	if err != nil {
		return nil, fmt.Errorf("get_moments: %w", err)
	}
	if offset >= len(moments) {
		moments = nil
	} else {
		moments = moments[offset:]
	}
	hasMore := len(moments) > limit
	if hasMore {
		moments = moments[:limit]
	}
	return map[string]any{
		"status":   "success",
		"results":  moments,
		"count":    len(moments),
		"limit":    limit,
		"has_more": hasMore,
	}, nil
}

// SearchTool runs a text query against stored moments, grounded on
// search.py's retrieval role (the LIKE-based fallback; a vector-backed
// Store can satisfy the same call without this tool changing).
type SearchTool struct {
	Store  agentic.Store
	UserID string
}

func (t *SearchTool) Name() string        { return "search" }
func (t *SearchTool) Description() string { return "Search the knowledge base for moments matching a query." }
func (t *SearchTool) Parameters() map[string]any {
	return map[string]any{
		"query": map[string]any{"type": "string", "description": "Free-text search query."},
		"limit": map[string]any{"type": "integer", "description": "Max results, default 20."},
	}
}

func (t *SearchTool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	query, err := requireString(args, "query")
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	limit := 20
	if v, ok := args["limit"].(float64); ok {
		limit = int(v)
	}

	results, err := t.Store.SearchMoments(ctx, t.UserID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return map[string]any{"status": "success", "results": results, "count": len(results)}, nil
}

// UpdateUserMetadataTool performs a shallow JSON merge onto a user's
// metadata, grounded on update_user_metadata.py.
type UpdateUserMetadataTool struct {
	Store  agentic.Store
	UserID string
}

func (t *UpdateUserMetadataTool) Name() string        { return "update_user_metadata" }
func (t *UpdateUserMetadataTool) Description() string { return "Merge structured metadata into the current user's profile." }
func (t *UpdateUserMetadataTool) Parameters() map[string]any {
	return map[string]any{
		"metadata": map[string]any{"type": "object", "description": "Fields to merge into user metadata."},
	}
}

func (t *UpdateUserMetadataTool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	if t.UserID == "" {
		return map[string]any{"status": "error", "error": "user_id is required"}, nil
	}
	patch, ok := args["metadata"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("update_user_metadata: metadata argument must be an object")
	}

	merged, err := t.Store.MergeMetadata(ctx, agentic.Entity{Kind: "user", ID: t.UserID}, patch)
	if err != nil {
		return nil, fmt.Errorf("update_user_metadata: %w", err)
	}
	return map[string]any{"status": "success", "metadata": merged}, nil
}
