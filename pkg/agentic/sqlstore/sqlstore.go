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

// Package sqlstore implements agentic.Store over database/sql, following
// the teacher's pkg/memory.SQLSessionService: one client-transaction-based
// gateway supporting sqlite, postgres, and mysql through dialect-switched
// placeholders, rather than stored procedures (spec.md §9 — client-side
// transactions keep the turn-write path portable across these three
// engines without a stored-procedure language per backend).
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kadirpekel/hector/pkg/agentic"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Store is a database/sql-backed agentic.Store.
type Store struct {
	db      *sql.DB
	dialect string
}

const (
	createSchemaTableSQL = `
CREATE TABLE IF NOT EXISTS agent_schemas (
    name VARCHAR(255) NOT NULL,
    kind VARCHAR(64) NOT NULL,
    json_schema TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (name, kind)
);
`
	createSessionTableSQL = `
CREATE TABLE IF NOT EXISTS agentic_sessions (
    id VARCHAR(255) PRIMARY KEY,
    name VARCHAR(255),
    agent_name VARCHAR(255) NOT NULL,
    mode VARCHAR(64) NOT NULL,
    user_id VARCHAR(255),
    metadata TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`
	createMessageTableSQL = `
CREATE TABLE IF NOT EXISTS agentic_messages (
    id VARCHAR(255) PRIMARY KEY,
    session_id VARCHAR(255) NOT NULL,
    message_type VARCHAR(64) NOT NULL,
    content TEXT,
    tool_calls TEXT,
    input_tokens INTEGER,
    output_tokens INTEGER,
    latency_ms BIGINT,
    model VARCHAR(255),
    agent_name VARCHAR(255),
    created_at TIMESTAMP NOT NULL,
    metadata TEXT
);

CREATE INDEX IF NOT EXISTS idx_agentic_messages_session ON agentic_messages(session_id, created_at);
`
	createMomentTableSQL = `
CREATE TABLE IF NOT EXISTS agentic_moments (
    id VARCHAR(255) PRIMARY KEY,
    user_id VARCHAR(255) NOT NULL,
    moment_type VARCHAR(64) NOT NULL,
    summary TEXT,
    topic_tags TEXT,
    emotion_tags TEXT,
    graph_edges TEXT,
    source_session_id VARCHAR(255),
    metadata TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_agentic_moments_user ON agentic_moments(user_id, created_at);
`
)

// Open opens a database/sql connection for one of "sqlite", "postgres", or
// "mysql" and ensures the agentic schema exists.
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case "sqlite", "postgres", "mysql":
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q (supported: sqlite, postgres, mysql)", driver)
	}
	driverName := driver
	if driverName == "sqlite" {
		driverName = "sqlite3"
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}
	s := &Store{db: db, dialect: driver}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	for _, stmt := range []string{createSchemaTableSQL, createSessionTableSQL, createMessageTableSQL, createMomentTableSQL} {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("sqlstore: init schema: %w", err)
		}
	}
	return nil
}

// placeholder returns the dialect-appropriate bind placeholder for
// position i (1-based), matching the teacher's dialect-switch pattern.
func (s *Store) placeholder(i int) string {
	if s.dialect == "postgres" {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

func (s *Store) Close() error {
	return s.db.Close()
}

// FetchSchema implements agentic.Store.
func (s *Store) FetchSchema(ctx context.Context, name, kind string) (*agentic.SchemaRow, error) {
	query := fmt.Sprintf(`SELECT json_schema FROM agent_schemas WHERE name = %s AND kind = %s`,
		s.placeholder(1), s.placeholder(2))
	var raw string
	err := s.db.QueryRowContext(ctx, query, name, kind).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: fetch schema: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("sqlstore: decode schema: %w", err)
	}
	return &agentic.SchemaRow{Name: name, Kind: kind, JSONSchema: m}, nil
}

// UpsertSchema implements agentic.Store, using INSERT-then-fallback-UPDATE
// since driver-portable upserts have no single ON CONFLICT syntax across
// sqlite/postgres/mysql.
func (s *Store) UpsertSchema(ctx context.Context, row agentic.SchemaRow) (*agentic.SchemaRow, error) {
	raw, err := json.Marshal(row.JSONSchema)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: encode schema: %w", err)
	}
	now := time.Now()

	updateQuery := fmt.Sprintf(`UPDATE agent_schemas SET json_schema = %s, updated_at = %s WHERE name = %s AND kind = %s`,
		s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4))
	res, err := s.db.ExecContext(ctx, updateQuery, string(raw), now, row.Name, row.Kind)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: update schema: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		insertQuery := fmt.Sprintf(`INSERT INTO agent_schemas (name, kind, json_schema, updated_at) VALUES (%s, %s, %s, %s)`,
			s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4))
		if _, err := s.db.ExecContext(ctx, insertQuery, row.Name, row.Kind, string(raw), now); err != nil {
			return nil, fmt.Errorf("sqlstore: insert schema: %w", err)
		}
	}
	return &row, nil
}

// FetchSession implements agentic.Store.
func (s *Store) FetchSession(ctx context.Context, id string) (*agentic.SessionRow, error) {
	query := fmt.Sprintf(`SELECT name, agent_name, mode, user_id, metadata FROM agentic_sessions WHERE id = %s`, s.placeholder(1))
	var name, agentName, mode, userID, metaRaw sql.NullString
	err := s.db.QueryRowContext(ctx, query, id).Scan(&name, &agentName, &mode, &userID, &metaRaw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: fetch session: %w", err)
	}
	meta := map[string]any{}
	if metaRaw.String != "" {
		if err := json.Unmarshal([]byte(metaRaw.String), &meta); err != nil {
			return nil, fmt.Errorf("sqlstore: decode session metadata: %w", err)
		}
	}
	return &agentic.SessionRow{
		ID: id, Name: name.String, AgentName: agentName.String,
		Mode: mode.String, UserID: userID.String, Metadata: meta,
	}, nil
}

// UpsertSession implements agentic.Store.
func (s *Store) UpsertSession(ctx context.Context, row agentic.SessionRow) (*agentic.SessionRow, error) {
	raw, err := json.Marshal(row.Metadata)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: encode session metadata: %w", err)
	}
	now := time.Now()

	updateQuery := fmt.Sprintf(`UPDATE agentic_sessions SET name = %s, agent_name = %s, mode = %s, user_id = %s, metadata = %s, updated_at = %s WHERE id = %s`,
		s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4), s.placeholder(5), s.placeholder(6), s.placeholder(7))
	res, err := s.db.ExecContext(ctx, updateQuery, row.Name, row.AgentName, row.Mode, row.UserID, string(raw), now, row.ID)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		insertQuery := fmt.Sprintf(`INSERT INTO agentic_sessions (id, name, agent_name, mode, user_id, metadata, updated_at) VALUES (%s, %s, %s, %s, %s, %s, %s)`,
			s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4), s.placeholder(5), s.placeholder(6), s.placeholder(7))
		if _, err := s.db.ExecContext(ctx, insertQuery, row.ID, row.Name, row.AgentName, row.Mode, row.UserID, string(raw), now); err != nil {
			return nil, fmt.Errorf("sqlstore: insert session: %w", err)
		}
	}
	return &row, nil
}

// FetchMessages implements agentic.Store, returning the most recent limit
// rows in chronological order.
func (s *Store) FetchMessages(ctx context.Context, sessionID string, limit int) ([]agentic.MessageRow, error) {
	if limit <= 0 {
		limit = 200
	}
	query := fmt.Sprintf(`SELECT id, message_type, content, tool_calls, input_tokens, output_tokens, latency_ms, model, agent_name, created_at, metadata
		FROM agentic_messages WHERE session_id = %s ORDER BY created_at DESC LIMIT %s`,
		s.placeholder(1), s.placeholder(2))
	rows, err := s.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: fetch messages: %w", err)
	}
	defer rows.Close()

	var result []agentic.MessageRow
	for rows.Next() {
		var r agentic.MessageRow
		var toolCallsRaw, metaRaw sql.NullString
		var inputTokens, outputTokens sql.NullInt64
		var latencyMS sql.NullInt64
		var model, agentName sql.NullString
		r.SessionID = sessionID
		if err := rows.Scan(&r.ID, &r.MessageType, &r.Content, &toolCallsRaw, &inputTokens, &outputTokens, &latencyMS, &model, &agentName, &r.CreatedAt, &metaRaw); err != nil {
			return nil, fmt.Errorf("sqlstore: scan message: %w", err)
		}
		r.Model = model.String
		r.AgentName = agentName.String
		if inputTokens.Valid {
			v := int(inputTokens.Int64)
			r.InputTokens = &v
		}
		if outputTokens.Valid {
			v := int(outputTokens.Int64)
			r.OutputTokens = &v
		}
		if latencyMS.Valid {
			v := latencyMS.Int64
			r.LatencyMS = &v
		}
		if toolCallsRaw.String != "" {
			var ref agentic.ToolCallRef
			if err := json.Unmarshal([]byte(toolCallsRaw.String), &ref); err == nil {
				r.ToolCalls = &ref
			}
		}
		if metaRaw.String != "" {
			_ = json.Unmarshal([]byte(metaRaw.String), &r.Metadata)
		}
		result = append(result, r)
	}

	// reverse to chronological order
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result, rows.Err()
}

// PersistTurn implements agentic.Store: all rows for a turn are written in
// one client-side transaction so a mid-turn crash leaves no partial turn
// visible (spec.md §5, §9).
func (s *Store) PersistTurn(ctx context.Context, sessionID string, rows []agentic.MessageRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	insertQuery := fmt.Sprintf(`INSERT INTO agentic_messages
		(id, session_id, message_type, content, tool_calls, input_tokens, output_tokens, latency_ms, model, agent_name, created_at, metadata)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4), s.placeholder(5),
		s.placeholder(6), s.placeholder(7), s.placeholder(8), s.placeholder(9), s.placeholder(10),
		s.placeholder(11), s.placeholder(12))

	for _, row := range rows {
		var toolCallsRaw, metaRaw string
		if row.ToolCalls != nil {
			b, mErr := json.Marshal(row.ToolCalls)
			if mErr != nil {
				err = fmt.Errorf("sqlstore: encode tool_calls: %w", mErr)
				return err
			}
			toolCallsRaw = string(b)
		}
		if row.Metadata != nil {
			b, mErr := json.Marshal(row.Metadata)
			if mErr != nil {
				err = fmt.Errorf("sqlstore: encode metadata: %w", mErr)
				return err
			}
			metaRaw = string(b)
		}
		if _, execErr := tx.ExecContext(ctx, insertQuery,
			row.ID, sessionID, row.MessageType, row.Content, nullableString(toolCallsRaw),
			row.InputTokens, row.OutputTokens, row.LatencyMS, row.Model, row.AgentName,
			row.CreatedAt, nullableString(metaRaw),
		); execErr != nil {
			err = fmt.Errorf("sqlstore: insert message: %w", execErr)
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: commit transaction: %w", err)
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// MergeMetadata implements agentic.Store: a read-modify-write merge inside
// a transaction, since the three supported dialects have no common
// JSON-patch operator (spec.md §6 merge_metadata).
func (s *Store) MergeMetadata(ctx context.Context, entity agentic.Entity, patch map[string]any) (map[string]any, error) {
	table := "agentic_sessions"
	idCol := "id"
	if entity.Kind == "user" {
		table = "agentic_user_metadata"
		idCol = "user_id"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if entity.Kind == "user" {
		if _, execErr := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS agentic_user_metadata (user_id VARCHAR(255) PRIMARY KEY, metadata TEXT NOT NULL)`); execErr != nil {
			err = fmt.Errorf("sqlstore: ensure user metadata table: %w", execErr)
			return nil, err
		}
	}

	query := fmt.Sprintf(`SELECT metadata FROM %s WHERE %s = %s`, table, idCol, s.placeholder(1))
	var raw sql.NullString
	scanErr := tx.QueryRowContext(ctx, query, entity.ID).Scan(&raw)
	current := map[string]any{}
	if scanErr != nil && scanErr != sql.ErrNoRows {
		err = fmt.Errorf("sqlstore: read metadata: %w", scanErr)
		return nil, err
	}
	if scanErr == nil && raw.String != "" {
		if jErr := json.Unmarshal([]byte(raw.String), &current); jErr != nil {
			err = fmt.Errorf("sqlstore: decode metadata: %w", jErr)
			return nil, err
		}
	}
	for k, v := range patch {
		current[k] = v
	}

	merged, mErr := json.Marshal(current)
	if mErr != nil {
		err = fmt.Errorf("sqlstore: encode merged metadata: %w", mErr)
		return nil, err
	}

	if scanErr == sql.ErrNoRows {
		insertQuery := fmt.Sprintf(`INSERT INTO %s (%s, metadata) VALUES (%s, %s)`, table, idCol, s.placeholder(1), s.placeholder(2))
		if _, execErr := tx.ExecContext(ctx, insertQuery, entity.ID, string(merged)); execErr != nil {
			err = fmt.Errorf("sqlstore: insert metadata: %w", execErr)
			return nil, err
		}
	} else {
		updateQuery := fmt.Sprintf(`UPDATE %s SET metadata = %s WHERE %s = %s`, table, s.placeholder(1), idCol, s.placeholder(2))
		if _, execErr := tx.ExecContext(ctx, updateQuery, string(merged), entity.ID); execErr != nil {
			err = fmt.Errorf("sqlstore: update metadata: %w", execErr)
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlstore: commit transaction: %w", err)
	}
	return current, nil
}

// SaveMoment implements agentic.Store.
func (s *Store) SaveMoment(ctx context.Context, m agentic.Moment) (*agentic.Moment, error) {
	topicTags, _ := json.Marshal(m.TopicTags)
	emotionTags, _ := json.Marshal(m.EmotionTags)
	graphEdges, _ := json.Marshal(m.GraphEdges)
	metadata, _ := json.Marshal(m.Metadata)

	insertQuery := fmt.Sprintf(`INSERT INTO agentic_moments
		(id, user_id, moment_type, summary, topic_tags, emotion_tags, graph_edges, source_session_id, metadata, created_at)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4), s.placeholder(5),
		s.placeholder(6), s.placeholder(7), s.placeholder(8), s.placeholder(9), s.placeholder(10))

	if _, err := s.db.ExecContext(ctx, insertQuery,
		m.ID, m.UserID, m.MomentType, m.Summary, string(topicTags), string(emotionTags),
		string(graphEdges), m.SourceSessionID, string(metadata), m.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("sqlstore: save moment: %w", err)
	}
	return &m, nil
}

// FetchMoments implements agentic.Store, newest first.
func (s *Store) FetchMoments(ctx context.Context, userID string, limit int) ([]agentic.Moment, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT id, moment_type, summary, topic_tags, emotion_tags, graph_edges, source_session_id, metadata, created_at
		FROM agentic_moments WHERE user_id = %s ORDER BY created_at DESC LIMIT %s`, s.placeholder(1), s.placeholder(2))
	return s.scanMoments(ctx, query, userID, limit)
}

// SearchMoments implements agentic.Store with a portable LIKE-based
// fallback; a vector-backed implementation (chromem-go, qdrant, pinecone)
// can satisfy the same interface as an alternative Store.
func (s *Store) SearchMoments(ctx context.Context, userID, query string, limit int) ([]agentic.Moment, error) {
	if limit <= 0 {
		limit = 50
	}
	sqlQuery := fmt.Sprintf(`SELECT id, moment_type, summary, topic_tags, emotion_tags, graph_edges, source_session_id, metadata, created_at
		FROM agentic_moments WHERE user_id = %s AND summary LIKE %s ORDER BY created_at DESC LIMIT %s`,
		s.placeholder(1), s.placeholder(2), s.placeholder(3))
	return s.scanMoments(ctx, sqlQuery, userID, "%"+query+"%", limit)
}

func (s *Store) scanMoments(ctx context.Context, query string, args ...any) ([]agentic.Moment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: query moments: %w", err)
	}
	defer rows.Close()

	var result []agentic.Moment
	for rows.Next() {
		var m agentic.Moment
		var topicTags, emotionTags, graphEdges, metaRaw, sourceSessionID sql.NullString
		if err := rows.Scan(&m.ID, &m.MomentType, &m.Summary, &topicTags, &emotionTags, &graphEdges, &sourceSessionID, &metaRaw, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlstore: scan moment: %w", err)
		}
		m.SourceSessionID = sourceSessionID.String
		_ = json.Unmarshal([]byte(topicTags.String), &m.TopicTags)
		_ = json.Unmarshal([]byte(emotionTags.String), &m.EmotionTags)
		_ = json.Unmarshal([]byte(graphEdges.String), &m.GraphEdges)
		if metaRaw.String != "" {
			_ = json.Unmarshal([]byte(metaRaw.String), &m.Metadata)
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

var _ agentic.Store = (*Store)(nil)
