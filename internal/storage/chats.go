// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/loomchat/internal/model"
	"github.com/jeranaias/loomchat/internal/wire"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrChatNotFound = errors.New("chat not found")
	ErrInvalidPath  = errors.New("invalid database path")
)

// =============================================================================
// SCHEMA
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS chats (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL DEFAULT '',
	last_message TEXT NOT NULL DEFAULT '',
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id     TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
	role        TEXT NOT NULL,
	content     TEXT NOT NULL,
	attachments TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, id);
CREATE INDEX IF NOT EXISTS idx_chats_updated ON chats(updated_at DESC);
`

// =============================================================================
// CHAT STORE
// =============================================================================

// ChatSummary is a row in the chat list.
type ChatSummary struct {
	ID          string
	Title       string
	LastMessage string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ChatStore persists chats and their messages in a local SQLite database.
type ChatStore struct {
	db *sql.DB
}

// DefaultPath returns the default database location (~/.loomchat/chats.db).
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	return filepath.Join(home, ".loomchat", "chats.db"), nil
}

// Open opens (creating if needed) the chat database at path.
func Open(path string) (*ChatStore, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &ChatStore{db: db}, nil
}

// Close closes the underlying database.
func (s *ChatStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// CHATS
// =============================================================================

// CreateChat inserts a new chat row. The id is caller-supplied (a UUID).
func (s *ChatStore) CreateChat(ctx context.Context, id, title string) error {
	now := time.Now().UnixMilli()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (id, title, last_message, created_at, updated_at) VALUES (?, ?, '', ?, ?)`,
		id, title, now, now)
	if err != nil {
		return fmt.Errorf("create chat: %w", err)
	}
	return nil
}

// UpdateChatLast refreshes a chat's preview line and bumps its updated
// time. An empty title leaves the existing title untouched. The chat row
// is created on demand so a preview write never races chat creation.
func (s *ChatStore) UpdateChatLast(ctx context.Context, chatID, lastMessage, title string) error {
	now := time.Now().UnixMilli()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chats (id, title, last_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_message = excluded.last_message,
			title = CASE WHEN excluded.title != '' THEN excluded.title ELSE chats.title END,
			updated_at = excluded.updated_at`,
		chatID, title, lastMessage, now, now)
	if err != nil {
		return fmt.Errorf("update chat: %w", err)
	}
	return nil
}

// ListChats returns all chats, most recently updated first.
func (s *ChatStore) ListChats(ctx context.Context) ([]ChatSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, last_message, created_at, updated_at FROM chats ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var chats []ChatSummary
	for rows.Next() {
		var c ChatSummary
		var created, updated int64
		if err := rows.Scan(&c.ID, &c.Title, &c.LastMessage, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		c.CreatedAt = time.UnixMilli(created)
		c.UpdatedAt = time.UnixMilli(updated)
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// DeleteChat removes a chat and all of its messages.
func (s *ChatStore) DeleteChat(ctx context.Context, chatID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, chatID)
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrChatNotFound
	}
	return nil
}

// =============================================================================
// MESSAGES
// =============================================================================

// AppendMessage appends a message to a chat and returns its row id. The
// chat row is created on demand so message writes never race chat
// creation.
func (s *ChatStore) AppendMessage(ctx context.Context, chatID string, role model.Role, content string, attachments []model.Attachment) (int64, error) {
	now := time.Now().UnixMilli()

	var attachJSON string
	if len(attachments) > 0 {
		b, err := json.Marshal(attachments)
		if err != nil {
			return 0, fmt.Errorf("encode attachments: %w", err)
		}
		attachJSON = string(b)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chats (id, title, last_message, created_at, updated_at)
		VALUES (?, '', '', ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		chatID, now, now)
	if err != nil {
		return 0, fmt.Errorf("ensure chat: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (chat_id, role, content, attachments, created_at) VALUES (?, ?, ?, ?, ?)`,
		chatID, string(role), content, attachJSON, now)
	if err != nil {
		return 0, fmt.Errorf("append message: %w", err)
	}
	return res.LastInsertId()
}

// ListMessages returns a chat's messages in insertion order, with any
// embedded run-metadata blocks in assistant content decoded back into
// message metadata.
func (s *ChatStore) ListMessages(ctx context.Context, chatID string) ([]model.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, attachments, created_at FROM messages WHERE chat_id = ? ORDER BY id ASC`,
		chatID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []model.ChatMessage
	for rows.Next() {
		var (
			serverID   int64
			role       string
			content    string
			attachJSON string
			created    int64
		)
		if err := rows.Scan(&serverID, &role, &content, &attachJSON, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}

		msg := model.ChatMessage{
			ID:        fmt.Sprintf("db-%d", serverID),
			ServerID:  serverID,
			Role:      model.Role(role),
			Text:      content,
			Finalized: true,
			Timestamp: time.UnixMilli(created),
		}

		if attachJSON != "" {
			if err := json.Unmarshal([]byte(attachJSON), &msg.Attachments); err != nil {
				return nil, fmt.Errorf("decode attachments: %w", err)
			}
		}

		// Stored assistant turns carry metadata inline in the wire
		// format; split it back out for display.
		if msg.Role == model.RoleAssistant {
			ext := wire.ExtractRunMeta(content)
			msg.Text = ext.Clean
			if ext.Meta != nil {
				msg.Meta = &model.MessageMeta{RunJSON: ext.Meta, Flat: ext.Flat}
			}
		}

		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}
