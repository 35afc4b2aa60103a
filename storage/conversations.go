package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"spritebot/model"
)

// DefaultHistoryLimit is the number of messages kept per channel.
const DefaultHistoryLimit = 100

// ConversationStore persists per-channel conversation history in SQLite.
// Each channel keeps at most limit messages; older ones are trimmed in the
// same transaction as the append.
type ConversationStore struct {
	db    *sql.DB
	limit int
}

func NewConversationStore(dbPath string, limit int) (*ConversationStore, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer keeps concurrent appends from tripping SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &ConversationStore{db: db, limit: limit}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

func (cs *ConversationStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		channel_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel_id, seq);
	`

	if _, err := cs.db.Exec(schema); err != nil {
		return err
	}

	if err := cs.migrateSchema(); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	return nil
}

// migrateSchema adds the tool columns to databases created before tool
// results were persisted.
func (cs *ConversationStore) migrateSchema() error {
	for _, col := range []string{"tool_name", "tool_result"} {
		exists, err := cs.columnExists("messages", col)
		if err != nil {
			return fmt.Errorf("failed to check for %s column: %w", col, err)
		}

		switch {
		case !exists:
			if _, err := cs.db.Exec(fmt.Sprintf(`ALTER TABLE messages ADD COLUMN %s TEXT DEFAULT ''`, col)); err != nil {
				return fmt.Errorf("failed to add %s column: %w", col, err)
			}
		}
	}
	return nil
}

// columnExists checks if a column exists in a table using PRAGMA table_info
func (cs *ConversationStore) columnExists(tableName, columnName string) (bool, error) {
	rows, err := cs.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name string
		var dataType string
		var notNull int
		var defaultValue any
		var pk int

		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return false, err
		}
		if name == columnName {
			return true, nil
		}
	}

	return false, rows.Err()
}

// Append stores msg at the end of the channel's history and trims the
// channel back to the configured limit. An empty ID or zero timestamp is
// filled in.
func (cs *ConversationStore) Append(ctx context.Context, channelID string, msg model.ConversationMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	var toolResult string
	if msg.ToolResult != nil {
		data, err := json.Marshal(msg.ToolResult)
		if err != nil {
			return fmt.Errorf("failed to marshal tool result: %w", err)
		}
		toolResult = string(data)
	}

	tx, err := cs.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO messages (id, channel_id, role, content, created_at, tool_name, tool_result)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		msg.ID,
		channelID,
		string(msg.Role),
		msg.Content,
		msg.Timestamp.UTC(),
		msg.ToolName,
		toolResult,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
	DELETE FROM messages
	WHERE channel_id = ? AND seq NOT IN (
		SELECT seq FROM messages WHERE channel_id = ? ORDER BY seq DESC LIMIT ?
	)
	`, channelID, channelID, cs.limit)
	if err != nil {
		return fmt.Errorf("failed to trim history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit message: %w", err)
	}
	return nil
}

// Read returns the most recent limit messages of a channel, oldest first.
func (cs *ConversationStore) Read(ctx context.Context, channelID string, limit int) ([]model.ConversationMessage, error) {
	if limit <= 0 {
		limit = cs.limit
	}

	rows, err := cs.db.QueryContext(ctx, `
	SELECT id, role, content, created_at, tool_name, tool_result
	FROM messages
	WHERE channel_id = ?
	ORDER BY seq DESC
	LIMIT ?
	`, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var messages []model.ConversationMessage
	for rows.Next() {
		var (
			msg        model.ConversationMessage
			role       string
			toolName   sql.NullString
			toolResult sql.NullString
		)
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &msg.Timestamp, &toolName, &toolResult); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Role = model.Role(role)
		msg.ToolName = toolName.String
		if toolResult.String != "" {
			var res model.ToolCallResult
			if err := json.Unmarshal([]byte(toolResult.String), &res); err == nil {
				msg.ToolResult = &res
			}
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// FormattedHistory renders the last limit messages for the planner.
func (cs *ConversationStore) FormattedHistory(ctx context.Context, channelID string, limit int) (string, error) {
	messages, err := cs.Read(ctx, channelID, limit)
	if err != nil {
		return "", err
	}
	return model.FormatHistory(messages), nil
}

// ClearHistory deletes every message of a channel.
func (cs *ConversationStore) ClearHistory(ctx context.Context, channelID string) error {
	if _, err := cs.db.ExecContext(ctx, `DELETE FROM messages WHERE channel_id = ?`, channelID); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// Count returns the number of stored messages for a channel.
func (cs *ConversationStore) Count(ctx context.Context, channelID string) (int, error) {
	var n int
	err := cs.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE channel_id = ?`, channelID).Scan(&n)
	return n, err
}

func (cs *ConversationStore) Close() error {
	if cs.db != nil {
		return cs.db.Close()
	}
	return nil
}
