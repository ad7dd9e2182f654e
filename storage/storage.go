// Storage module - SQLite conversation store

package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"
	openai "github.com/sashabaranov/go-openai"
)

// addColumnSafe adds a column to a table if it doesn't exist
// Returns true if column was added, false if it already exists or error
func addColumnSafe(db *sql.DB, table, column, definition string) bool {
	var count int
	err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM pragma_table_info('%s') WHERE name = ?", table), column).Scan(&count)
	if err == nil && count > 0 {
		return false
	}

	_, err = db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition))
	if err != nil {
		log.Printf("[WARN] Migration: add column %s.%s failed: %v (may be OK if already exists)", table, column, err)
		return false
	}
	return true
}

// Message is one turn in a conversation. Only the protocol fields (role,
// content, name, toolCalls, toolCallId) travel to the completion service;
// mode and timestamp are orchestration metadata.
type Message struct {
	Role       string            `json:"role"` // system, user, assistant, tool
	Content    string            `json:"content"`
	Name       string            `json:"name,omitempty"`
	ToolCalls  []openai.ToolCall `json:"toolCalls,omitempty"`
	ToolCallID string            `json:"toolCallId,omitempty"`
	Mode       string            `json:"mode,omitempty"` // chat, voice, video
	Timestamp  time.Time         `json:"timestamp,omitempty"`
}

// Conversation is identified by (appId, userId, channel)
type Conversation struct {
	ID        int64     `json:"id"`
	AppID     string    `json:"appId"`
	UserID    string    `json:"userId"`
	Channel   string    `json:"channel"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Storage struct {
	db *sql.DB

	// Prepared statements for the hot paths
	stmtGetConv     *sql.Stmt
	stmtInsertConv  *sql.Stmt
	stmtTouchConv   *sql.Stmt
	stmtAddMessage  *sql.Stmt
	stmtGetMessages *sql.Stmt
}

func New(dbPath string) (*Storage, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("db path required")
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database connection failed: %v", err)
	}

	s := &Storage{db: db}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to set WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL;"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous: %v", err)
	}

	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %v", err)
	}

	if err := s.initPreparedStmts(); err != nil {
		log.Printf("[WARN] Failed to prepare statements: %v (continuing without prepared statements)", err)
	}

	log.Printf("[OK] Storage: database %s", dbPath)
	return s, nil
}

func (s *Storage) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS conversations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			app_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			channel TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(app_id, user_id, channel)
		)
	`)
	if err != nil {
		return err
	}

	// Messages keep conversation order via the autoincrement id; tool calls
	// are stored as JSON so the round-trip loses nothing.
	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT,
			name TEXT DEFAULT '',
			tool_calls TEXT DEFAULT '',
			tool_call_id TEXT DEFAULT '',
			mode TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(conversation_id) REFERENCES conversations(id)
		)
	`)
	if err != nil {
		return err
	}

	if _, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_messages_conv ON messages(conversation_id, id)`); err != nil {
		return err
	}

	// Databases created before the mode column existed
	addColumnSafe(s.db, "messages", "mode", "TEXT DEFAULT ''")
	return nil
}

func (s *Storage) initPreparedStmts() error {
	var err error

	if s.stmtGetConv, err = s.db.Prepare("SELECT id, app_id, user_id, channel, created_at, updated_at FROM conversations WHERE app_id = ? AND user_id = ? AND channel = ?"); err != nil {
		return fmt.Errorf("GetConv: %v", err)
	}
	if s.stmtInsertConv, err = s.db.Prepare("INSERT INTO conversations (app_id, user_id, channel) VALUES (?, ?, ?)"); err != nil {
		return fmt.Errorf("InsertConv: %v", err)
	}
	if s.stmtTouchConv, err = s.db.Prepare("UPDATE conversations SET updated_at = CURRENT_TIMESTAMP WHERE id = ?"); err != nil {
		return fmt.Errorf("TouchConv: %v", err)
	}
	if s.stmtAddMessage, err = s.db.Prepare("INSERT INTO messages (conversation_id, role, content, name, tool_calls, tool_call_id, mode) VALUES (?, ?, ?, ?, ?, ?, ?)"); err != nil {
		return fmt.Errorf("AddMessage: %v", err)
	}
	if s.stmtGetMessages, err = s.db.Prepare("SELECT role, content, name, tool_calls, tool_call_id, mode, created_at FROM messages WHERE conversation_id = ? ORDER BY id ASC"); err != nil {
		return fmt.Errorf("GetMessages: %v", err)
	}

	return nil
}

// GetOrCreate returns the conversation for (appID, userID, channel),
// creating it on first contact.
func (s *Storage) GetOrCreate(appID, userID, channel string) (*Conversation, error) {
	conv, err := s.get(appID, userID, channel)
	if err == nil {
		return conv, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	if _, err := s.stmtInsertConv.Exec(appID, userID, channel); err != nil {
		// Lost a race with a concurrent create; re-read.
		if conv, rerr := s.get(appID, userID, channel); rerr == nil {
			return conv, nil
		}
		return nil, fmt.Errorf("create conversation: %v", err)
	}
	return s.get(appID, userID, channel)
}

func (s *Storage) get(appID, userID, channel string) (*Conversation, error) {
	var conv Conversation
	err := s.stmtGetConv.QueryRow(appID, userID, channel).Scan(
		&conv.ID, &conv.AppID, &conv.UserID, &conv.Channel, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// Append adds one message to the conversation and bumps its updated_at
func (s *Storage) Append(appID, userID, channel string, msg Message) error {
	conv, err := s.GetOrCreate(appID, userID, channel)
	if err != nil {
		return err
	}

	toolCalls := ""
	if len(msg.ToolCalls) > 0 {
		b, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return fmt.Errorf("marshal tool calls: %v", err)
		}
		toolCalls = string(b)
	}

	if _, err := s.stmtAddMessage.Exec(conv.ID, msg.Role, msg.Content, msg.Name, toolCalls, msg.ToolCallID, msg.Mode); err != nil {
		return fmt.Errorf("append message: %v", err)
	}
	if _, err := s.stmtTouchConv.Exec(conv.ID); err != nil {
		log.Printf("[WARN] touch conversation %d failed: %v", conv.ID, err)
	}
	return nil
}

// Touch bumps the conversation's updated_at
func (s *Storage) Touch(appID, userID, channel string) error {
	conv, err := s.get(appID, userID, channel)
	if err != nil {
		return err
	}
	_, err = s.stmtTouchConv.Exec(conv.ID)
	return err
}

// Messages returns the conversation's messages in conversation order
func (s *Storage) Messages(appID, userID, channel string) ([]Message, error) {
	conv, err := s.get(appID, userID, channel)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.stmtGetMessages.Query(conv.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var msg Message
		var toolCalls string
		if err := rows.Scan(&msg.Role, &msg.Content, &msg.Name, &toolCalls, &msg.ToolCallID, &msg.Mode, &msg.Timestamp); err != nil {
			return nil, err
		}
		if toolCalls != "" {
			if err := json.Unmarshal([]byte(toolCalls), &msg.ToolCalls); err != nil {
				log.Printf("[WARN] corrupt tool_calls on conversation %d: %v", conv.ID, err)
			}
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// Stats returns row counts for diagnostics
func (s *Storage) Stats() (map[string]int, error) {
	stats := make(map[string]int)
	for _, table := range []string{"conversations", "messages"} {
		var n int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			return nil, err
		}
		stats[table] = n
	}
	return stats, nil
}

func (s *Storage) Close() error {
	for _, stmt := range []*sql.Stmt{s.stmtGetConv, s.stmtInsertConv, s.stmtTouchConv, s.stmtAddMessage, s.stmtGetMessages} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return s.db.Close()
}
