// Package store keeps bot users and chat history in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/riverfjs/telegramify-stream/internal/llm"
)

var ErrNotFound = errors.New("store: not found")

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY,
    admin BOOLEAN NOT NULL DEFAULT FALSE,
    model TEXT NOT NULL DEFAULT '',
    system_prompt TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    chat_id INTEGER NOT NULL,
    role TEXT NOT NULL CHECK (role IN ('user', 'assistant', 'system')),
    content TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_messages_chat_id ON messages(chat_id, id);
`

// User 用户设置，空字符串表示使用全局默认值
type User struct {
	ID           int64
	Admin        bool
	Model        string
	SystemPrompt string
}

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite 只允许一个写者
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SeedUsers creates a row for every numeric ID in ids. The first numeric
// ID becomes the admin; usernames are skipped. Existing rows are kept.
func (s *Store) SeedUsers(ctx context.Context, ids []string) error {
	admin := true
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		if _, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO users (id, admin) VALUES (?, ?)`, id, admin); err != nil {
			return fmt.Errorf("seed user %d: %w", id, err)
		}
		admin = false
	}
	return nil
}

// EnsureUser returns the user row, creating a default one if missing.
func (s *Store) EnsureUser(ctx context.Context, id int64) (*User, error) {
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO users (id) VALUES (?)`, id); err != nil {
		return nil, fmt.Errorf("ensure user %d: %w", id, err)
	}
	return s.GetUser(ctx, id)
}

func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	u := &User{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, admin, model, system_prompt FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Admin, &u.Model, &u.SystemPrompt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

// ListUsers returns every known user ordered by ID.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, admin, model, system_prompt FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Admin, &u.Model, &u.SystemPrompt); err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) SetModel(ctx context.Context, id int64, model string) error {
	return s.updateUser(ctx, id, "model", model)
}

func (s *Store) SetSystemPrompt(ctx context.Context, id int64, prompt string) error {
	return s.updateUser(ctx, id, "system_prompt", prompt)
}

func (s *Store) updateUser(ctx context.Context, id int64, column, value string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET `+column+` = ? WHERE id = ?`, value, id)
	if err != nil {
		return fmt.Errorf("update %s for user %d: %w", column, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) AppendMessage(ctx context.Context, chatID int64, msg llm.Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (chat_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		chatID, string(msg.Role), msg.Content, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("append message for chat %d: %w", chatID, err)
	}
	return nil
}

// History returns the last limit messages of the chat, oldest first.
// A limit <= 0 returns the whole history.
func (s *Store) History(ctx context.Context, chatID int64, limit int) ([]llm.Message, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content FROM (
			SELECT id, role, content FROM messages WHERE chat_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history for chat %d: %w", chatID, err)
	}
	defer rows.Close()

	var msgs []llm.Message
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, llm.Message{Role: llm.Role(role), Content: content})
	}
	return msgs, rows.Err()
}

// ClearHistory deletes every stored message of the chat.
func (s *Store) ClearHistory(ctx context.Context, chatID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("clear history for chat %d: %w", chatID, err)
	}
	return nil
}

// CountMessages returns the number of stored messages of the chat.
func (s *Store) CountMessages(ctx context.Context, chatID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE chat_id = ?`, chatID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages for chat %d: %w", chatID, err)
	}
	return n, nil
}
