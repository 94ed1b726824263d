// Package sqlite provides a SQLite-backed memory.Store built on the pure Go
// modernc.org/sqlite driver. Messages are stored as JSON rows next to the
// columns needed for lookups.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hupe1980/agentswarm/memory"
	_ "modernc.org/sqlite"
)

var _ memory.Store = (*Store)(nil)

// Store provides SQLite-backed message persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a message store at path and applies migrations. Use ":memory:"
// for a private in-memory database.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := ":memory:"
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// Every new connection would see a fresh empty database.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// Put inserts or replaces msg.
func (s *Store) Put(ctx context.Context, msg memory.Message) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	msg.ID = strings.TrimSpace(msg.ID)
	if msg.ID == "" {
		return fmt.Errorf("message id is required")
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO messages (id, channel_id, content, reply_to, data, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	channel_id = excluded.channel_id,
	content = excluded.content,
	reply_to = excluded.reply_to,
	data = excluded.data,
	created_at = excluded.created_at
`,
		msg.ID,
		msg.ChannelID,
		msg.Content,
		msg.ReplyTo,
		string(data),
		msg.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put message: %w", err)
	}
	return nil
}

// Get returns the message with id.
func (s *Store) Get(ctx context.Context, id string) (memory.Message, error) {
	if err := s.ready(ctx); err != nil {
		return memory.Message{}, err
	}
	var data string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT data FROM messages WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return memory.Message{}, fmt.Errorf("%w: %s", memory.ErrNotFound, id)
	}
	if err != nil {
		return memory.Message{}, fmt.Errorf("get message: %w", err)
	}
	return decode(data)
}

// ReplyChain implements memory.Store.
func (s *Store) ReplyChain(ctx context.Context, msg memory.Message, window, maxChars int) ([]memory.Message, error) {
	return memory.ReplyChain(ctx, s, msg, window, maxChars)
}

// Search lists newest-first messages of channelID whose content contains
// query, ignoring ASCII case.
func (s *Store) Search(ctx context.Context, channelID, query string, limit int) ([]memory.Message, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	pattern := "%" + likeEscaper.Replace(query) + "%"
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT data
FROM messages
WHERE channel_id = ? AND content LIKE ? ESCAPE '\'
ORDER BY created_at DESC, rowid DESC
LIMIT ?
`, channelID, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	defer rows.Close()

	results := make([]memory.Message, 0, limit)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg, err := decode(data)
		if err != nil {
			return nil, err
		}
		results = append(results, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return results, nil
}

// Delete removes the message with id.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", memory.ErrNotFound, id)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func decode(data string) (memory.Message, error) {
	var msg memory.Message
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		return memory.Message{}, fmt.Errorf("decode message: %w", err)
	}
	return msg, nil
}
