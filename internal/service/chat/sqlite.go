package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/zhouzirui/sentiscope/backend/internal/logging"
	"github.com/zhouzirui/sentiscope/backend/internal/model/chat"
)

// migration 会话表结构的一步迁移
type migration struct {
	Version int
	Name    string
	SQL     string
}

var migrations = []migration{
	{
		Version: 1,
		Name:    "create sessions and messages",
		SQL: `
			CREATE TABLE sessions (
				key_str     TEXT PRIMARY KEY,
				created_at  TEXT NOT NULL
			);

			CREATE TABLE messages (
				seq         INTEGER PRIMARY KEY AUTOINCREMENT,
				id          TEXT NOT NULL UNIQUE,
				session_key TEXT NOT NULL REFERENCES sessions(key_str) ON DELETE CASCADE,
				role        TEXT NOT NULL,
				content     TEXT NOT NULL,
				created_at  TEXT NOT NULL
			);

			CREATE INDEX idx_messages_session ON messages (session_key, seq);
		`,
	},
}

// SQLiteStore 基于 SQLite 的 Store，测试用 ":memory:"
type SQLiteStore struct {
	db  *sql.DB
	log *logging.Logger
}

// OpenSQLiteStore 打开（或创建）数据库并执行迁移
func OpenSQLiteStore(path string, log *logging.Logger) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// 每个连接都有独立的 :memory: 库，单连接保证读写同一份数据
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db, log: log.Sub("session-store")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	s.log.Info().Str("path", path).Msg("session database opened")
	return s, nil
}

// Close 关闭数据库
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	for _, m := range migrations {
		var count int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.Version).Scan(&count); err != nil {
			return fmt.Errorf("checking migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		s.log.Info().Int("version", m.Version).Str("name", m.Name).Msg("applying migration")

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}

func (s *SQLiteStore) GetOrCreate(ctx context.Context, key string) (chat.Session, error) {
	if key == "" {
		return chat.Session{}, ErrKeyRequired
	}
	if err := s.ensure(ctx, key); err != nil {
		return chat.Session{}, err
	}

	var createdAt string
	if err := s.db.QueryRowContext(ctx, `SELECT created_at FROM sessions WHERE key_str = ?`, key).Scan(&createdAt); err != nil {
		return chat.Session{}, fmt.Errorf("loading session %q: %w", key, err)
	}

	messages, err := s.loadMessages(ctx, key)
	if err != nil {
		return chat.Session{}, err
	}

	session := chat.Session{Key: key, Messages: messages}
	session.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return session, nil
}

func (s *SQLiteStore) Append(ctx context.Context, key string, role chat.Role, content string) error {
	if key == "" {
		return ErrKeyRequired
	}
	if !role.Valid() {
		return ErrInvalidRole
	}
	if err := s.ensure(ctx, key); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, session_key, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), key, string(role), content, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("appending message to %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_key = ?`, key); err != nil {
		return fmt.Errorf("clearing session %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Export(ctx context.Context, key string) ([]chat.Record, error) {
	messages, err := s.loadMessages(ctx, key)
	if err != nil {
		return nil, err
	}
	return chat.Records(messages), nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key_str FROM sessions ORDER BY created_at, key_str`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *SQLiteStore) Count(ctx context.Context, key string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE session_key = ?`, key).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting messages of %q: %w", key, err)
	}
	return count, nil
}

func (s *SQLiteStore) ensure(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (key_str, created_at) VALUES (?, ?) ON CONFLICT(key_str) DO NOTHING`,
		key, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("creating session %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) loadMessages(ctx context.Context, key string) ([]chat.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, created_at FROM messages WHERE session_key = ? ORDER BY seq`, key,
	)
	if err != nil {
		return nil, fmt.Errorf("loading messages of %q: %w", key, err)
	}
	defer rows.Close()

	messages := make([]chat.Message, 0)
	for rows.Next() {
		var (
			msg       chat.Message
			role      string
			createdAt string
		)
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &createdAt); err != nil {
			return nil, err
		}
		msg.SessionKey = key
		msg.Role = chat.Role(role)
		msg.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

var _ Store = (*SQLiteStore)(nil)
var _ Store = (*MemoryStore)(nil)

// errUnknownBackend 不支持的存储后端
var errUnknownBackend = errors.New("unknown session store backend")

// OpenStore 按配置创建存储："memory"（默认）或 "sqlite"
func OpenStore(backend, path string, log *logging.Logger) (Store, func() error, error) {
	switch backend {
	case "", "memory":
		return NewMemoryStore(), func() error { return nil }, nil
	case "sqlite":
		store, err := OpenSQLiteStore(path, log)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", errUnknownBackend, backend)
	}
}
