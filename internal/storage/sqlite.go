package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tazhate/deadlinebot/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

var ErrSubjectExists = errors.New("subject already exists")

type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	// busy_timeout lets the bot and the web front end share the file.
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS chats (
			chat_id INTEGER PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL DEFAULT '',
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chats_title ON chats(title COLLATE NOCASE)`,
		`CREATE TABLE IF NOT EXISTS subjects (
			code TEXT PRIMARY KEY COLLATE NOCASE,
			name TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// === Chats ===

// UpsertChat records a chat the bot has seen, refreshing its title.
func (s *Storage) UpsertChat(ctx context.Context, c *domain.Chat) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (chat_id, title, type, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(chat_id) DO UPDATE SET title = excluded.title, type = excluded.type, updated_at = excluded.updated_at`,
		c.ChatID, c.Title, c.Type, now,
	)
	if err != nil {
		return err
	}
	c.UpdatedAt = now
	return nil
}

// FindGroupByTitle returns the most recently seen group whose title matches
// name, ignoring case and surrounding whitespace.
func (s *Storage) FindGroupByTitle(ctx context.Context, name string) (*domain.Chat, error) {
	target := strings.ToLower(strings.TrimSpace(name))
	if target == "" {
		return nil, nil
	}

	chats, err := s.ListChats(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range chats {
		if c.IsGroup() && strings.ToLower(strings.TrimSpace(c.Title)) == target {
			return c, nil
		}
	}
	return nil, nil
}

// ListChats returns known chats, most recently seen first.
func (s *Storage) ListChats(ctx context.Context) ([]*domain.Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id, title, type, updated_at FROM chats ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []*domain.Chat
	for rows.Next() {
		c := &domain.Chat{}
		if err := rows.Scan(&c.ChatID, &c.Title, &c.Type, &c.UpdatedAt); err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// === Subjects ===

func (s *Storage) CreateSubject(ctx context.Context, sub *domain.Subject) error {
	existing, err := s.GetSubject(ctx, sub.Code)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrSubjectExists
	}

	now := time.Now()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO subjects (code, name, created_at) VALUES (?, ?, ?)`,
		sub.Code, sub.Name, now,
	); err != nil {
		return err
	}
	sub.CreatedAt = now
	return nil
}

// GetSubject looks a subject up by code, case-insensitively.
func (s *Storage) GetSubject(ctx context.Context, code string) (*domain.Subject, error) {
	sub := &domain.Subject{}
	err := s.db.QueryRowContext(ctx,
		`SELECT code, name, created_at FROM subjects WHERE code = ?`,
		code,
	).Scan(&sub.Code, &sub.Name, &sub.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sub, err
}

func (s *Storage) ListSubjects(ctx context.Context) ([]*domain.Subject, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT code, name, created_at FROM subjects ORDER BY code ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subjects []*domain.Subject
	for rows.Next() {
		sub := &domain.Subject{}
		if err := rows.Scan(&sub.Code, &sub.Name, &sub.CreatedAt); err != nil {
			return nil, err
		}
		subjects = append(subjects, sub)
	}
	return subjects, rows.Err()
}

// UpdateSubjectName renames a subject. It reports false when code is unknown.
func (s *Storage) UpdateSubjectName(ctx context.Context, code, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE subjects SET name = ? WHERE code = ?`, name, code)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeleteSubject removes a subject. It reports false when code is unknown.
func (s *Storage) DeleteSubject(ctx context.Context, code string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM subjects WHERE code = ?`, code)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
