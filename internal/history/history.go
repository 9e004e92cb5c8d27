// Package history records every handled message in SQLite for auditing.
// If opening the DB or executing queries fails, the store falls back to in-memory storage.
// Nothing here is ever read back into a conversation.
package history

import (
	"context"
	"database/sql"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/comigor/invoicebot-go/internal/logger"
)

const schema = `CREATE TABLE IF NOT EXISTS exchanges (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL,
    chat_id TEXT,
    user_text TEXT,
    decision TEXT,
    instruction TEXT,
    api_status INTEGER,
    reply TEXT,
    outcome TEXT,
    error TEXT,
    created_at INTEGER
);
CREATE INDEX IF NOT EXISTS exchanges_chat_id ON exchanges (chat_id);`

// Store persists exchanges.
type Store struct {
	db *sql.DB

	mu       sync.Mutex
	fallback []Exchange
}

// Open opens (and creates) the SQLite database at path. It never fails: when
// the database is unusable the returned Store keeps exchanges in memory.
func Open(path string) *Store {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(10000)")
	if err != nil {
		logger.L.Warn("sqlite open failed; using in-memory history", "error", err)
		return NewMemory()
	}
	if _, err = db.Exec(schema); err != nil {
		logger.L.Warn("sqlite table creation failed; using in-memory history", "error", err)
		_ = db.Close()
		return NewMemory()
	}
	logger.L.Info("sqlite history DB initialized", "path", path)
	return &Store{db: db}
}

// NewMemory returns a Store without a database.
func NewMemory() *Store {
	return &Store{}
}

// Persistent reports whether exchanges reach the database.
func (s *Store) Persistent() bool {
	return s.db != nil
}

// Save stores e, falling back to memory if the insert fails.
func (s *Store) Save(ctx context.Context, e Exchange) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if s.db != nil {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO exchanges (id, chat_id, user_text, decision, instruction, api_status, reply, outcome, error, created_at)
			 VALUES (?,?,?,?,?,?,?,?,?,?);`,
			e.ID, e.ChatID, e.UserText, e.Decision, e.Instruction, e.APIStatus, e.Reply, e.Outcome, e.Error, e.CreatedAt.UnixNano())
		if err == nil {
			return
		}
		logger.L.Error("failed to store exchange in sqlite; falling back to memory", "error", err)
	}

	s.mu.Lock()
	s.fallback = append(s.fallback, e)
	s.mu.Unlock()
}

// List returns the most recent exchanges of a chat in chronological order.
// limit <= 0 returns all of them.
func (s *Store) List(ctx context.Context, chatID string, limit int) ([]Exchange, error) {
	var out []Exchange
	if s.db != nil {
		query := `SELECT id, chat_id, user_text, decision, instruction, api_status, reply, outcome, error, created_at
			FROM (SELECT * FROM exchanges WHERE chat_id = ? ORDER BY seq DESC LIMIT ?) ORDER BY seq ASC;`
		rows, err := s.db.QueryContext(ctx, query, chatID, sqlLimit(limit))
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		for rows.Next() {
			var e Exchange
			var created int64
			if err := rows.Scan(&e.ID, &e.ChatID, &e.UserText, &e.Decision, &e.Instruction, &e.APIStatus, &e.Reply, &e.Outcome, &e.Error, &created); err != nil {
				return nil, err
			}
			e.CreatedAt = time.Unix(0, created)
			out = append(out, e)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	for _, e := range s.fallback {
		if e.ChatID == chatID {
			out = append(out, e)
		}
	}
	s.mu.Unlock()

	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
