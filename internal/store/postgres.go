package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists the conversation log in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			start_time TIMESTAMPTZ NOT NULL DEFAULT now(),
			end_time TIMESTAMPTZ,
			total_interactions INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(session_id),
			timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
			user_input TEXT NOT NULL,
			bot_response TEXT NOT NULL,
			language TEXT NOT NULL DEFAULT 'english',
			confidence_score REAL NOT NULL DEFAULT 0.0
		);`,
		`CREATE TABLE IF NOT EXISTS language_switches (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(session_id),
			timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
			from_language TEXT,
			to_language TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_session ON conversations (session_id);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_timestamp ON conversations (timestamp);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) StartSession(ctx context.Context, sessionID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (session_id, start_time) VALUES ($1, $2)`,
		sessionID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	return nil
}

func (s *PostgresStore) EndSession(ctx context.Context, sessionID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE sessions SET end_time=$1 WHERE session_id=$2`,
		time.Now().UTC(), sessionID,
	)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

func (s *PostgresStore) AddConversation(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversations (id, session_id, timestamp, user_input, bot_response, language, confidence_score)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.SessionID, entry.Timestamp, entry.UserInput, entry.BotResponse, entry.Language, entry.Confidence,
	)
	if err != nil {
		return fmt.Errorf("add conversation: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE sessions SET total_interactions = total_interactions + 1 WHERE session_id=$1`,
		entry.SessionID,
	)
	if err != nil {
		return fmt.Errorf("bump interactions: %w", err)
	}
	return nil
}

func (s *PostgresStore) LogLanguageSwitch(ctx context.Context, sw Switch) error {
	if sw.Timestamp.IsZero() {
		sw.Timestamp = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO language_switches (session_id, timestamp, from_language, to_language)
		 VALUES ($1, $2, $3, $4)`,
		sw.SessionID, sw.Timestamp, sw.FromLanguage, sw.ToLanguage,
	)
	if err != nil {
		return fmt.Errorf("log language switch: %w", err)
	}
	return nil
}

func (s *PostgresStore) SessionHistory(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, timestamp, user_input, bot_response, language, confidence_score
		 FROM conversations WHERE session_id=$1 ORDER BY timestamp`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var items []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Timestamp, &e.UserInput, &e.BotResponse, &e.Language, &e.Confidence); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) Statistics(ctx context.Context) (Statistics, error) {
	stats := Statistics{ConversationsByLanguage: make(map[string]int)}

	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM sessions`).Scan(&stats.TotalSessions); err != nil {
		return Statistics{}, fmt.Errorf("count sessions: %w", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT language, count(*) FROM conversations GROUP BY language`)
	if err != nil {
		return Statistics{}, fmt.Errorf("count conversations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var lang string
		var n int
		if err := rows.Scan(&lang, &n); err != nil {
			return Statistics{}, fmt.Errorf("scan statistics row: %w", err)
		}
		stats.ConversationsByLanguage[lang] = n
		stats.TotalConversations += n
	}
	if err := rows.Err(); err != nil {
		return Statistics{}, fmt.Errorf("iterate statistics rows: %w", err)
	}
	return stats, nil
}

func (s *PostgresStore) CleanupOldSessions(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().UTC().Add(-olderThan)

	if _, err := s.pool.Exec(ctx,
		`DELETE FROM conversations WHERE session_id IN (SELECT session_id FROM sessions WHERE start_time < $1)`,
		cutoff,
	); err != nil {
		return fmt.Errorf("cleanup conversations: %w", err)
	}
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM language_switches WHERE session_id IN (SELECT session_id FROM sessions WHERE start_time < $1)`,
		cutoff,
	); err != nil {
		return fmt.Errorf("cleanup language switches: %w", err)
	}
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM sessions WHERE start_time < $1`,
		cutoff,
	); err != nil {
		return fmt.Errorf("cleanup sessions: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
