// Package checkpoint provides append-only, SQLite-backed persistence of
// conversation state. Every successful pipeline turn appends one
// checkpoint; history is reconstructed by replaying a thread's
// checkpoints in insertion order.
package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"tutorboard/pkg/logx"
	"tutorboard/pkg/tutor"
)

// CurrentSchemaVersion defines the schema version for migration support.
const CurrentSchemaVersion = 1

// Checkpoint is one persisted snapshot of a thread's state.
type Checkpoint struct {
	ID        int64                   `json:"checkpointId"`
	ThreadID  string                  `json:"threadId"`
	State     tutor.ConversationState `json:"state"`
	CreatedAt time.Time               `json:"createdAt"`
}

// Saver is the persistence capability the pipeline depends on.
type Saver interface {
	// Latest returns the most recent checkpoint for a thread, or
	// (nil, nil) when the thread has no checkpoints yet.
	Latest(ctx context.Context, threadID string) (*Checkpoint, error)

	// Append records a new checkpoint for the thread. Existing rows are
	// never updated or deleted.
	Append(ctx context.Context, threadID string, state tutor.ConversationState) (*Checkpoint, error)

	// History returns all checkpoints for a thread, oldest first.
	History(ctx context.Context, threadID string) ([]Checkpoint, error)
}

// Store is a SQLite-backed Saver.
type Store struct {
	db     *sql.DB
	logger *logx.Logger
}

// NewStore opens (or creates) the checkpoint database at dbPath and
// ensures the schema is current.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf(
		"file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000",
		dbPath,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initializeSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	logger := logx.NewLogger("checkpoint")
	logger.Info("checkpoint store opened: %s", dbPath)

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func initializeSchema(db *sql.DB) error {
	version, err := schemaVersion(db)
	if err != nil {
		return err
	}

	switch {
	case version == CurrentSchemaVersion:
		return nil
	case version == 0:
		return createSchema(db)
	default:
		return fmt.Errorf("unsupported schema version %d", version)
	}
}

func schemaVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS checkpoints (
		checkpoint_id INTEGER PRIMARY KEY AUTOINCREMENT,
		thread_id     TEXT NOT NULL,
		state         TEXT NOT NULL,
		created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_checkpoints_thread
		ON checkpoints(thread_id, checkpoint_id);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", CurrentSchemaVersion)); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}
	return nil
}

// Latest implements Saver.
func (s *Store) Latest(ctx context.Context, threadID string) (*Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT checkpoint_id, thread_id, state, created_at
		FROM checkpoints
		WHERE thread_id = ?
		ORDER BY checkpoint_id DESC
		LIMIT 1`, threadID)

	cp, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest checkpoint for thread %s: %w", threadID, err)
	}
	return cp, nil
}

// Append implements Saver.
func (s *Store) Append(ctx context.Context, threadID string, state tutor.ConversationState) (*Checkpoint, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state for thread %s: %w", threadID, err)
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (thread_id, state, created_at)
		VALUES (?, ?, ?)`, threadID, string(data), now)
	if err != nil {
		return nil, fmt.Errorf("failed to append checkpoint for thread %s: %w", threadID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint id: %w", err)
	}

	s.logger.Debug("checkpoint %d appended for thread %s (%d messages)", id, threadID, len(state.Messages))

	return &Checkpoint{ID: id, ThreadID: threadID, State: state, CreatedAt: now}, nil
}

// History implements Saver.
func (s *Store) History(ctx context.Context, threadID string) ([]Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT checkpoint_id, thread_id, state, created_at
		FROM checkpoints
		WHERE thread_id = ?
		ORDER BY checkpoint_id ASC`, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for thread %s: %w", threadID, err)
	}
	defer func() { _ = rows.Close() }()

	var history []Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint for thread %s: %w", threadID, err)
		}
		history = append(history, *cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history for thread %s: %w", threadID, err)
	}
	return history, nil
}

// LatestState returns the state held by the thread's newest checkpoint,
// or (nil, nil) for a fresh thread. Satisfies the pipeline's store
// dependency.
func (s *Store) LatestState(ctx context.Context, threadID string) (*tutor.ConversationState, error) {
	cp, err := s.Latest(ctx, threadID)
	if err != nil || cp == nil {
		return nil, err
	}
	return &cp.State, nil
}

// SaveState appends a checkpoint holding state. Satisfies the
// pipeline's store dependency.
func (s *Store) SaveState(ctx context.Context, threadID string, state tutor.ConversationState) error {
	_, err := s.Append(ctx, threadID, state)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row rowScanner) (*Checkpoint, error) {
	var (
		cp   Checkpoint
		data string
	)
	if err := row.Scan(&cp.ID, &cp.ThreadID, &data, &cp.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), &cp.State); err != nil {
		return nil, fmt.Errorf("corrupt state payload: %w", err)
	}
	return &cp, nil
}
