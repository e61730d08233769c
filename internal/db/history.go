// Package db implements the optional SQLite change-history recorder. It
// subscribes to parameter and avatar change events and appends one row
// per change, so a session can be replayed or inspected afterwards.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/oscbridge-project/oscbridge/internal/events"
)

const schema = `
CREATE TABLE IF NOT EXISTS parameter_history (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL,
	type        TEXT NOT NULL,
	value       TEXT NOT NULL,
	received_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_parameter_history_name ON parameter_history(name);

CREATE TABLE IF NOT EXISTS avatar_history (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	avatar_id   TEXT NOT NULL,
	raw         TEXT NOT NULL,
	received_at TIMESTAMP NOT NULL
);
`

// History wraps a SQLite database recording change events.
type History struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// NewHistory opens or creates the history database at the given path.
func NewHistory(dbPath string) (*History, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", dbPath, err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		log.Warn().Err(err).Msg("failed to enable WAL mode")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("history database opened")

	return &History{
		db:   db,
		path: dbPath,
	}, nil
}

// Attach subscribes the recorder to change events on the bus.
func (h *History) Attach(bus *events.EventBus) {
	bus.Subscribe(events.EventParameterChanged, "history.parameterChanged", h.onParameterChanged)
	bus.Subscribe(events.EventAvatarChanged, "history.avatarChanged", h.onAvatarChanged)
}

// Detach removes the recorder's subscriptions.
func (h *History) Detach(bus *events.EventBus) {
	bus.Unsubscribe(events.EventParameterChanged, "history.parameterChanged")
	bus.Unsubscribe(events.EventAvatarChanged, "history.avatarChanged")
}

func (h *History) onParameterChanged(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.ParameterChangedPayload)
	if !ok {
		return nil
	}
	return h.RecordParameter(p.Name, p.Value.Kind().String(), p.Value.String())
}

func (h *History) onAvatarChanged(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.AvatarChangedPayload)
	if !ok {
		return nil
	}
	return h.RecordAvatar(p.ID.String(), p.Raw)
}

// RecordParameter appends one parameter change row.
func (h *History) RecordParameter(name, typ, value string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := h.db.Exec(
		"INSERT INTO parameter_history (name, type, value, received_at) VALUES (?, ?, ?, ?)",
		name, typ, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record parameter change: %w", err)
	}
	return nil
}

// RecordAvatar appends one avatar change row.
func (h *History) RecordAvatar(avatarID, raw string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := h.db.Exec(
		"INSERT INTO avatar_history (avatar_id, raw, received_at) VALUES (?, ?, ?)",
		avatarID, raw, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record avatar change: %w", err)
	}
	return nil
}

// ParameterChange is one row of recorded parameter history.
type ParameterChange struct {
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	Value      string    `json:"value"`
	ReceivedAt time.Time `json:"received_at"`
}

// RecentParameterChanges returns the most recent parameter changes,
// newest first.
func (h *History) RecentParameterChanges(limit int) ([]ParameterChange, error) {
	rows, err := h.db.Query(
		"SELECT name, type, value, received_at FROM parameter_history ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query parameter history: %w", err)
	}
	defer rows.Close()

	var changes []ParameterChange
	for rows.Next() {
		var c ParameterChange
		if err := rows.Scan(&c.Name, &c.Type, &c.Value, &c.ReceivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan parameter history row: %w", err)
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// Close closes the database connection.
func (h *History) Close() error {
	return h.db.Close()
}
