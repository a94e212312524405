package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"blog-portal/internal/domain/models"
)

func (s *Storage) AddLogEntry(ctx context.Context, e models.LogEntry) error {
	const op = "storage.sqlite.AddLogEntry"

	var actor any
	if e.ActorID != 0 {
		actor = e.ActorID
	}

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO log_entries (actor_id, object_id, object_repr, message, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		actor, e.ObjectID, e.ObjectRepr, e.Message, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// LogEntries returns the most recent entries first.
func (s *Storage) LogEntries(ctx context.Context, limit int) ([]models.LogEntry, error) {
	const op = "storage.sqlite.LogEntries"

	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.actor_id, u.username, l.object_id, l.object_repr, l.message, l.created_at
		FROM log_entries l LEFT JOIN users u ON u.id = l.actor_id
		ORDER BY l.created_at DESC, l.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var entries []models.LogEntry
	for rows.Next() {
		var (
			e     models.LogEntry
			actor sql.NullInt64
			name  sql.NullString
		)
		if err := rows.Scan(&e.ID, &actor, &name, &e.ObjectID, &e.ObjectRepr, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		e.ActorID = actor.Int64
		e.ActorName = name.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return entries, nil
}
