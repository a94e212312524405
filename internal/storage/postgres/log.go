package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"blog-portal/internal/domain/models"
)

func (s *Storage) AddLogEntry(ctx context.Context, e models.LogEntry) error {
	const op = "storage.postgres.AddLogEntry"

	rec := logEntry{
		ObjectID:   e.ObjectID,
		ObjectRepr: e.ObjectRepr,
		Message:    e.Message,
		CreatedAt:  e.CreatedAt,
	}
	if e.ActorID != 0 {
		actor := e.ActorID
		rec.ActorID = &actor
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) LogEntries(ctx context.Context, limit int) ([]models.LogEntry, error) {
	const op = "storage.postgres.LogEntries"

	var rows []struct {
		ID         int64
		ActorID    sql.NullInt64
		ActorName  sql.NullString
		ObjectID   int64
		ObjectRepr string
		Message    string
		CreatedAt  time.Time
	}
	err := s.db.WithContext(ctx).Table("log_entries l").
		Select("l.id, l.actor_id, u.username AS actor_name, l.object_id, l.object_repr, l.message, l.created_at").
		Joins("LEFT JOIN users u ON u.id = l.actor_id").
		Order("l.created_at DESC, l.id DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	entries := make([]models.LogEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, models.LogEntry{
			ID:         r.ID,
			ActorID:    r.ActorID.Int64,
			ActorName:  r.ActorName.String,
			ObjectID:   r.ObjectID,
			ObjectRepr: r.ObjectRepr,
			Message:    r.Message,
			CreatedAt:  r.CreatedAt,
		})
	}

	return entries, nil
}
