package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"blog-portal/internal/domain/models"
	"blog-portal/internal/storage"
)

const profileColumns = `p.id, p.user_id, p.phone_number, p.birth_date, p.avatar, p.bio, p.location, p.created_at, p.updated_at`

// nullProfile scans a profile that may be missing from a LEFT JOIN.
type nullProfile struct {
	id        sql.NullInt64
	userID    sql.NullInt64
	phone     sql.NullString
	birthDate sql.NullTime
	avatar    sql.NullString
	bio       sql.NullString
	location  sql.NullString
	createdAt sql.NullTime
	updatedAt sql.NullTime
}

func (n *nullProfile) dest() []any {
	return []any{
		&n.id, &n.userID, &n.phone, &n.birthDate, &n.avatar, &n.bio, &n.location, &n.createdAt, &n.updatedAt,
	}
}

func (n *nullProfile) profile() models.Profile {
	p := models.Profile{
		ID:          n.id.Int64,
		UserID:      n.userID.Int64,
		PhoneNumber: n.phone.String,
		Avatar:      n.avatar.String,
		Bio:         n.bio.String,
		Location:    n.location.String,
		CreatedAt:   n.createdAt.Time,
		UpdatedAt:   n.updatedAt.Time,
	}
	if n.birthDate.Valid {
		t := n.birthDate.Time
		p.BirthDate = &t
	}
	return p
}

func (s *Storage) ProfileByUser(ctx context.Context, userID int64) (models.Profile, error) {
	const op = "storage.sqlite.ProfileByUser"

	stmt, err := s.db.PrepareContext(ctx, `SELECT `+profileColumns+` FROM profiles p WHERE p.user_id = ?`)
	if err != nil {
		return models.Profile{}, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	var n nullProfile
	if err := stmt.QueryRowContext(ctx, userID).Scan(n.dest()...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Profile{}, fmt.Errorf("%s: %w", op, storage.ErrProfileNotFound)
		}
		return models.Profile{}, fmt.Errorf("%s: %w", op, err)
	}

	return n.profile(), nil
}

// CreateProfile inserts an empty profile for the user.
func (s *Storage) CreateProfile(ctx context.Context, userID int64) (models.Profile, error) {
	const op = "storage.sqlite.CreateProfile"

	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, created_at, updated_at) VALUES (?, ?, ?)`, userID, now, now,
	)
	if err != nil {
		if isForeignKey(err) {
			return models.Profile{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return models.Profile{}, fmt.Errorf("%s: %w", op, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.Profile{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.Profile{ID: id, UserID: userID, CreatedAt: now, UpdatedAt: now}, nil
}

func (s *Storage) UpdateProfile(ctx context.Context, p models.Profile) error {
	const op = "storage.sqlite.UpdateProfile"

	var birthDate any
	if p.BirthDate != nil {
		birthDate = *p.BirthDate
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE profiles SET phone_number = ?, birth_date = ?, avatar = ?, bio = ?, location = ?, updated_at = ?
		WHERE user_id = ?`,
		p.PhoneNumber, birthDate, p.Avatar, p.Bio, p.Location, time.Now().UTC(), p.UserID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return expectOne(op, res, storage.ErrProfileNotFound)
}
