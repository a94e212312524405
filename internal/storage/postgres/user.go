package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"blog-portal/internal/domain/models"
	"blog-portal/internal/storage"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (u user) model() models.User {
	return models.User{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		PassHash:    u.PassHash,
		IsActive:    u.IsActive,
		IsStaff:     u.IsStaff,
		IsSuperuser: u.IsSuperuser,
		DateJoined:  u.DateJoined,
		LastLogin:   u.LastLogin,
	}
}

func (p profile) model() models.Profile {
	return models.Profile{
		ID:          p.ID,
		UserID:      p.UserID,
		PhoneNumber: p.PhoneNumber,
		BirthDate:   p.BirthDate,
		Avatar:      p.Avatar,
		Bio:         p.Bio,
		Location:    p.Location,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// CreateUser inserts the user, an empty profile and the memberships of the
// named groups in one transaction.
func (s *Storage) CreateUser(ctx context.Context, u models.User, groups ...string) (int64, error) {
	const op = "storage.postgres.CreateUser"

	rec := user{
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		PassHash:    u.PassHash,
		IsActive:    u.IsActive,
		IsStaff:     u.IsStaff,
		IsSuperuser: u.IsSuperuser,
		DateJoined:  u.DateJoined,
	}
	if rec.DateJoined.IsZero() {
		rec.DateJoined = time.Now().UTC()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}

		if err := tx.Create(&profile{UserID: rec.ID}).Error; err != nil {
			return fmt.Errorf("create profile: %w", err)
		}

		for _, name := range groups {
			g := group{Name: name}
			if err := tx.Where(group{Name: name}).FirstOrCreate(&g).Error; err != nil {
				return fmt.Errorf("ensure group %q: %w", name, err)
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&membership{GroupID: g.ID, UserID: rec.ID}).Error; err != nil {
				return fmt.Errorf("join group %q: %w", name, err)
			}
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return 0, fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return rec.ID, nil
}

func (s *Storage) UserByID(ctx context.Context, id int64) (models.User, error) {
	const op = "storage.postgres.UserByID"

	var rec user
	if err := s.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return rec.model(), nil
}

func (s *Storage) UserByName(ctx context.Context, username string) (models.User, error) {
	const op = "storage.postgres.UserByName"

	var rec user
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return rec.model(), nil
}

func (s *Storage) Users(ctx context.Context, limit, offset int) ([]models.UserWithProfile, error) {
	const op = "storage.postgres.Users"

	var recs []user
	if err := s.db.WithContext(ctx).Order("username").Limit(limit).Offset(offset).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(recs) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ID)
	}

	var profiles []profile
	if err := s.db.WithContext(ctx).Where("user_id IN ?", ids).Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	byUser := make(map[int64]profile, len(profiles))
	for _, p := range profiles {
		byUser[p.UserID] = p
	}

	users := make([]models.UserWithProfile, 0, len(recs))
	for _, r := range recs {
		users = append(users, models.UserWithProfile{User: r.model(), Profile: byUser[r.ID].model()})
	}

	return users, nil
}

func (s *Storage) CountUsers(ctx context.Context) (int, error) {
	const op = "storage.postgres.CountUsers"

	var n int64
	if err := s.db.WithContext(ctx).Model(&user{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return int(n), nil
}

func (s *Storage) UpdateUser(ctx context.Context, u models.User) error {
	const op = "storage.postgres.UpdateUser"

	res := s.db.WithContext(ctx).Model(&user{}).Where("id = ?", u.ID).Updates(map[string]any{
		"email":        u.Email,
		"first_name":   u.FirstName,
		"last_name":    u.LastName,
		"is_active":    u.IsActive,
		"is_staff":     u.IsStaff,
		"is_superuser": u.IsSuperuser,
	})

	return affected(op, res, storage.ErrUserNotFound)
}

func (s *Storage) SetPassword(ctx context.Context, id int64, passHash []byte) error {
	const op = "storage.postgres.SetPassword"

	res := s.db.WithContext(ctx).Model(&user{}).Where("id = ?", id).Update("pass_hash", passHash)

	return affected(op, res, storage.ErrUserNotFound)
}

func (s *Storage) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	const op = "storage.postgres.TouchLastLogin"

	res := s.db.WithContext(ctx).Model(&user{}).Where("id = ?", id).Update("last_login", at.UTC())

	return affected(op, res, storage.ErrUserNotFound)
}

func (s *Storage) RemoveUser(ctx context.Context, id int64) error {
	const op = "storage.postgres.RemoveUser"

	res := s.db.WithContext(ctx).Delete(&user{}, id)

	return affected(op, res, storage.ErrUserNotFound)
}

func (s *Storage) ProfileByUser(ctx context.Context, userID int64) (models.Profile, error) {
	const op = "storage.postgres.ProfileByUser"

	var rec profile
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Profile{}, fmt.Errorf("%s: %w", op, storage.ErrProfileNotFound)
		}
		return models.Profile{}, fmt.Errorf("%s: %w", op, err)
	}

	return rec.model(), nil
}

func (s *Storage) CreateProfile(ctx context.Context, userID int64) (models.Profile, error) {
	const op = "storage.postgres.CreateProfile"

	rec := profile{UserID: userID}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return models.Profile{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return models.Profile{}, fmt.Errorf("%s: %w", op, err)
	}

	return rec.model(), nil
}

func (s *Storage) UpdateProfile(ctx context.Context, p models.Profile) error {
	const op = "storage.postgres.UpdateProfile"

	res := s.db.WithContext(ctx).Model(&profile{}).Where("user_id = ?", p.UserID).Updates(map[string]any{
		"phone_number": p.PhoneNumber,
		"birth_date":   p.BirthDate,
		"avatar":       p.Avatar,
		"bio":          p.Bio,
		"location":     p.Location,
		"updated_at":   time.Now().UTC(),
	})

	return affected(op, res, storage.ErrProfileNotFound)
}

func affected(op string, res *gorm.DB, notFound error) error {
	if res.Error != nil {
		return fmt.Errorf("%s: %w", op, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, notFound)
	}
	return nil
}
