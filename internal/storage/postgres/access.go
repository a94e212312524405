package postgres

import (
	"context"
	"errors"
	"fmt"

	"blog-portal/internal/domain/models"
	"blog-portal/internal/storage"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (g group) model() models.Group {
	return models.Group{ID: g.ID, Name: g.Name, Description: g.Description}
}

func groupModels(recs []group) []models.Group {
	if len(recs) == 0 {
		return nil
	}
	groups := make([]models.Group, 0, len(recs))
	for _, g := range recs {
		groups = append(groups, g.model())
	}
	return groups
}

func (s *Storage) EnsurePermissions(ctx context.Context, perms []models.Permission) error {
	const op = "storage.postgres.EnsurePermissions"

	if len(perms) == 0 {
		return nil
	}

	recs := make([]permission, 0, len(perms))
	for _, p := range perms {
		recs = append(recs, permission{ContentType: p.ContentType, Codename: p.Codename, Name: p.Name})
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "codename"}},
		DoUpdates: clause.AssignmentColumns([]string{"content_type", "name"}),
	}).Create(&recs).Error
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) Permissions(ctx context.Context) ([]models.Permission, error) {
	const op = "storage.postgres.Permissions"

	var recs []permission
	if err := s.db.WithContext(ctx).Order("content_type, codename").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	perms := make([]models.Permission, 0, len(recs))
	for _, p := range recs {
		perms = append(perms, models.Permission{ID: p.ID, ContentType: p.ContentType, Codename: p.Codename, Name: p.Name})
	}

	return perms, nil
}

// CreateGroup inserts a new group. A taken name is storage.ErrGroupExists.
func (s *Storage) CreateGroup(ctx context.Context, name, description string) (models.Group, error) {
	const op = "storage.postgres.CreateGroup"

	rec := group{Name: name, Description: description}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.Group{}, fmt.Errorf("%s: %w", op, storage.ErrGroupExists)
		}
		return models.Group{}, fmt.Errorf("%s: %w", op, err)
	}

	return rec.model(), nil
}

func (s *Storage) GetOrCreateGroup(ctx context.Context, name, description string) (models.Group, bool, error) {
	const op = "storage.postgres.GetOrCreateGroup"

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&group{Name: name, Description: description})
	if res.Error != nil {
		return models.Group{}, false, fmt.Errorf("%s: %w", op, res.Error)
	}

	g, err := s.GroupByName(ctx, name)
	if err != nil {
		return models.Group{}, false, fmt.Errorf("%s: %w", op, err)
	}

	return g, res.RowsAffected == 1, nil
}

func (s *Storage) Group(ctx context.Context, id int64) (models.Group, error) {
	const op = "storage.postgres.Group"

	var rec group
	if err := s.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Group{}, fmt.Errorf("%s: %w", op, storage.ErrGroupNotFound)
		}
		return models.Group{}, fmt.Errorf("%s: %w", op, err)
	}

	return rec.model(), nil
}

func (s *Storage) GroupByName(ctx context.Context, name string) (models.Group, error) {
	const op = "storage.postgres.GroupByName"

	var rec group
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Group{}, fmt.Errorf("%s: %w", op, storage.ErrGroupNotFound)
		}
		return models.Group{}, fmt.Errorf("%s: %w", op, err)
	}

	return rec.model(), nil
}

func (s *Storage) Groups(ctx context.Context) ([]models.Group, error) {
	const op = "storage.postgres.Groups"

	var recs []group
	if err := s.db.WithContext(ctx).Order("name").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return groupModels(recs), nil
}

func (s *Storage) GroupsOf(ctx context.Context, userID int64) ([]models.Group, error) {
	const op = "storage.postgres.GroupsOf"

	var recs []group
	err := s.db.WithContext(ctx).
		Joins("JOIN membership ON membership.grp = grp.id").
		Where("membership.usr = ?", userID).
		Order("grp.name").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return groupModels(recs), nil
}

func (s *Storage) SetGroupPermissions(ctx context.Context, groupID int64, codenames []string) error {
	const op = "storage.postgres.SetGroupPermissions"

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("grp = ?", groupID).Delete(&groupPermission{}).Error; err != nil {
			return err
		}
		if len(codenames) == 0 {
			return nil
		}
		return tx.Exec(`
			INSERT INTO grp_permissions (grp, permission)
			SELECT ?, id FROM permissions WHERE codename IN ?`, groupID, codenames).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return fmt.Errorf("%s: %w", op, storage.ErrGroupNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) GroupPermissions(ctx context.Context, groupID int64) ([]string, error) {
	const op = "storage.postgres.GroupPermissions"

	var codes []string
	err := s.db.WithContext(ctx).Model(&permission{}).
		Joins("JOIN grp_permissions gp ON gp.permission = permissions.id").
		Where("gp.grp = ?", groupID).
		Order("permissions.codename").
		Pluck("permissions.codename", &codes).Error
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return codes, nil
}

func (s *Storage) UserPermissions(ctx context.Context, userID int64) ([]string, error) {
	const op = "storage.postgres.UserPermissions"

	var codes []string
	err := s.db.WithContext(ctx).Model(&permission{}).
		Distinct("permissions.codename").
		Joins("JOIN grp_permissions gp ON gp.permission = permissions.id").
		Joins("JOIN membership m ON m.grp = gp.grp").
		Where("m.usr = ?", userID).
		Order("permissions.codename").
		Pluck("permissions.codename", &codes).Error
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return codes, nil
}

func (s *Storage) AddMember(ctx context.Context, groupID, userID int64) error {
	const op = "storage.postgres.AddMember"

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&membership{GroupID: groupID, UserID: userID}).Error
	if err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return fmt.Errorf("%s: %w", op, storage.ErrGroupNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) RemoveMember(ctx context.Context, groupID, userID int64) error {
	const op = "storage.postgres.RemoveMember"

	err := s.db.WithContext(ctx).Where("grp = ? AND usr = ?", groupID, userID).Delete(&membership{}).Error
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
