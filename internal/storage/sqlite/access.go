package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"blog-portal/internal/domain/models"
	"blog-portal/internal/storage"
)

// EnsurePermissions inserts missing permissions and refreshes names of
// existing ones.
func (s *Storage) EnsurePermissions(ctx context.Context, perms []models.Permission) error {
	const op = "storage.sqlite.EnsurePermissions"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO permissions (content_type, codename, name) VALUES (?, ?, ?)
		ON CONFLICT (codename) DO UPDATE SET content_type = excluded.content_type, name = excluded.name`)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	for _, p := range perms {
		if _, err := stmt.ExecContext(ctx, p.ContentType, p.Codename, p.Name); err != nil {
			return fmt.Errorf("%s: %s: %w", op, p.Codename, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) Permissions(ctx context.Context) ([]models.Permission, error) {
	const op = "storage.sqlite.Permissions"

	rows, err := s.db.QueryContext(ctx, `SELECT id, content_type, codename, name FROM permissions ORDER BY content_type, codename`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var perms []models.Permission
	for rows.Next() {
		var p models.Permission
		if err := rows.Scan(&p.ID, &p.ContentType, &p.Codename, &p.Name); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return perms, nil
}

// CreateGroup inserts a new group. A taken name is storage.ErrGroupExists.
func (s *Storage) CreateGroup(ctx context.Context, name, description string) (models.Group, error) {
	const op = "storage.sqlite.CreateGroup"

	res, err := s.db.ExecContext(ctx, `INSERT INTO grp (name, description) VALUES (?, ?)`, name, description)
	if err != nil {
		if isUnique(err) {
			return models.Group{}, fmt.Errorf("%s: %w", op, storage.ErrGroupExists)
		}
		return models.Group{}, fmt.Errorf("%s: %w", op, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.Group{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.Group{ID: id, Name: name, Description: description}, nil
}

// GetOrCreateGroup returns the group with the given name, creating it with
// the description when missing. created reports whether it was inserted.
func (s *Storage) GetOrCreateGroup(ctx context.Context, name, description string) (models.Group, bool, error) {
	const op = "storage.sqlite.GetOrCreateGroup"

	res, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO grp (name, description) VALUES (?, ?)`, name, description)
	if err != nil {
		return models.Group{}, false, fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return models.Group{}, false, fmt.Errorf("%s: %w", op, err)
	}

	g, err := s.GroupByName(ctx, name)
	if err != nil {
		return models.Group{}, false, fmt.Errorf("%s: %w", op, err)
	}

	return g, n == 1, nil
}

func (s *Storage) Group(ctx context.Context, id int64) (models.Group, error) {
	const op = "storage.sqlite.Group"

	var g models.Group
	err := s.db.QueryRowContext(ctx, `SELECT id, name, description FROM grp WHERE id = ?`, id).
		Scan(&g.ID, &g.Name, &g.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Group{}, fmt.Errorf("%s: %w", op, storage.ErrGroupNotFound)
		}
		return models.Group{}, fmt.Errorf("%s: %w", op, err)
	}

	return g, nil
}

func (s *Storage) GroupByName(ctx context.Context, name string) (models.Group, error) {
	const op = "storage.sqlite.GroupByName"

	var g models.Group
	err := s.db.QueryRowContext(ctx, `SELECT id, name, description FROM grp WHERE name = ?`, name).
		Scan(&g.ID, &g.Name, &g.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Group{}, fmt.Errorf("%s: %w", op, storage.ErrGroupNotFound)
		}
		return models.Group{}, fmt.Errorf("%s: %w", op, err)
	}

	return g, nil
}

func (s *Storage) Groups(ctx context.Context) ([]models.Group, error) {
	const op = "storage.sqlite.Groups"

	groups, err := s.queryGroups(ctx, `SELECT id, name, description FROM grp ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return groups, nil
}

func (s *Storage) GroupsOf(ctx context.Context, userID int64) ([]models.Group, error) {
	const op = "storage.sqlite.GroupsOf"

	groups, err := s.queryGroups(ctx, `
		SELECT grp.id, grp.name, grp.description
		FROM grp JOIN membership ON membership.grp = grp.id
		WHERE membership.usr = ?
		ORDER BY grp.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return groups, nil
}

func (s *Storage) queryGroups(ctx context.Context, query string, args ...any) ([]models.Group, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []models.Group
	for rows.Next() {
		var g models.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Description); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}

	return groups, rows.Err()
}

// SetGroupPermissions replaces the permissions of the group with the given
// codenames. Unknown codenames are ignored.
func (s *Storage) SetGroupPermissions(ctx context.Context, groupID int64, codenames []string) error {
	const op = "storage.sqlite.SetGroupPermissions"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM grp_permissions WHERE grp = ?`, groupID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if len(codenames) > 0 {
		args := []any{groupID}
		for _, c := range codenames {
			args = append(args, c)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO grp_permissions (grp, permission)
			SELECT ?, id FROM permissions WHERE codename IN (`+placeholders(len(codenames))+`)`, args...)
		if err != nil {
			if isForeignKey(err) {
				return fmt.Errorf("%s: %w", op, storage.ErrGroupNotFound)
			}
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) GroupPermissions(ctx context.Context, groupID int64) ([]string, error) {
	const op = "storage.sqlite.GroupPermissions"

	codes, err := s.queryStrings(ctx, `
		SELECT p.codename FROM permissions p JOIN grp_permissions gp ON gp.permission = p.id
		WHERE gp.grp = ?
		ORDER BY p.codename`, groupID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return codes, nil
}

// UserPermissions returns the union of the permissions of all groups the
// user belongs to.
func (s *Storage) UserPermissions(ctx context.Context, userID int64) ([]string, error) {
	const op = "storage.sqlite.UserPermissions"

	codes, err := s.queryStrings(ctx, `
		SELECT DISTINCT p.codename
		FROM permissions p
		JOIN grp_permissions gp ON gp.permission = p.id
		JOIN membership m ON m.grp = gp.grp
		WHERE m.usr = ?
		ORDER BY p.codename`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return codes, nil
}

func (s *Storage) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}

	return out, rows.Err()
}

// AddMember is a no-op when the user already belongs to the group.
func (s *Storage) AddMember(ctx context.Context, groupID, userID int64) error {
	const op = "storage.sqlite.AddMember"

	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO membership (grp, usr) VALUES (?, ?)`, groupID, userID)
	if err != nil {
		if isForeignKey(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrGroupNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) RemoveMember(ctx context.Context, groupID, userID int64) error {
	const op = "storage.sqlite.RemoveMember"

	if _, err := s.db.ExecContext(ctx, `DELETE FROM membership WHERE grp = ? AND usr = ?`, groupID, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
