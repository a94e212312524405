package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"blog-portal/internal/domain/models"
	"blog-portal/internal/storage"

	"github.com/mattn/go-sqlite3"
)

const userColumns = `u.id, u.username, u.email, u.first_name, u.last_name, u.pass_hash,
	u.is_active, u.is_staff, u.is_superuser, u.date_joined, u.last_login`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner, u *models.User, extra ...any) error {
	var lastLogin sql.NullTime

	dest := []any{
		&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.PassHash,
		&u.IsActive, &u.IsStaff, &u.IsSuperuser, &u.DateJoined, &lastLogin,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}

	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}

	return nil
}

func isUnique(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

func isForeignKey(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}

// CreateUser inserts the user together with an empty profile and adds it to
// the named groups, creating missing ones. Everything happens in one
// transaction.
func (s *Storage) CreateUser(ctx context.Context, u models.User, groups ...string) (int64, error) {
	const op = "storage.sqlite.CreateUser"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	if u.DateJoined.IsZero() {
		u.DateJoined = time.Now().UTC()
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO users (username, email, first_name, last_name, pass_hash, is_active, is_staff, is_superuser, date_joined)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.Email, u.FirstName, u.LastName, u.PassHash, u.IsActive, u.IsStaff, u.IsSuperuser, u.DateJoined,
	)
	if err != nil {
		if isUnique(err) {
			return 0, fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO profiles (user_id, created_at, updated_at) VALUES (?, ?, ?)`, id, now, now,
	); err != nil {
		return 0, fmt.Errorf("%s: create profile: %w", op, err)
	}

	for _, name := range groups {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO grp (name) VALUES (?)`, name); err != nil {
			return 0, fmt.Errorf("%s: ensure group %q: %w", op, name, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO membership (grp, usr)
			SELECT id, ? FROM grp WHERE name = ?`, id, name,
		); err != nil {
			return 0, fmt.Errorf("%s: join group %q: %w", op, name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (s *Storage) UserByID(ctx context.Context, id int64) (models.User, error) {
	const op = "storage.sqlite.UserByID"

	stmt, err := s.db.PrepareContext(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = ?`)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	var user models.User
	if err := scanUser(stmt.QueryRowContext(ctx, id), &user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (s *Storage) UserByName(ctx context.Context, username string) (models.User, error) {
	const op = "storage.sqlite.UserByName"

	stmt, err := s.db.PrepareContext(ctx, `SELECT `+userColumns+` FROM users u WHERE u.username = ?`)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	var user models.User
	if err := scanUser(stmt.QueryRowContext(ctx, username), &user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// Users lists users ordered by username, each joined with its profile.
func (s *Storage) Users(ctx context.Context, limit, offset int) ([]models.UserWithProfile, error) {
	const op = "storage.sqlite.Users"

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`, `+profileColumns+`
		FROM users u LEFT JOIN profiles p ON p.user_id = u.id
		ORDER BY u.username
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var users []models.UserWithProfile
	for rows.Next() {
		var (
			item models.UserWithProfile
			pr   nullProfile
		)
		if err := scanUser(rows, &item.User, pr.dest()...); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		item.Profile = pr.profile()
		users = append(users, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return users, nil
}

func (s *Storage) CountUsers(ctx context.Context) (int, error) {
	const op = "storage.sqlite.CountUsers"

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

// UpdateUser stores the editable account fields of u.
func (s *Storage) UpdateUser(ctx context.Context, u models.User) error {
	const op = "storage.sqlite.UpdateUser"

	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET email = ?, first_name = ?, last_name = ?, is_active = ?, is_staff = ?, is_superuser = ?
		WHERE id = ?`,
		u.Email, u.FirstName, u.LastName, u.IsActive, u.IsStaff, u.IsSuperuser, u.ID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return expectOne(op, res, storage.ErrUserNotFound)
}

func (s *Storage) SetPassword(ctx context.Context, id int64, passHash []byte) error {
	const op = "storage.sqlite.SetPassword"

	res, err := s.db.ExecContext(ctx, `UPDATE users SET pass_hash = ? WHERE id = ?`, passHash, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return expectOne(op, res, storage.ErrUserNotFound)
}

func (s *Storage) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	const op = "storage.sqlite.TouchLastLogin"

	res, err := s.db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return expectOne(op, res, storage.ErrUserNotFound)
}

// RemoveUser deletes the user. Profile, memberships and articles go with it.
func (s *Storage) RemoveUser(ctx context.Context, id int64) error {
	const op = "storage.sqlite.RemoveUser"

	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return expectOne(op, res, storage.ErrUserNotFound)
}

func expectOne(op string, res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, notFound)
	}
	return nil
}
