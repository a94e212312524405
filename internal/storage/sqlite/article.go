package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"blog-portal/internal/domain/models"
	"blog-portal/internal/storage"
)

const articleColumns = `a.id, a.title, a.content, a.author_id, u.username, a.is_published, a.created_at, a.updated_at`

func scanArticle(row scanner, a *models.Article) error {
	return row.Scan(&a.ID, &a.Title, &a.Content, &a.AuthorID, &a.AuthorName, &a.IsPublished, &a.CreatedAt, &a.UpdatedAt)
}

// likePattern escapes LIKE wildcards in q and wraps it in %.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}

func articleWhere(f models.ArticleFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)

	if f.Published != nil {
		if *f.Published && f.VisibleTo != 0 {
			conds = append(conds, `(a.is_published = 1 OR a.author_id = ?)`)
			args = append(args, f.VisibleTo)
		} else {
			conds = append(conds, `a.is_published = ?`)
			args = append(args, *f.Published)
		}
	}
	if f.AuthorID != 0 {
		conds = append(conds, `a.author_id = ?`)
		args = append(args, f.AuthorID)
	}
	if f.ExcludeID != 0 {
		conds = append(conds, `a.id <> ?`)
		args = append(args, f.ExcludeID)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		conds = append(conds, `(a.title LIKE ? ESCAPE '\' OR a.content LIKE ? ESCAPE '\')`)
		args = append(args, likePattern(q), likePattern(q))
	}
	if q := strings.TrimSpace(f.TitleQuery); q != "" {
		conds = append(conds, `a.title LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(q))
	}

	if len(conds) == 0 {
		return "", nil
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}

func articleOrder(o models.ArticleOrder) string {
	switch o {
	case models.OrderOldest:
		return " ORDER BY a.created_at ASC, a.id ASC"
	case models.OrderTitle:
		return " ORDER BY a.title ASC, a.id ASC"
	default:
		return " ORDER BY a.created_at DESC, a.id DESC"
	}
}

func (s *Storage) CreateArticle(ctx context.Context, a models.Article) (int64, error) {
	const op = "storage.sqlite.CreateArticle"

	now := time.Now().UTC()

	stmt, err := s.db.PrepareContext(ctx, `
		INSERT INTO articles (title, content, author_id, is_published, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx, a.Title, a.Content, a.AuthorID, a.IsPublished, now, now)
	if err != nil {
		if isForeignKey(err) {
			return 0, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (s *Storage) ArticleByID(ctx context.Context, id int64) (models.Article, error) {
	const op = "storage.sqlite.ArticleByID"

	stmt, err := s.db.PrepareContext(ctx, `
		SELECT `+articleColumns+`
		FROM articles a JOIN users u ON u.id = a.author_id
		WHERE a.id = ?`)
	if err != nil {
		return models.Article{}, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	var a models.Article
	if err := scanArticle(stmt.QueryRowContext(ctx, id), &a); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Article{}, fmt.Errorf("%s: %w", op, storage.ErrArticleNotFound)
		}
		return models.Article{}, fmt.Errorf("%s: %w", op, err)
	}

	return a, nil
}

func (s *Storage) Articles(ctx context.Context, f models.ArticleFilter) ([]models.Article, error) {
	const op = "storage.sqlite.Articles"

	where, args := articleWhere(f)
	query := `SELECT ` + articleColumns + ` FROM articles a JOIN users u ON u.id = a.author_id` + where + articleOrder(f.Order)
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var articles []models.Article
	for rows.Next() {
		var a models.Article
		if err := scanArticle(rows, &a); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return articles, nil
}

// CountArticles counts the articles matching f, ignoring its paging.
func (s *Storage) CountArticles(ctx context.Context, f models.ArticleFilter) (int, error) {
	const op = "storage.sqlite.CountArticles"

	where, args := articleWhere(f)

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles a`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

// UpdateArticle stores title, content and the published flag of a.
func (s *Storage) UpdateArticle(ctx context.Context, a models.Article) error {
	const op = "storage.sqlite.UpdateArticle"

	res, err := s.db.ExecContext(ctx, `
		UPDATE articles SET title = ?, content = ?, is_published = ?, updated_at = ?
		WHERE id = ?`,
		a.Title, a.Content, a.IsPublished, time.Now().UTC(), a.ID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return expectOne(op, res, storage.ErrArticleNotFound)
}

// SetPublished flips the published flag of the given articles and returns
// how many rows changed.
func (s *Storage) SetPublished(ctx context.Context, ids []int64, published bool) (int64, error) {
	const op = "storage.sqlite.SetPublished"

	if len(ids) == 0 {
		return 0, nil
	}

	args := []any{published, time.Now().UTC(), published}
	for _, id := range ids {
		args = append(args, id)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE articles SET is_published = ?, updated_at = ?
		WHERE is_published <> ? AND id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

func (s *Storage) RemoveArticle(ctx context.Context, id int64) error {
	const op = "storage.sqlite.RemoveArticle"

	res, err := s.db.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return expectOne(op, res, storage.ErrArticleNotFound)
}

// Authors returns users having at least one article, ordered by username.
func (s *Storage) Authors(ctx context.Context) ([]models.User, error) {
	const op = "storage.sqlite.Authors"

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users u
		WHERE EXISTS (SELECT 1 FROM articles a WHERE a.author_id = u.id)
		ORDER BY u.username`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := scanUser(rows, &u); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return users, nil
}
