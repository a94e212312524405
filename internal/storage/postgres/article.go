package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"blog-portal/internal/domain/models"
	"blog-portal/internal/storage"

	"gorm.io/gorm"
)

type articleRow struct {
	ID          int64
	Title       string
	Content     string
	AuthorID    int64
	AuthorName  string
	IsPublished bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (r articleRow) model() models.Article {
	return models.Article{
		ID:          r.ID,
		Title:       r.Title,
		Content:     r.Content,
		AuthorID:    r.AuthorID,
		AuthorName:  r.AuthorName,
		IsPublished: r.IsPublished,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}

// filtered applies f to a query over "articles a".
func filtered(db *gorm.DB, f models.ArticleFilter) *gorm.DB {
	if f.Published != nil {
		if *f.Published && f.VisibleTo != 0 {
			db = db.Where("(a.is_published OR a.author_id = ?)", f.VisibleTo)
		} else {
			db = db.Where("a.is_published = ?", *f.Published)
		}
	}
	if f.AuthorID != 0 {
		db = db.Where("a.author_id = ?", f.AuthorID)
	}
	if f.ExcludeID != 0 {
		db = db.Where("a.id <> ?", f.ExcludeID)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		p := likePattern(q)
		db = db.Where("(a.title ILIKE ? OR a.content ILIKE ?)", p, p)
	}
	if q := strings.TrimSpace(f.TitleQuery); q != "" {
		db = db.Where("a.title ILIKE ?", likePattern(q))
	}
	return db
}

func ordered(db *gorm.DB, o models.ArticleOrder) *gorm.DB {
	switch o {
	case models.OrderOldest:
		return db.Order("a.created_at ASC, a.id ASC")
	case models.OrderTitle:
		return db.Order("a.title ASC, a.id ASC")
	default:
		return db.Order("a.created_at DESC, a.id DESC")
	}
}

func (s *Storage) articles(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table("articles a").
		Select("a.id, a.title, a.content, a.author_id, u.username AS author_name, a.is_published, a.created_at, a.updated_at").
		Joins("JOIN users u ON u.id = a.author_id")
}

func (s *Storage) CreateArticle(ctx context.Context, a models.Article) (int64, error) {
	const op = "storage.postgres.CreateArticle"

	rec := article{Title: a.Title, Content: a.Content, AuthorID: a.AuthorID, IsPublished: a.IsPublished}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return 0, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return rec.ID, nil
}

func (s *Storage) ArticleByID(ctx context.Context, id int64) (models.Article, error) {
	const op = "storage.postgres.ArticleByID"

	var row articleRow
	res := s.articles(ctx).Where("a.id = ?", id).Limit(1).Scan(&row)
	if res.Error != nil {
		return models.Article{}, fmt.Errorf("%s: %w", op, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.Article{}, fmt.Errorf("%s: %w", op, storage.ErrArticleNotFound)
	}

	return row.model(), nil
}

func (s *Storage) Articles(ctx context.Context, f models.ArticleFilter) ([]models.Article, error) {
	const op = "storage.postgres.Articles"

	q := ordered(filtered(s.articles(ctx), f), f.Order)
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}

	var rows []articleRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	articles := make([]models.Article, 0, len(rows))
	for _, r := range rows {
		articles = append(articles, r.model())
	}

	return articles, nil
}

func (s *Storage) CountArticles(ctx context.Context, f models.ArticleFilter) (int, error) {
	const op = "storage.postgres.CountArticles"

	var n int64
	if err := filtered(s.db.WithContext(ctx).Table("articles a"), f).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return int(n), nil
}

func (s *Storage) UpdateArticle(ctx context.Context, a models.Article) error {
	const op = "storage.postgres.UpdateArticle"

	res := s.db.WithContext(ctx).Model(&article{}).Where("id = ?", a.ID).Updates(map[string]any{
		"title":        a.Title,
		"content":      a.Content,
		"is_published": a.IsPublished,
		"updated_at":   time.Now().UTC(),
	})

	return affected(op, res, storage.ErrArticleNotFound)
}

func (s *Storage) SetPublished(ctx context.Context, ids []int64, published bool) (int64, error) {
	const op = "storage.postgres.SetPublished"

	if len(ids) == 0 {
		return 0, nil
	}

	res := s.db.WithContext(ctx).Model(&article{}).
		Where("id IN ? AND is_published <> ?", ids, published).
		Updates(map[string]any{"is_published": published, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return 0, fmt.Errorf("%s: %w", op, res.Error)
	}

	return res.RowsAffected, nil
}

func (s *Storage) RemoveArticle(ctx context.Context, id int64) error {
	const op = "storage.postgres.RemoveArticle"

	res := s.db.WithContext(ctx).Delete(&article{}, id)

	return affected(op, res, storage.ErrArticleNotFound)
}

func (s *Storage) Authors(ctx context.Context) ([]models.User, error) {
	const op = "storage.postgres.Authors"

	var recs []user
	err := s.db.WithContext(ctx).
		Where("EXISTS (SELECT 1 FROM articles a WHERE a.author_id = users.id)").
		Order("username").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(recs) == 0 {
		return nil, nil
	}

	users := make([]models.User, 0, len(recs))
	for _, r := range recs {
		users = append(users, r.model())
	}

	return users, nil
}
