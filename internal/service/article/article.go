package article

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"blog-portal/internal/domain/models"
	"blog-portal/internal/lib/logger/sl"
	"blog-portal/internal/lib/paginator"
	"blog-portal/internal/lib/validate"
	"blog-portal/internal/storage"
)

const (
	PerPage = 10

	// detail page side lists
	otherByAuthorLimit = 3
	recentLimit        = 5

	descriptionLength = 150
)

var (
	ErrArticleNotFound = errors.New("article not found")
	ErrForbidden       = errors.New("permission denied")
	ErrUnknownAction   = errors.New("unknown action")
)

type Storage interface {
	CreateArticle(ctx context.Context, a models.Article) (int64, error)
	ArticleByID(ctx context.Context, id int64) (models.Article, error)
	Articles(ctx context.Context, f models.ArticleFilter) ([]models.Article, error)
	CountArticles(ctx context.Context, f models.ArticleFilter) (int, error)
	UpdateArticle(ctx context.Context, a models.Article) error
	SetPublished(ctx context.Context, ids []int64, published bool) (int64, error)
	RemoveArticle(ctx context.Context, id int64) error
	Authors(ctx context.Context) ([]models.User, error)
	ProfileByUser(ctx context.Context, userID int64) (models.Profile, error)
}

// Input is the article form.
type Input struct {
	Title       string `form:"title" json:"title" validate:"required,max=200"`
	Content     string `form:"content" json:"content" validate:"required"`
	IsPublished bool   `form:"is_published" json:"is_published"`
}

type Page struct {
	Articles []models.Article
	Page     paginator.Page
}

// Detail is everything the article page shows.
type Detail struct {
	Article       models.Article
	AuthorProfile models.Profile
	OtherByAuthor []models.Article
	Recent        []models.Article
	Description   string
	IsAuthor      bool
	CanEdit       bool
	CanDelete     bool
	CanPublish    bool
	CanUnpublish  bool
}

type Service struct {
	log     *slog.Logger
	storage Storage
}

func New(log *slog.Logger, storage Storage) *Service {
	return &Service{
		log:     log,
		storage: storage,
	}
}

// visibleFilter selects the articles acc may see.
func visibleFilter(acc *models.Account) models.ArticleFilter {
	if acc.HasPerm(models.PermViewUnpublished) {
		return models.ArticleFilter{}
	}
	return models.ArticleFilter{Published: models.Bool(true), VisibleTo: acc.UserID()}
}

// List returns one page of the articles visible to acc, newest first.
func (s *Service) List(ctx context.Context, acc *models.Account, page int) (Page, error) {
	const op = "service.article.List"

	f := visibleFilter(acc)

	total, err := s.storage.CountArticles(ctx, f)
	if err != nil {
		s.log.Error("failed to count articles", slog.String("op", op), sl.Error(err))
		return Page{}, fmt.Errorf("%s: %w", op, err)
	}

	pg, err := paginator.New(total, PerPage, page)
	if err != nil {
		return Page{}, fmt.Errorf("%s: %w", op, err)
	}

	f.Order = models.OrderNewest
	f.Limit = pg.PerPage
	f.Offset = pg.Offset()

	arts, err := s.storage.Articles(ctx, f)
	if err != nil {
		s.log.Error("failed to list articles", slog.String("op", op), sl.Error(err))
		return Page{}, fmt.Errorf("%s: %w", op, err)
	}

	return Page{Articles: arts, Page: pg}, nil
}

// Get returns the article when acc may view it. Hidden articles are reported
// as missing.
func (s *Service) Get(ctx context.Context, acc *models.Account, id int64) (models.Article, error) {
	const op = "service.article.Get"

	a, err := s.load(ctx, id)
	if err != nil {
		return models.Article{}, fmt.Errorf("%s: %w", op, err)
	}
	if !CanView(acc, a) {
		return models.Article{}, fmt.Errorf("%s: %w", op, ErrArticleNotFound)
	}

	return a, nil
}

func (s *Service) Detail(ctx context.Context, acc *models.Account, id int64) (Detail, error) {
	const op = "service.article.Detail"

	log := s.log.With(slog.String("op", op))

	a, err := s.Get(ctx, acc, id)
	if err != nil {
		return Detail{}, fmt.Errorf("%s: %w", op, err)
	}

	d := Detail{
		Article:      a,
		Description:  truncate(a.Content, descriptionLength),
		IsAuthor:     isAuthor(acc, a),
		CanEdit:      CanEdit(acc, a),
		CanDelete:    CanDelete(acc, a),
		CanPublish:   !a.IsPublished && CanPublish(acc),
		CanUnpublish: a.IsPublished && CanUnpublish(acc),
	}

	d.AuthorProfile, err = s.storage.ProfileByUser(ctx, a.AuthorID)
	if err != nil && !errors.Is(err, storage.ErrProfileNotFound) {
		log.Error("failed to get author profile", sl.Error(err))
		return Detail{}, fmt.Errorf("%s: %w", op, err)
	}

	d.OtherByAuthor, err = s.storage.Articles(ctx, models.ArticleFilter{
		Published: models.Bool(true),
		AuthorID:  a.AuthorID,
		ExcludeID: a.ID,
		Order:     models.OrderNewest,
		Limit:     otherByAuthorLimit,
	})
	if err != nil {
		log.Error("failed to get author articles", sl.Error(err))
		return Detail{}, fmt.Errorf("%s: %w", op, err)
	}

	d.Recent, err = s.storage.Articles(ctx, models.ArticleFilter{
		Published: models.Bool(true),
		ExcludeID: a.ID,
		Order:     models.OrderNewest,
		Limit:     recentLimit,
	})
	if err != nil {
		log.Error("failed to get recent articles", sl.Error(err))
		return Detail{}, fmt.Errorf("%s: %w", op, err)
	}

	return d, nil
}

// Create stores a new article by acc. It is published only when acc may
// publish.
func (s *Service) Create(ctx context.Context, acc *models.Account, in Input) (models.Article, error) {
	const op = "service.article.Create"

	log := s.log.With(slog.String("op", op))

	if !CanCreate(acc) {
		return models.Article{}, fmt.Errorf("%s: %w", op, ErrForbidden)
	}
	if err := validate.Struct(in); err != nil {
		return models.Article{}, fmt.Errorf("%s: %w", op, err)
	}

	a := models.Article{
		Title:       strings.TrimSpace(in.Title),
		Content:     in.Content,
		AuthorID:    acc.ID,
		AuthorName:  acc.Username,
		IsPublished: in.IsPublished && mayChangeStatus(acc, true),
	}

	// Send to storage layer
	id, err := s.storage.CreateArticle(ctx, a)
	if err != nil {
		log.Error("failed to create article", sl.Error(err))
		return models.Article{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("article created", slog.Int64("id", id), slog.String("author", acc.Username), slog.Bool("published", a.IsPublished))

	return s.load(ctx, id)
}

// Update stores new title and content. The published flag changes only when
// acc holds the matching permission.
func (s *Service) Update(ctx context.Context, acc *models.Account, id int64, in Input) (models.Article, error) {
	const op = "service.article.Update"

	log := s.log.With(slog.String("op", op))

	a, err := s.editable(ctx, acc, id)
	if err != nil {
		return models.Article{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := validate.Struct(in); err != nil {
		return models.Article{}, fmt.Errorf("%s: %w", op, err)
	}

	a.Title = strings.TrimSpace(in.Title)
	a.Content = in.Content
	if in.IsPublished != a.IsPublished {
		if mayChangeStatus(acc, in.IsPublished) {
			a.IsPublished = in.IsPublished
		} else {
			log.Info("status change ignored", slog.Int64("id", id), slog.String("user", acc.Username))
		}
	}

	if err := s.storage.UpdateArticle(ctx, a); err != nil {
		if errors.Is(err, storage.ErrArticleNotFound) {
			return models.Article{}, fmt.Errorf("%s: %w", op, ErrArticleNotFound)
		}
		log.Error("failed to update article", sl.Error(err))
		return models.Article{}, fmt.Errorf("%s: %w", op, err)
	}

	return s.load(ctx, id)
}

// Delete removes the article and returns it as it was.
func (s *Service) Delete(ctx context.Context, acc *models.Account, id int64) (models.Article, error) {
	const op = "service.article.Delete"

	log := s.log.With(slog.String("op", op))

	a, err := s.load(ctx, id)
	if err != nil {
		return models.Article{}, fmt.Errorf("%s: %w", op, err)
	}
	if !CanView(acc, a) && !CanDelete(acc, a) {
		return models.Article{}, fmt.Errorf("%s: %w", op, ErrArticleNotFound)
	}
	if !CanDelete(acc, a) {
		return models.Article{}, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	if err := s.storage.RemoveArticle(ctx, id); err != nil {
		if errors.Is(err, storage.ErrArticleNotFound) {
			return models.Article{}, fmt.Errorf("%s: %w", op, ErrArticleNotFound)
		}
		log.Error("failed to remove article", sl.Error(err))
		return models.Article{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("article deleted", slog.Int64("id", id), slog.String("by", acc.Username))

	return a, nil
}

func (s *Service) Publish(ctx context.Context, acc *models.Account, id int64) (models.Article, error) {
	const op = "service.article.Publish"

	a, err := s.setStatus(ctx, acc, id, true)
	if err != nil {
		return models.Article{}, fmt.Errorf("%s: %w", op, err)
	}

	return a, nil
}

func (s *Service) Unpublish(ctx context.Context, acc *models.Account, id int64) (models.Article, error) {
	const op = "service.article.Unpublish"

	a, err := s.setStatus(ctx, acc, id, false)
	if err != nil {
		return models.Article{}, fmt.Errorf("%s: %w", op, err)
	}

	return a, nil
}

func (s *Service) setStatus(ctx context.Context, acc *models.Account, id int64, published bool) (models.Article, error) {
	allowed := CanUnpublish(acc)
	if published {
		allowed = CanPublish(acc)
	}

	a, err := s.load(ctx, id)
	if err != nil {
		return models.Article{}, err
	}
	if !CanView(acc, a) && !allowed {
		return models.Article{}, ErrArticleNotFound
	}
	if !allowed {
		return models.Article{}, ErrForbidden
	}

	if _, err := s.storage.SetPublished(ctx, []int64{id}, published); err != nil {
		s.log.Error("failed to set status", slog.Int64("id", id), sl.Error(err))
		return models.Article{}, err
	}

	s.log.Info("article status changed",
		slog.Int64("id", id),
		slog.Bool("published", published),
		slog.String("by", acc.Username),
	)

	a.IsPublished = published
	return a, nil
}

// BulkCandidates returns every article, newest first, for the bulk status page.
func (s *Service) BulkCandidates(ctx context.Context, acc *models.Account) ([]models.Article, error) {
	const op = "service.article.BulkCandidates"

	if !CanBulk(acc) {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	arts, err := s.storage.Articles(ctx, models.ArticleFilter{Order: models.OrderNewest})
	if err != nil {
		s.log.Error("failed to list articles", slog.String("op", op), sl.Error(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return arts, nil
}

// Bulk publishes or unpublishes the given articles and returns how many
// changed. action is "publish" or "unpublish".
func (s *Service) Bulk(ctx context.Context, acc *models.Account, ids []int64, action string) (int64, error) {
	const op = "service.article.Bulk"

	if !CanBulk(acc) {
		return 0, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	var published bool
	switch action {
	case "publish":
		published = true
	case "unpublish":
	default:
		return 0, fmt.Errorf("%s: %w: %q", op, ErrUnknownAction, action)
	}

	n, err := s.storage.SetPublished(ctx, ids, published)
	if err != nil {
		s.log.Error("failed to set status", slog.String("op", op), sl.Error(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("bulk status change", slog.String("op", op), slog.String("action", action), slog.Int64("changed", n))

	return n, nil
}

// AuthorStats summarises the articles of one author.
type AuthorStats struct {
	Total     int
	Published int
	Drafts    int
	Recent    []models.Article
}

func (s *Service) AuthorStats(ctx context.Context, authorID int64) (AuthorStats, error) {
	const op = "service.article.AuthorStats"

	var (
		st  AuthorStats
		err error
	)

	st.Total, err = s.storage.CountArticles(ctx, models.ArticleFilter{AuthorID: authorID})
	if err != nil {
		return AuthorStats{}, fmt.Errorf("%s: %w", op, err)
	}
	st.Published, err = s.storage.CountArticles(ctx, models.ArticleFilter{AuthorID: authorID, Published: models.Bool(true)})
	if err != nil {
		return AuthorStats{}, fmt.Errorf("%s: %w", op, err)
	}
	st.Drafts = st.Total - st.Published

	st.Recent, err = s.storage.Articles(ctx, models.ArticleFilter{
		AuthorID: authorID,
		Order:    models.OrderNewest,
		Limit:    recentLimit,
	})
	if err != nil {
		return AuthorStats{}, fmt.Errorf("%s: %w", op, err)
	}

	return st, nil
}

// Count returns the number of articles of every status.
func (s *Service) Count(ctx context.Context) (int, error) {
	const op = "service.article.Count"

	n, err := s.storage.CountArticles(ctx, models.ArticleFilter{})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

func (s *Service) load(ctx context.Context, id int64) (models.Article, error) {
	a, err := s.storage.ArticleByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrArticleNotFound) {
			return models.Article{}, ErrArticleNotFound
		}
		s.log.Error("failed to get article", slog.Int64("id", id), sl.Error(err))
		return models.Article{}, err
	}
	return a, nil
}

// editable loads an article for editing. Articles acc can neither see nor
// edit are reported as missing.
func (s *Service) editable(ctx context.Context, acc *models.Account, id int64) (models.Article, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return models.Article{}, err
	}
	if !CanEdit(acc, a) {
		if !CanView(acc, a) {
			return models.Article{}, ErrArticleNotFound
		}
		return models.Article{}, ErrForbidden
	}
	return a, nil
}

// Editable is the check behind the edit form.
func (s *Service) Editable(ctx context.Context, acc *models.Account, id int64) (models.Article, error) {
	const op = "service.article.Editable"

	a, err := s.editable(ctx, acc, id)
	if err != nil {
		return models.Article{}, fmt.Errorf("%s: %w", op, err)
	}

	return a, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
