package article

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"blog-portal/internal/domain/models"
	"blog-portal/internal/lib/logger/sl"
)

const (
	searchLimit     = 20
	suggestionLimit = 3
	suggestionRunes = 3
)

// SearchParams are the query string of the search page.
type SearchParams struct {
	Query    string
	Category string
	Sort     string
}

type SearchResult struct {
	SearchParams
	Articles    []models.Article
	Total       int
	Suggestions []string
}

func (r SearchResult) HasSearch() bool {
	return r.Query != ""
}

func (r SearchResult) HasResults() bool {
	return len(r.Articles) > 0
}

// ShowingAll is true when neither a query nor a category narrows the list.
func (r SearchResult) ShowingAll() bool {
	return r.Query == "" && r.Category == ""
}

func (r SearchResult) Title() string {
	if r.Query != "" {
		return fmt.Sprintf("Search Results for %q", r.Query)
	}
	return "All Articles"
}

func sortOrder(s string) models.ArticleOrder {
	switch models.ArticleOrder(s) {
	case models.OrderOldest:
		return models.OrderOldest
	case models.OrderTitle:
		return models.OrderTitle
	default:
		return models.OrderNewest
	}
}

// Search looks for published articles whose title or content contains the
// query. When nothing matches it suggests titles sharing the first letters of
// the query.
func (s *Service) Search(ctx context.Context, p SearchParams) (SearchResult, error) {
	const op = "service.article.Search"

	log := s.log.With(slog.String("op", op))

	p.Query = strings.TrimSpace(p.Query)
	p.Category = strings.TrimSpace(p.Category)
	p.Sort = string(sortOrder(p.Sort))

	res := SearchResult{SearchParams: p}

	f := models.ArticleFilter{Published: models.Bool(true), Query: p.Query}

	var err error
	res.Total, err = s.storage.CountArticles(ctx, f)
	if err != nil {
		log.Error("failed to count matches", sl.Error(err))
		return SearchResult{}, fmt.Errorf("%s: %w", op, err)
	}

	f.Order = sortOrder(p.Sort)
	f.Limit = searchLimit
	res.Articles, err = s.storage.Articles(ctx, f)
	if err != nil {
		log.Error("failed to search articles", sl.Error(err))
		return SearchResult{}, fmt.Errorf("%s: %w", op, err)
	}

	if p.Query != "" && len(res.Articles) == 0 {
		prefix := []rune(p.Query)
		if len(prefix) > suggestionRunes {
			prefix = prefix[:suggestionRunes]
		}

		similar, err := s.storage.Articles(ctx, models.ArticleFilter{
			Published:  models.Bool(true),
			TitleQuery: string(prefix),
			Order:      models.OrderNewest,
			Limit:      suggestionLimit,
		})
		if err != nil {
			log.Error("failed to find suggestions", sl.Error(err))
			return SearchResult{}, fmt.Errorf("%s: %w", op, err)
		}
		for _, a := range similar {
			res.Suggestions = append(res.Suggestions, a.Title)
		}
	}

	log.Debug("search done", slog.String("q", p.Query), slog.Int("total", res.Total))

	return res, nil
}

// Overview is the content of the database demo page.
type Overview struct {
	All       []models.Article
	Published []models.Article
	Authors   []models.User
	Latest    *models.Article
	Stats     Stats
}

type Stats struct {
	TotalArticles     int
	PublishedArticles int
	DraftArticles     int
	TotalAuthors      int
}

func (s *Service) Overview(ctx context.Context) (Overview, error) {
	const op = "service.article.Overview"

	var (
		o   Overview
		err error
	)

	o.All, err = s.storage.Articles(ctx, models.ArticleFilter{Order: models.OrderNewest})
	if err != nil {
		return Overview{}, fmt.Errorf("%s: %w", op, err)
	}

	o.Published, err = s.storage.Articles(ctx, models.ArticleFilter{
		Published: models.Bool(true),
		Order:     models.OrderNewest,
	})
	if err != nil {
		return Overview{}, fmt.Errorf("%s: %w", op, err)
	}
	if len(o.Published) > 0 {
		latest := o.Published[0]
		o.Latest = &latest
	}

	o.Authors, err = s.storage.Authors(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("%s: %w", op, err)
	}

	o.Stats = Stats{
		TotalArticles:     len(o.All),
		PublishedArticles: len(o.Published),
		DraftArticles:     len(o.All) - len(o.Published),
		TotalAuthors:      len(o.Authors),
	}

	return o, nil
}
