package article

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"blog-portal/internal/domain/models"
	"blog-portal/internal/http-server/forms"
	"blog-portal/internal/http-server/middleware/auth"
	"blog-portal/internal/http-server/web"
	"blog-portal/internal/lib/logger/sl"
	"blog-portal/internal/lib/metrics"
	"blog-portal/internal/lib/paginator"
	"blog-portal/internal/service/article"

	"github.com/go-chi/chi/v5"
)

//go:generate go run github.com/vektra/mockery/v2@v2.28.2 --name=Service
type Service interface {
	List(ctx context.Context, acc *models.Account, page int) (article.Page, error)
	Detail(ctx context.Context, acc *models.Account, id int64) (article.Detail, error)
	Editable(ctx context.Context, acc *models.Account, id int64) (models.Article, error)
	Create(ctx context.Context, acc *models.Account, in article.Input) (models.Article, error)
	Update(ctx context.Context, acc *models.Account, id int64, in article.Input) (models.Article, error)
	Delete(ctx context.Context, acc *models.Account, id int64) (models.Article, error)
	Publish(ctx context.Context, acc *models.Account, id int64) (models.Article, error)
	Unpublish(ctx context.Context, acc *models.Account, id int64) (models.Article, error)
	Bulk(ctx context.Context, acc *models.Account, ids []int64, action string) (int64, error)
	BulkCandidates(ctx context.Context, acc *models.Account) ([]models.Article, error)
}

type Article struct {
	log     *slog.Logger
	service Service
	auth    *auth.Auth
	web     *web.Renderer
	metrics *metrics.Metrics
}

func New(log *slog.Logger, service Service, a *auth.Auth, renderer *web.Renderer, m *metrics.Metrics) *Article {
	return &Article{
		log:     log,
		service: service,
		auth:    a,
		web:     renderer,
		metrics: m,
	}
}

func (h *Article) Register() func(r chi.Router) {
	return func(r chi.Router) {
		// Public routes
		r.Get("/articles/", h.list)
		r.Get("/articles/{id}/", h.detail)
		r.Get("/article/{id}/", h.detail)

		r.Group(func(r chi.Router) {
			r.Use(h.auth.RequirePerm(models.PermAddArticle))

			r.Get("/articles/new/", h.createForm)
			r.Post("/articles/new/", h.create)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.auth.RequireStaff)

			r.Get("/articles/bulk/", h.bulkForm)
			r.Post("/articles/bulk/", h.bulk)
		})

		// Require login, the service checks the rest
		r.Group(func(r chi.Router) {
			r.Use(h.auth.RequireLogin)

			r.Get("/articles/{id}/edit/", h.editForm)
			r.Post("/articles/{id}/edit/", h.edit)
			r.Post("/articles/{id}/delete/", h.remove)
			r.Post("/articles/{id}/publish/", h.publish)
			r.Post("/articles/{id}/unpublish/", h.unpublish)
		})
	}
}

func articleID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

func detailURL(id int64) string {
	return fmt.Sprintf("/articles/%d/", id)
}

// fail maps service errors to the error pages.
func (h *Article) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, article.ErrArticleNotFound), errors.Is(err, paginator.ErrInvalidPage):
		h.web.NotFound(w, r)
	case errors.Is(err, article.ErrForbidden):
		h.web.Forbidden(w, r)
	default:
		h.web.ServerError(w, r, err)
	}
}

func (h *Article) list(w http.ResponseWriter, r *http.Request) {
	n, err := paginator.Parse(r.URL.Query().Get("page"))
	if err != nil {
		h.web.NotFound(w, r)
		return
	}

	p, err := h.service.List(r.Context(), web.Account(r), n)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.web.Render(w, r, http.StatusOK, "articles/list.html", web.Data{
		"page_title": "Articles",
		"articles":   p.Articles,
		"page":       p.Page,
	})
}

func (h *Article) detail(w http.ResponseWriter, r *http.Request) {
	id, ok := articleID(r)
	if !ok {
		h.web.NotFound(w, r)
		return
	}

	d, err := h.service.Detail(r.Context(), web.Account(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.metrics.Event(r, "article_viewed")

	h.web.Render(w, r, http.StatusOK, "articles/detail.html", web.Data{
		"page_title":       d.Article.Title,
		"page_description": d.Description,
		"article":          d.Article,
		"author_profile":   d.AuthorProfile,
		"other_articles":   d.OtherByAuthor,
		"recent_articles":  d.Recent,
		"user_is_author":   d.IsAuthor,
		"can_edit":         d.CanEdit,
		"can_delete":       d.CanDelete,
		"can_publish":      d.CanPublish,
		"can_unpublish":    d.CanUnpublish,
	})
}

func (h *Article) renderForm(w http.ResponseWriter, r *http.Request, a *models.Article, in article.Input, errs map[string]string) {
	title := "New article"
	if a != nil {
		title = "Edit " + a.Title
	}

	acc := web.Account(r)
	h.web.Render(w, r, http.StatusOK, "articles/form.html", web.Data{
		"page_title":    title,
		"article":       a,
		"form":          in,
		"errors":        errs,
		"can_publish":   acc.IsAdmin() || acc.HasPerm(models.PermPublishArticle),
		"can_unpublish": acc.IsAdmin() || acc.HasPerm(models.PermUnpublishArticle),
	})
}

func (h *Article) createForm(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, nil, article.Input{}, nil)
}

func (h *Article) create(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.article.create"

	var in article.Input
	if err := forms.Decode(r, &in); err != nil {
		h.log.Info("bad article form", slog.String("op", op), sl.Error(err))
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	// Send to service layer
	a, err := h.service.Create(r.Context(), web.Account(r), in)
	if err != nil {
		if errs := forms.Errors(err); errs != nil {
			h.renderForm(w, r, nil, in, errs)
			return
		}
		h.fail(w, r, err)
		return
	}

	h.metrics.Event(r, "article_created")
	h.web.Success(r, "Article %q created.", a.Title)

	web.Redirect(w, r, detailURL(a.ID))
}

func (h *Article) editForm(w http.ResponseWriter, r *http.Request) {
	id, ok := articleID(r)
	if !ok {
		h.web.NotFound(w, r)
		return
	}

	a, err := h.service.Editable(r.Context(), web.Account(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.renderForm(w, r, &a, article.Input{Title: a.Title, Content: a.Content, IsPublished: a.IsPublished}, nil)
}

func (h *Article) edit(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.article.edit"

	id, ok := articleID(r)
	if !ok {
		h.web.NotFound(w, r)
		return
	}

	var in article.Input
	if err := forms.Decode(r, &in); err != nil {
		h.log.Info("bad article form", slog.String("op", op), sl.Error(err))
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	// Send to service layer
	a, err := h.service.Update(r.Context(), web.Account(r), id, in)
	if err != nil {
		if errs := forms.Errors(err); errs != nil {
			stored, serr := h.service.Editable(r.Context(), web.Account(r), id)
			if serr != nil {
				h.fail(w, r, serr)
				return
			}
			h.renderForm(w, r, &stored, in, errs)
			return
		}
		h.fail(w, r, err)
		return
	}

	h.web.Success(r, "Article %q updated.", a.Title)

	web.Redirect(w, r, detailURL(a.ID))
}

func (h *Article) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := articleID(r)
	if !ok {
		h.web.NotFound(w, r)
		return
	}

	a, err := h.service.Delete(r.Context(), web.Account(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.web.Success(r, "Article %q deleted.", a.Title)

	web.Redirect(w, r, "/articles/")
}

func (h *Article) publish(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, h.service.Publish, "published")
}

func (h *Article) unpublish(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, h.service.Unpublish, "unpublished")
}

func (h *Article) setStatus(
	w http.ResponseWriter,
	r *http.Request,
	change func(context.Context, *models.Account, int64) (models.Article, error),
	verb string,
) {
	id, ok := articleID(r)
	if !ok {
		h.web.NotFound(w, r)
		return
	}

	a, err := change(r.Context(), web.Account(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.metrics.Event(r, "article_"+verb)
	h.web.Success(r, "Article %q %s.", a.Title, verb)

	web.Redirect(w, r, detailURL(a.ID))
}

func (h *Article) bulkForm(w http.ResponseWriter, r *http.Request) {
	arts, err := h.service.BulkCandidates(r.Context(), web.Account(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.web.Render(w, r, http.StatusOK, "articles/bulk.html", web.Data{
		"page_title": "Bulk update articles",
		"articles":   arts,
	})
}

// bulk reports the number of selected articles, not how many changed status.
func (h *Article) bulk(w http.ResponseWriter, r *http.Request) {
	ids := forms.IDs(r, "article_ids")
	action := r.PostForm.Get("action")

	_, err := h.service.Bulk(r.Context(), web.Account(r), ids, action)
	if err != nil {
		if errors.Is(err, article.ErrUnknownAction) {
			h.web.Error(r, "Unknown action.")
			web.Redirect(w, r, "/articles/")
			return
		}
		h.fail(w, r, err)
		return
	}

	verb := "published"
	if action == "unpublish" {
		verb = "unpublished"
	}
	h.web.Success(r, "%d articles %s!", len(ids), verb)

	web.Redirect(w, r, "/articles/")
}
