package dashboard

import (
	"context"
	"log/slog"
	"net/http"

	"blog-portal/internal/domain/models"
	"blog-portal/internal/http-server/middleware/auth"
	"blog-portal/internal/http-server/web"
	"blog-portal/internal/service/article"

	"github.com/go-chi/chi/v5"
)

type Users interface {
	Detail(ctx context.Context, userID int64) (models.UserWithProfile, error)
	Count(ctx context.Context) (int, error)
}

type Articles interface {
	AuthorStats(ctx context.Context, authorID int64) (article.AuthorStats, error)
	Count(ctx context.Context) (int, error)
}

type Dashboard struct {
	log      *slog.Logger
	users    Users
	articles Articles
	auth     *auth.Auth
	web      *web.Renderer
}

func New(log *slog.Logger, users Users, articles Articles, a *auth.Auth, renderer *web.Renderer) *Dashboard {
	return &Dashboard{
		log:      log,
		users:    users,
		articles: articles,
		auth:     a,
		web:      renderer,
	}
}

func (h *Dashboard) Register() func(r chi.Router) {
	return func(r chi.Router) {
		r.Use(h.auth.RequireLogin)

		r.Get("/", h.show)
		r.Get("/dashboard/", h.show)
	}
}

func (h *Dashboard) show(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.dashboard.show"

	acc := web.Account(r)
	ctx := r.Context()

	d, err := h.users.Detail(ctx, acc.ID)
	if err != nil {
		h.web.ServerError(w, r, err)
		return
	}

	stats, err := h.articles.AuthorStats(ctx, acc.ID)
	if err != nil {
		h.web.ServerError(w, r, err)
		return
	}

	data := web.Data{
		"page_title":      "Dashboard",
		"welcome_message": "Welcome back, " + acc.DisplayName() + "!",
		"profile":         d.Profile,
		"groups":          acc.Groups,
		"permissions":     acc.Perms(),
		"is_staff":        acc.IsStaff,
		"is_superuser":    acc.IsSuperuser,
		"user_stats": map[string]any{
			"total_articles":     stats.Total,
			"published_articles": stats.Published,
			"draft_articles":     stats.Drafts,
			"member_since":       acc.DateJoined.Format("January 2006"),
			"last_login":         acc.LastLogin,
		},
		"recent_articles": stats.Recent,
		"user_permissions": map[string]bool{
			"can_publish":           acc.HasPerm(models.PermPublishArticle),
			"can_view_all_profiles": acc.HasPerm(models.PermViewAllProfiles),
			"is_staff":              acc.IsStaff,
			"is_superuser":          acc.IsSuperuser,
		},
	}

	if acc.HasPerm(models.PermViewAllProfiles) {
		n, err := h.users.Count(ctx)
		if err != nil {
			h.web.ServerError(w, r, err)
			return
		}
		data["total_users"] = n
	}
	if acc.HasPerm(models.PermPublishArticle) {
		n, err := h.articles.Count(ctx)
		if err != nil {
			h.web.ServerError(w, r, err)
			return
		}
		data["total_articles"] = n
	}

	h.log.Debug("dashboard", slog.String("op", op), slog.String("user", acc.Username))

	h.web.Render(w, r, http.StatusOK, "dashboard/dashboard.html", data)
}
