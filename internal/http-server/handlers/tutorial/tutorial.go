// Package tutorial serves the demo pages showing how a handler hands its
// context dictionary to a template.
package tutorial

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"blog-portal/internal/http-server/web"
	"blog-portal/internal/service/article"

	"github.com/go-chi/chi/v5"
)

const (
	appName    = "My Django App"
	appVersion = "1.0.0"
)

type Articles interface {
	Overview(ctx context.Context) (article.Overview, error)
	Search(ctx context.Context, p article.SearchParams) (article.SearchResult, error)
}

type Tutorial struct {
	log      *slog.Logger
	articles Articles
	web      *web.Renderer
}

func New(log *slog.Logger, articles Articles, renderer *web.Renderer) *Tutorial {
	return &Tutorial{
		log:      log,
		articles: articles,
		web:      renderer,
	}
}

func (h *Tutorial) Register() func(r chi.Router) {
	return func(r chi.Router) {
		r.Get("/hello/", h.hello)
		r.Get("/data-types/", h.dataTypes)
		r.Get("/database/", h.database)
		r.Get("/contact/", h.contactPage)
		r.Post("/contact/", h.contact)
		r.Get("/search/", h.search)
	}
}

func (h *Tutorial) hello(w http.ResponseWriter, r *http.Request) {
	h.web.Render(w, r, http.StatusOK, "tutorial/hello.html", web.Data{
		"greeting":     "Hello, World!",
		"current_time": time.Now(),
		"app_name":     appName,
		"version":      appVersion,
	})
}

type post struct {
	Title string
	Date  string
	Views int
	Likes int
}

func (h *Tutorial) dataTypes(w http.ResponseWriter, r *http.Request) {
	userStats := map[string]int{
		"posts_count":    45,
		"followers":      1200,
		"following":      350,
		"likes_received": 2890,
	}

	h.web.Render(w, r, http.StatusOK, "tutorial/data_types.html", web.Data{
		"page_title": "Data Types Demo",

		// strings
		"user_name":       "John Doe",
		"welcome_message": "Welcome to our awesome website!",

		// numbers
		"total_users": 1250,
		"average_age": 28.5,

		// booleans
		"is_premium_user":   true,
		"has_notifications": false,

		// lists
		"favorite_colors": []string{"Blue", "Green", "Purple", "Orange"},
		"recent_activities": []string{
			"Logged in at 9:00 AM",
			"Updated profile picture",
			"Posted a new article",
			"Liked 3 posts",
		},

		"user_stats": userStats,
		"recent_posts": []post{
			{Title: "Getting Started with Django", Date: "2025-01-15", Views: 250, Likes: 18},
			{Title: "Understanding Django Templates", Date: "2025-01-10", Views: 180, Likes: 12},
			{Title: "Building Your First Web App", Date: "2025-01-05", Views: 320, Likes: 25},
		},

		// computed
		"total_engagement": userStats["posts_count"] + userStats["likes_received"],
		"is_popular_user":  userStats["followers"] > 1000,
	})
}

func (h *Tutorial) database(w http.ResponseWriter, r *http.Request) {
	o, err := h.articles.Overview(r.Context())
	if err != nil {
		h.web.ServerError(w, r, err)
		return
	}

	h.web.Render(w, r, http.StatusOK, "tutorial/database.html", web.Data{
		"page_title":         "Database Demo",
		"all_articles":       o.All,
		"published_articles": o.Published,
		"authors":            o.Authors,
		"latest_article":     o.Latest,
		"stats":              o.Stats,
	})
}

type contactForm struct {
	Name    string
	Email   string
	Subject string
	Message string
}

func (f contactForm) errors() []string {
	var errs []string
	if f.Name == "" {
		errs = append(errs, "Name is required")
	}
	if f.Email == "" || !strings.Contains(f.Email, "@") {
		errs = append(errs, "Valid email is required")
	}
	if f.Message == "" {
		errs = append(errs, "Message is required")
	}
	return errs
}

func (h *Tutorial) contactPage(w http.ResponseWriter, r *http.Request) {
	h.web.Render(w, r, http.StatusOK, "tutorial/contact.html", web.Data{
		"page_title": "Contact Us",
		"form_data":  contactForm{},
	})
}

func (h *Tutorial) contact(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.tutorial.contact"

	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	f := contactForm{
		Name:    strings.TrimSpace(r.PostForm.Get("name")),
		Email:   strings.TrimSpace(r.PostForm.Get("email")),
		Subject: strings.TrimSpace(r.PostForm.Get("subject")),
		Message: strings.TrimSpace(r.PostForm.Get("message")),
	}

	data := web.Data{"page_title": "Contact Us"}

	if errs := f.errors(); len(errs) > 0 {
		data["errors"] = errs
		data["form_data"] = f
	} else {
		h.log.Info("contact message",
			slog.String("op", op),
			slog.String("name", f.Name),
			slog.String("email", f.Email),
			slog.String("subject", f.Subject),
		)
		data["form_submitted"] = true
		data["form_data"] = contactForm{}
	}

	h.web.Render(w, r, http.StatusOK, "tutorial/contact.html", data)
}

func (h *Tutorial) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	res, err := h.articles.Search(r.Context(), article.SearchParams{
		Query:    q.Get("q"),
		Category: q.Get("category"),
		Sort:     q.Get("sort"),
	})
	if err != nil {
		h.web.ServerError(w, r, err)
		return
	}

	h.web.Render(w, r, http.StatusOK, "tutorial/search.html", web.Data{
		"page_title":    res.Title(),
		"query":         res.Query,
		"category":      res.Category,
		"sort_by":       res.Sort,
		"articles":      res.Articles,
		"total_results": res.Total,
		"suggestions":   res.Suggestions,
		"has_search":    res.HasSearch(),
		"has_results":   res.HasResults(),
		"showing_all":   res.ShowingAll(),
	})
}
