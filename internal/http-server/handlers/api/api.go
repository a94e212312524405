package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"blog-portal/internal/domain/models"
	"blog-portal/internal/http-server/middleware/auth"
	req "blog-portal/internal/lib/api/request"
	resp "blog-portal/internal/lib/api/response"
	"blog-portal/internal/lib/jwt"
	"blog-portal/internal/lib/logger/sl"
	"blog-portal/internal/lib/paginator"
	"blog-portal/internal/lib/validate"
	"blog-portal/internal/service/article"
	"blog-portal/internal/service/user"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
)

//go:generate go run github.com/vektra/mockery/v2@v2.28.2 --name=Service
type Service interface {
	Token(ctx context.Context, username, password, secret string) (string, error)
	Account(ctx context.Context, userID int64) (*models.Account, error)
	List(ctx context.Context, acc *models.Account, page int) (article.Page, error)
	Get(ctx context.Context, acc *models.Account, id int64) (models.Article, error)
	Editable(ctx context.Context, acc *models.Account, id int64) (models.Article, error)
	Create(ctx context.Context, acc *models.Account, in article.Input) (models.Article, error)
	Update(ctx context.Context, acc *models.Account, id int64, in article.Input) (models.Article, error)
	Delete(ctx context.Context, acc *models.Account, id int64) (models.Article, error)
	Publish(ctx context.Context, acc *models.Account, id int64) (models.Article, error)
}

type API struct {
	log     *slog.Logger
	service Service
	secret  string
}

func New(log *slog.Logger, service Service, secret string) *API {
	return &API{
		log:     log,
		service: service,
		secret:  secret,
	}
}

func (a *API) Register() func(r chi.Router) {
	return func(r chi.Router) {
		// Public routes
		r.Post("/token", a.token)
		r.Get("/articles", a.listArticles)
		r.Get("/articles/{id}", a.getArticle)

		// Require auth
		r.Group(func(r chi.Router) {
			tokenAuth := jwtauth.New("HS256", []byte(a.secret), nil)
			r.Use(jwtauth.Verifier(tokenAuth))
			r.Use(jwtauth.Authenticator(tokenAuth))
			r.Use(a.account)

			r.Get("/me", a.me)
			r.Post("/articles", a.createArticle)
			r.Put("/articles/{id}", a.updateArticle)
			r.Delete("/articles/{id}", a.removeArticle)
			r.Post("/articles/{id}/publish", a.publishArticle)
		})
	}
}

// account loads the token's user. Unknown and inactive users are rejected.
func (a *API) account(next http.Handler) http.Handler {
	const op = "handlers.api.account"

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := a.log.With(slog.String("op", op))

		uid, err := jwt.UserID(r.Context())
		if err != nil {
			log.Info("token without user", sl.Error(err))
			fail(w, r, http.StatusUnauthorized, "invalid token")
			return
		}

		acc, err := a.service.Account(r.Context(), uid)
		if err != nil || !acc.IsActive {
			log.Info("token user rejected", slog.Int64("uid", uid))
			fail(w, r, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithAccount(r.Context(), acc)))
	})
}

func fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, resp.Err(msg))
}

// failWith maps service errors to status codes.
func (a *API) failWith(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, article.ErrArticleNotFound), errors.Is(err, paginator.ErrInvalidPage):
		fail(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, article.ErrForbidden):
		fail(w, r, http.StatusForbidden, "not enough rights")
	case validate.IsInvalid(err):
		fail(w, r, http.StatusBadRequest, invalidFields(err))
	default:
		a.log.Error("request failed", slog.String("op", op), sl.Error(err))
		fail(w, r, http.StatusInternalServerError, "internal error")
	}
}

func invalidFields(err error) string {
	msgs := validate.Messages(err)

	fields := make([]string, 0, len(msgs))
	for f := range msgs {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+msgs[f])
	}
	return strings.Join(parts, "; ")
}

func (a *API) token(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.api.token"

	log := a.log.With(slog.String("op", op))

	var cred req.Credentials
	if err := render.DecodeJSON(r.Body, &cred); err != nil {
		log.Info("failed to decode request", sl.Error(err))
		fail(w, r, http.StatusBadRequest, "invalid request")
		return
	}

	// Validate user creds
	if cred.Username == "" || cred.Password == "" {
		fail(w, r, http.StatusBadRequest, "invalid credentials: username and password are required")
		return
	}

	// Send to service layer
	token, err := a.service.Token(r.Context(), cred.Username, cred.Password, a.secret)
	if err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			fail(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}
		a.failWith(w, r, op, err)
		return
	}

	// Write response
	render.JSON(w, r, resp.Response{
		Status: resp.StatusOk,
		Token:  token,
	})
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	acc := auth.FromContext(r.Context())

	render.JSON(w, r, resp.Response{
		Status: resp.StatusOk,
		User:   &acc.User,
		Groups: acc.Groups,
		Perms:  acc.Perms(),
	})
}

func (a *API) listArticles(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.api.listArticles"

	n, err := paginator.Parse(r.URL.Query().Get("page"))
	if err != nil {
		fail(w, r, http.StatusNotFound, "not found")
		return
	}

	p, err := a.service.List(r.Context(), nil, n)
	if err != nil {
		a.failWith(w, r, op, err)
		return
	}

	render.JSON(w, r, resp.Response{
		Status:   resp.StatusOk,
		Articles: p.Articles,
		Total:    p.Page.Total,
	})
}

func articleID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

func (a *API) getArticle(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.api.getArticle"

	id, ok := articleID(r)
	if !ok {
		fail(w, r, http.StatusNotFound, "not found")
		return
	}

	art, err := a.service.Get(r.Context(), nil, id)
	if err != nil {
		a.failWith(w, r, op, err)
		return
	}

	render.JSON(w, r, resp.Response{
		Status:  resp.StatusOk,
		Article: &art,
	})
}

func (a *API) createArticle(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.api.createArticle"

	var body req.Article
	if err := render.DecodeJSON(r.Body, &body); err != nil {
		fail(w, r, http.StatusBadRequest, "invalid request")
		return
	}

	in := article.Input{Title: body.Title, Content: body.Content}
	if body.IsPublished != nil {
		in.IsPublished = *body.IsPublished
	}

	// Send to service layer
	art, err := a.service.Create(r.Context(), auth.FromContext(r.Context()), in)
	if err != nil {
		a.failWith(w, r, op, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, resp.Response{
		Status:  resp.StatusOk,
		Article: &art,
		ID:      art.ID,
	})
}

func (a *API) updateArticle(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.api.updateArticle"

	acc := auth.FromContext(r.Context())

	id, ok := articleID(r)
	if !ok {
		fail(w, r, http.StatusNotFound, "not found")
		return
	}

	var body req.Article
	if err := render.DecodeJSON(r.Body, &body); err != nil {
		fail(w, r, http.StatusBadRequest, "invalid request")
		return
	}

	stored, err := a.service.Editable(r.Context(), acc, id)
	if err != nil {
		a.failWith(w, r, op, err)
		return
	}

	in := article.Input{Title: body.Title, Content: body.Content, IsPublished: stored.IsPublished}
	if body.IsPublished != nil {
		in.IsPublished = *body.IsPublished
	}

	// Send to service layer
	art, err := a.service.Update(r.Context(), acc, id, in)
	if err != nil {
		a.failWith(w, r, op, err)
		return
	}

	render.JSON(w, r, resp.Response{
		Status:  resp.StatusOk,
		Article: &art,
	})
}

func (a *API) removeArticle(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.api.removeArticle"

	id, ok := articleID(r)
	if !ok {
		fail(w, r, http.StatusNotFound, "not found")
		return
	}

	// Send to service layer
	if _, err := a.service.Delete(r.Context(), auth.FromContext(r.Context()), id); err != nil {
		a.failWith(w, r, op, err)
		return
	}

	render.JSON(w, r, resp.OK())
}

func (a *API) publishArticle(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.api.publishArticle"

	id, ok := articleID(r)
	if !ok {
		fail(w, r, http.StatusNotFound, "not found")
		return
	}

	// Send to service layer
	art, err := a.service.Publish(r.Context(), auth.FromContext(r.Context()), id)
	if err != nil {
		a.failWith(w, r, op, err)
		return
	}

	render.JSON(w, r, resp.Response{
		Status:  resp.StatusOk,
		Article: &art,
	})
}
