// Package auth attaches the logged in account to requests and guards routes
// by login, permission and staff status.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"blog-portal/internal/domain/models"
	"blog-portal/internal/lib/logger/sl"

	"github.com/alexedwards/scs/v2"
)

const (
	// SessionKey holds the user id of the logged in user.
	SessionKey = "uid"

	LoginPath = "/accounts/login/"
)

type ctxKey struct{}

type AccountLoader interface {
	Account(ctx context.Context, userID int64) (*models.Account, error)
}

type Auth struct {
	log       *slog.Logger
	sessions  *scs.SessionManager
	loader    AccountLoader
	forbidden http.HandlerFunc
}

// New returns the middleware set. forbidden renders the page shown to
// logged in users that lack a permission.
func New(log *slog.Logger, sessions *scs.SessionManager, loader AccountLoader, forbidden http.HandlerFunc) *Auth {
	return &Auth{
		log:       log,
		sessions:  sessions,
		loader:    loader,
		forbidden: forbidden,
	}
}

func WithAccount(ctx context.Context, acc *models.Account) context.Context {
	return context.WithValue(ctx, ctxKey{}, acc)
}

// FromContext returns the account of the request, nil for anonymous ones.
func FromContext(ctx context.Context) *models.Account {
	acc, _ := ctx.Value(ctxKey{}).(*models.Account)
	return acc
}

// Load resolves the session user. Unknown and inactive users are treated
// as anonymous.
func (a *Auth) Load(next http.Handler) http.Handler {
	const op = "middleware.auth.Load"

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid := a.sessions.GetInt(r.Context(), SessionKey)
		if uid == 0 {
			next.ServeHTTP(w, r)
			return
		}

		acc, err := a.loader.Account(r.Context(), int64(uid))
		if err != nil {
			a.log.Warn("dropping session user",
				slog.String("op", op),
				slog.Int("uid", uid),
				sl.Error(err),
			)
			a.sessions.Remove(r.Context(), SessionKey)
			next.ServeHTTP(w, r)
			return
		}
		if !acc.IsActive {
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), acc)))
	})
}

// LogIn binds the session to the user under a fresh token.
func (a *Auth) LogIn(ctx context.Context, userID int64) error {
	if err := a.sessions.RenewToken(ctx); err != nil {
		return err
	}
	a.sessions.Put(ctx, SessionKey, int(userID))
	return nil
}

func (a *Auth) LogOut(ctx context.Context) error {
	return a.sessions.Destroy(ctx)
}

// LoginURL is the login page remembering where to go afterwards.
func LoginURL(next string) string {
	if next == "" {
		return LoginPath
	}
	return LoginPath + "?next=" + url.QueryEscape(next)
}

func (a *Auth) RequireLogin(next http.Handler) http.Handler {
	return a.require(func(*models.Account) bool { return true })(next)
}

func (a *Auth) RequirePerm(code string) func(http.Handler) http.Handler {
	return a.require(func(acc *models.Account) bool { return acc.HasPerm(code) })
}

func (a *Auth) RequireStaff(next http.Handler) http.Handler {
	return a.require((*models.Account).IsAdmin)(next)
}

func (a *Auth) RequireSuperuser(next http.Handler) http.Handler {
	return a.require(func(acc *models.Account) bool { return acc.IsSuperuser })(next)
}

// require redirects anonymous requests to the login page and answers 403
// when the account fails check.
func (a *Auth) require(check func(*models.Account) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			acc := FromContext(r.Context())
			if acc == nil {
				http.Redirect(w, r, LoginURL(r.URL.RequestURI()), http.StatusFound)
				return
			}
			if !check(acc) {
				a.log.Info("permission denied",
					slog.String("user", acc.Username),
					slog.String("path", r.URL.Path),
				)
				a.forbidden(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
