package account

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"blog-portal/internal/domain/models"
	"blog-portal/internal/http-server/forms"
	"blog-portal/internal/http-server/middleware/auth"
	"blog-portal/internal/http-server/web"
	"blog-portal/internal/lib/logger/sl"
	"blog-portal/internal/lib/metrics"
	"blog-portal/internal/service/user"

	"github.com/go-chi/chi/v5"
)

const badLogin = "Please enter a correct username and password."

//go:generate go run github.com/vektra/mockery/v2@v2.28.2 --name=Service
type Service interface {
	Register(ctx context.Context, in user.SignUp) (models.User, error)
	Login(ctx context.Context, username, password string) (models.User, error)
	Detail(ctx context.Context, userID int64) (models.UserWithProfile, error)
	UpdateAccount(ctx context.Context, userID int64, a user.AccountUpdate, p user.ProfileUpdate) error
	UpdateProfile(ctx context.Context, userID int64, p user.ProfileUpdate) error
}

type Account struct {
	log     *slog.Logger
	service Service
	auth    *auth.Auth
	web     *web.Renderer
	metrics *metrics.Metrics
}

func New(log *slog.Logger, service Service, a *auth.Auth, renderer *web.Renderer, m *metrics.Metrics) *Account {
	return &Account{
		log:     log,
		service: service,
		auth:    a,
		web:     renderer,
		metrics: m,
	}
}

func (h *Account) Register() func(r chi.Router) {
	return func(r chi.Router) {
		// Public routes
		r.Get("/accounts/login/", h.loginForm)
		r.Post("/accounts/login/", h.login)
		r.Get("/signup/", h.signupForm)
		r.Post("/signup/", h.signup)

		// Require login
		r.Group(func(r chi.Router) {
			r.Use(h.auth.RequireLogin)

			r.Post("/accounts/logout/", h.logout)
			r.Get("/accounts/profile/", h.profileForm)
			r.Post("/accounts/profile/", h.updateProfile)
			r.Get("/profile/update/", h.profileOnlyForm)
			r.Post("/profile/update/", h.updateProfileOnly)
			r.Get("/profiles/{id}/", h.profile)
		})
	}
}

func (h *Account) loginForm(w http.ResponseWriter, r *http.Request) {
	if web.Account(r) != nil {
		web.Redirect(w, r, "/dashboard/")
		return
	}

	h.web.Render(w, r, http.StatusOK, "accounts/login.html", web.Data{
		"page_title": "Log in",
		"next":       r.URL.Query().Get("next"),
	})
}

func (h *Account) login(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.login"

	log := h.log.With(slog.String("op", op))

	if err := r.ParseForm(); err != nil {
		log.Error("failed to parse form", sl.Error(err))
		h.web.ServerError(w, r, err)
		return
	}

	username := r.PostForm.Get("username")
	next := r.PostForm.Get("next")

	// Send to service layer
	u, err := h.service.Login(r.Context(), username, r.PostForm.Get("password"))
	if err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			h.web.Render(w, r, http.StatusOK, "accounts/login.html", web.Data{
				"page_title": "Log in",
				"next":       next,
				"username":   username,
				"error":      badLogin,
			})
			return
		}
		h.web.ServerError(w, r, err)
		return
	}

	if err := h.auth.LogIn(r.Context(), u.ID); err != nil {
		log.Error("failed to start session", sl.Error(err))
		h.web.ServerError(w, r, err)
		return
	}

	h.metrics.Event(r, "login")
	h.web.Success(r, "Welcome back, %s!", u.DisplayName())

	web.Redirect(w, r, web.SafeNext(next, "/dashboard/"))
}

func (h *Account) logout(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.logout"

	if err := h.auth.LogOut(r.Context()); err != nil {
		h.log.Error("failed to destroy session", slog.String("op", op), sl.Error(err))
		h.web.ServerError(w, r, err)
		return
	}

	web.Redirect(w, r, auth.LoginPath)
}

func (h *Account) signupForm(w http.ResponseWriter, r *http.Request) {
	h.web.Render(w, r, http.StatusOK, "accounts/signup.html", web.Data{
		"page_title": "Sign up",
		"form":       user.SignUp{},
	})
}

func (h *Account) signup(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.account.signup"

	log := h.log.With(slog.String("op", op))

	var in user.SignUp
	if err := forms.Decode(r, &in); err != nil {
		log.Info("bad signup form", sl.Error(err))
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	// Send to service layer
	u, err := h.service.Register(r.Context(), in)
	if err != nil {
		errs := forms.Errors(err)
		if errors.Is(err, user.ErrUserExists) {
			errs = map[string]string{"username": "A user with that username already exists."}
		}
		if errs == nil {
			h.web.ServerError(w, r, err)
			return
		}

		in.Password, in.Password2 = "", ""
		h.web.Render(w, r, http.StatusOK, "accounts/signup.html", web.Data{
			"page_title": "Sign up",
			"form":       in,
			"errors":     errs,
		})
		return
	}

	h.metrics.Event(r, "signup")
	h.web.Success(r, "Account created successfully for %s! You can now log in.", u.Username)

	web.Redirect(w, r, auth.LoginPath)
}

func (h *Account) profileForm(w http.ResponseWriter, r *http.Request) {
	h.renderProfileForm(w, r, "accounts/profile.html", nil, nil)
}

func (h *Account) profileOnlyForm(w http.ResponseWriter, r *http.Request) {
	h.renderProfileForm(w, r, "accounts/profile_update.html", nil, nil)
}

// renderProfileForm shows the stored values, or the posted ones when the
// form came back with errors.
func (h *Account) renderProfileForm(w http.ResponseWriter, r *http.Request, page string, posted *formValues, errs map[string]string) {
	acc := web.Account(r)

	d, err := h.service.Detail(r.Context(), acc.ID)
	if err != nil {
		h.web.ServerError(w, r, err)
		return
	}

	values := posted
	if values == nil {
		values = storedValues(d)
	}

	h.web.Render(w, r, http.StatusOK, page, web.Data{
		"page_title": "Edit profile",
		"user":       d.User,
		"profile":    d.Profile,
		"form":       values,
		"errors":     errs,
	})
}

type formValues struct {
	Account user.AccountUpdate
	Profile user.ProfileUpdate
}

func storedValues(d models.UserWithProfile) *formValues {
	v := &formValues{
		Account: user.AccountUpdate{
			FirstName: d.FirstName,
			LastName:  d.LastName,
			Email:     d.Email,
		},
		Profile: user.ProfileUpdate{
			PhoneNumber: d.Profile.PhoneNumber,
			Bio:         d.Profile.Bio,
			Location:    d.Profile.Location,
		},
	}
	if d.Profile.BirthDate != nil {
		v.Profile.BirthDate = d.Profile.BirthDate.Format("2006-01-02")
	}
	return v
}

func (h *Account) updateProfile(w http.ResponseWriter, r *http.Request) {
	h.saveProfile(w, r, "accounts/profile.html", true)
}

func (h *Account) updateProfileOnly(w http.ResponseWriter, r *http.Request) {
	h.saveProfile(w, r, "accounts/profile_update.html", false)
}

func (h *Account) saveProfile(w http.ResponseWriter, r *http.Request, page string, withAccount bool) {
	const op = "handlers.account.saveProfile"

	log := h.log.With(slog.String("op", op))
	acc := web.Account(r)

	var v formValues
	if err := forms.Decode(r, &v.Profile); err != nil {
		log.Info("bad profile form", sl.Error(err))
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if withAccount {
		if err := forms.Decode(r, &v.Account); err != nil {
			log.Info("bad profile form", sl.Error(err))
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
	}

	file, err := forms.File(r, "avatar")
	if err != nil {
		log.Info("bad avatar upload", sl.Error(err))
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if file != nil {
		defer file.Close()
		v.Profile.Avatar = file
	}

	// Send to service layer
	if withAccount {
		err = h.service.UpdateAccount(r.Context(), acc.ID, v.Account, v.Profile)
	} else {
		err = h.service.UpdateProfile(r.Context(), acc.ID, v.Profile)
	}
	if err != nil {
		errs := forms.Errors(err)
		if errors.Is(err, user.ErrInvalidAvatar) {
			errs = map[string]string{"avatar": "Upload a valid image. The file you uploaded was either not an image or a corrupted image."}
		}
		if errs == nil {
			h.web.ServerError(w, r, err)
			return
		}

		v.Profile.Avatar = nil
		h.renderProfileForm(w, r, page, &v, errs)
		return
	}

	h.web.Success(r, "Your profile has been updated successfully!")

	web.Redirect(w, r, "/accounts/profile/")
}

func (h *Account) profile(w http.ResponseWriter, r *http.Request) {
	acc := web.Account(r)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.web.NotFound(w, r)
		return
	}

	isOwn := id == acc.ID
	if !isOwn && !acc.HasPerm(models.PermViewAllProfiles) {
		h.web.Forbidden(w, r)
		return
	}

	d, err := h.service.Detail(r.Context(), id)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			h.web.NotFound(w, r)
			return
		}
		h.web.ServerError(w, r, err)
		return
	}

	h.web.Render(w, r, http.StatusOK, "accounts/profile_detail.html", web.Data{
		"page_title":   d.Username,
		"profile_user": d,
		"is_own":       isOwn,
	})
}
