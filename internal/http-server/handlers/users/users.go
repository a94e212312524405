package users

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
	"blog-portal/internal/lib/paginator"
	"blog-portal/internal/service/access"
	"blog-portal/internal/service/user"

	"github.com/go-chi/chi/v5"
)

const recentChanges = 10

type UserService interface {
	Users(ctx context.Context, page int) (user.UserPage, error)
	Detail(ctx context.Context, userID int64) (models.UserWithProfile, error)
	AdminUpdate(ctx context.Context, actor *models.Account, targetID int64, in user.AdminUserUpdate) error
	Remove(ctx context.Context, actor *models.Account, targetID int64) error
	RecentChanges(ctx context.Context, limit int) ([]models.LogEntry, error)
}

type AccessService interface {
	Groups(ctx context.Context) ([]models.Group, error)
	GroupsOf(ctx context.Context, userID int64) ([]models.Group, error)
	Join(ctx context.Context, userID, groupID int64) (models.Group, error)
	Leave(ctx context.Context, userID, groupID int64) (models.Group, error)
}

type Users struct {
	log    *slog.Logger
	users  UserService
	access AccessService
	auth   *auth.Auth
	web    *web.Renderer
}

func New(log *slog.Logger, users UserService, access AccessService, a *auth.Auth, renderer *web.Renderer) *Users {
	return &Users{
		log:    log,
		users:  users,
		access: access,
		auth:   a,
		web:    renderer,
	}
}

func (h *Users) Register() func(r chi.Router) {
	return func(r chi.Router) {
		r.With(h.auth.RequirePerm(models.PermViewAllProfiles)).Get("/users/", h.list)

		r.Route("/admin/users", func(r chi.Router) {
			r.With(h.auth.RequirePerm(models.PermEditAllProfiles)).Get("/", h.manage)
			r.With(h.auth.RequirePerm(models.PermEditAllProfiles)).Post("/", h.changeGroup)
			r.With(h.auth.RequireSuperuser).Get("/{id}/update/", h.updateForm)
			r.With(h.auth.RequireSuperuser).Post("/{id}/update/", h.update)
			r.With(h.auth.RequirePerm(models.PermDeleteProfiles)).Post("/{id}/delete/", h.remove)
		})
	}
}

// page loads the requested page of users. An invalid page is a 404.
func (h *Users) page(w http.ResponseWriter, r *http.Request) (user.UserPage, bool) {
	n, err := paginator.Parse(r.URL.Query().Get("page"))
	if err != nil {
		h.web.NotFound(w, r)
		return user.UserPage{}, false
	}

	p, err := h.users.Users(r.Context(), n)
	if err != nil {
		if errors.Is(err, paginator.ErrInvalidPage) {
			h.web.NotFound(w, r)
			return user.UserPage{}, false
		}
		h.web.ServerError(w, r, err)
		return user.UserPage{}, false
	}

	return p, true
}

func (h *Users) list(w http.ResponseWriter, r *http.Request) {
	p, ok := h.page(w, r)
	if !ok {
		return
	}

	h.web.Render(w, r, http.StatusOK, "users/list.html", web.Data{
		"page_title": "All users",
		"users":      p.Users,
		"page":       p.Page,
	})
}

func (h *Users) manage(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.users.manage"

	p, ok := h.page(w, r)
	if !ok {
		return
	}

	for i := range p.Users {
		groups, err := h.access.GroupsOf(r.Context(), p.Users[i].ID)
		if err != nil {
			h.log.Error("failed to get groups", slog.String("op", op), sl.Error(err))
			h.web.ServerError(w, r, err)
			return
		}
		p.Users[i].Groups = groups
	}

	groups, err := h.access.Groups(r.Context())
	if err != nil {
		h.web.ServerError(w, r, err)
		return
	}

	h.web.Render(w, r, http.StatusOK, "users/manage.html", web.Data{
		"page_title": "Manage users",
		"users":      p.Users,
		"page":       p.Page,
		"groups":     groups,
	})
}

func (h *Users) changeGroup(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.users.changeGroup"

	log := h.log.With(slog.String("op", op))

	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, errU := strconv.ParseInt(r.PostForm.Get("user_id"), 10, 64)
	groupID, errG := strconv.ParseInt(r.PostForm.Get("group_id"), 10, 64)
	if errU != nil || errG != nil {
		h.web.Error(r, "User or group not found")
		web.Redirect(w, r, "/admin/users/")
		return
	}

	u, err := h.users.Detail(r.Context(), userID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			h.web.Error(r, "User or group not found")
			web.Redirect(w, r, "/admin/users/")
			return
		}
		log.Error("failed to get user", sl.Error(err))
		h.web.ServerError(w, r, err)
		return
	}

	var g models.Group
	switch action := r.PostForm.Get("action"); action {
	case "add":
		g, err = h.access.Join(r.Context(), userID, groupID)
		if err == nil {
			h.web.Success(r, "Added %s to %s", u.Username, g.Name)
		}
	case "remove":
		g, err = h.access.Leave(r.Context(), userID, groupID)
		if err == nil {
			h.web.Success(r, "Removed %s from %s", u.Username, g.Name)
		}
	default:
		h.web.Error(r, "Unknown action %q.", action)
	}

	if err != nil {
		if errors.Is(err, access.ErrUserNotFound) || errors.Is(err, access.ErrGroupNotFound) {
			h.web.Error(r, "User or group not found")
		} else {
			log.Error("failed to change membership", sl.Error(err))
			h.web.ServerError(w, r, err)
			return
		}
	}

	web.Redirect(w, r, "/admin/users/")
}

func (h *Users) target(w http.ResponseWriter, r *http.Request) (models.UserWithProfile, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.web.NotFound(w, r)
		return models.UserWithProfile{}, false
	}

	d, err := h.users.Detail(r.Context(), id)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			h.web.NotFound(w, r)
			return models.UserWithProfile{}, false
		}
		h.web.ServerError(w, r, err)
		return models.UserWithProfile{}, false
	}

	return d, true
}

func (h *Users) updateForm(w http.ResponseWriter, r *http.Request) {
	d, ok := h.target(w, r)
	if !ok {
		return
	}

	h.renderUpdate(w, r, d, user.AdminUserUpdate{
		FirstName: d.FirstName,
		LastName:  d.LastName,
		Email:     d.Email,
		IsActive:  d.IsActive,
		IsStaff:   d.IsStaff,
	}, nil)
}

func (h *Users) renderUpdate(w http.ResponseWriter, r *http.Request, d models.UserWithProfile, form user.AdminUserUpdate, errs map[string]string) {
	changes, err := h.users.RecentChanges(r.Context(), recentChanges)
	if err != nil {
		h.web.ServerError(w, r, err)
		return
	}

	h.web.Render(w, r, http.StatusOK, "users/update.html", web.Data{
		"page_title":     "Update " + d.Username,
		"target":         d,
		"form":           form,
		"errors":         errs,
		"recent_changes": changes,
	})
}

func (h *Users) update(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.users.update"

	d, ok := h.target(w, r)
	if !ok {
		return
	}

	var in user.AdminUserUpdate
	if err := forms.Decode(r, &in); err != nil {
		h.log.Info("bad user form", slog.String("op", op), sl.Error(err))
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	// Send to service layer
	err := h.users.AdminUpdate(r.Context(), web.Account(r), d.ID, in)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrForbidden):
			h.web.Forbidden(w, r)
		case errors.Is(err, user.ErrUserNotFound):
			h.web.NotFound(w, r)
		case forms.Errors(err) != nil:
			h.renderUpdate(w, r, d, in, forms.Errors(err))
		default:
			h.web.ServerError(w, r, err)
		}
		return
	}

	h.web.Success(r, "User %s updated.", d.Username)

	web.Redirect(w, r, "/admin/users/")
}

func (h *Users) remove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.web.NotFound(w, r)
		return
	}

	// Send to service layer
	err = h.users.Remove(r.Context(), web.Account(r), id)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrSelfDelete):
			h.web.Error(r, "You cannot delete your own account.")
			web.Redirect(w, r, "/users/")
		case errors.Is(err, user.ErrForbidden):
			h.web.Forbidden(w, r)
		case errors.Is(err, user.ErrUserNotFound):
			h.web.NotFound(w, r)
		default:
			h.web.ServerError(w, r, err)
		}
		return
	}

	h.web.Success(r, "User deleted.")

	web.Redirect(w, r, "/users/")
}
