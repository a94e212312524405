// Package web renders the HTML pages of the portal.
package web

import (
	"bytes"
	"context"
	"embed"
	"encoding/gob"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"
	"sync"

	"blog-portal/internal/domain/models"
	"blog-portal/internal/http-server/middleware/auth"
	"blog-portal/internal/lib/logger/sl"

	"github.com/alexedwards/scs/v2"
)

//go:embed templates
var embedded embed.FS

const (
	baseTemplate = "base.html"
	flashKey     = "flashes"
)

type Flash struct {
	Level   string
	Message string
}

func init() {
	gob.Register([]Flash{}) // flashes are stored in the session
}

// Data is the context dictionary handed to a page.
type Data map[string]any

type Renderer struct {
	log      *slog.Logger
	sessions *scs.SessionManager
	fsys     fs.FS
	dir      string

	mu    sync.RWMutex
	pages map[string]*template.Template
}

// New parses the pages. With an empty dir the embedded templates are used;
// otherwise pages are read from dir and Watch can reload them.
func New(log *slog.Logger, sessions *scs.SessionManager, dir string) (*Renderer, error) {
	const op = "web.New"

	r := &Renderer{
		log:      log,
		sessions: sessions,
		dir:      dir,
	}

	if dir != "" {
		r.fsys = os.DirFS(dir)
	} else {
		sub, err := fs.Sub(embedded, "templates")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		r.fsys = sub
	}

	if err := r.load(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return r, nil
}

func (r *Renderer) load() error {
	pages := make(map[string]*template.Template)

	err := fs.WalkDir(r.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || p == baseTemplate || path.Ext(p) != ".html" {
			return nil
		}

		t, err := template.New(path.Base(p)).Funcs(funcs).ParseFS(r.fsys, baseTemplate, p)
		if err != nil {
			return err
		}
		pages[p] = t

		return nil
	})
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.pages = pages
	r.mu.Unlock()

	return nil
}

// Flash queues a message shown on the next rendered page.
func (r *Renderer) Flash(req *http.Request, level, msg string) {
	flashes, _ := r.sessions.Get(req.Context(), flashKey).([]Flash)
	flashes = append(flashes, Flash{Level: level, Message: msg})
	r.sessions.Put(req.Context(), flashKey, flashes)
}

func (r *Renderer) Success(req *http.Request, format string, args ...any) {
	r.Flash(req, "success", fmt.Sprintf(format, args...))
}

func (r *Renderer) Error(req *http.Request, format string, args ...any) {
	r.Flash(req, "error", fmt.Sprintf(format, args...))
}

// Render executes page with data extended by the current account, the
// pending flashes and the request path.
func (r *Renderer) Render(w http.ResponseWriter, req *http.Request, status int, page string, data Data) {
	const op = "web.Render"

	r.mu.RLock()
	t, ok := r.pages[page]
	r.mu.RUnlock()
	if !ok {
		r.log.Error("unknown page", slog.String("op", op), slog.String("page", page))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ctx := make(Data, len(data)+3)
	for k, v := range data {
		ctx[k] = v
	}
	ctx["account"] = auth.FromContext(req.Context())
	ctx["path"] = req.URL.Path
	ctx["flashes"], _ = r.sessions.Pop(req.Context(), flashKey).([]Flash)

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, path.Base(page), ctx); err != nil {
		r.log.Error("failed to render page", slog.String("op", op), slog.String("page", page), sl.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (r *Renderer) Forbidden(w http.ResponseWriter, req *http.Request) {
	r.Render(w, req, http.StatusForbidden, "errors/403.html", nil)
}

func (r *Renderer) NotFound(w http.ResponseWriter, req *http.Request) {
	r.Render(w, req, http.StatusNotFound, "errors/404.html", nil)
}

// ServerError logs err and renders the 500 page.
func (r *Renderer) ServerError(w http.ResponseWriter, req *http.Request, err error) {
	r.log.Error("internal error",
		slog.String("path", req.URL.Path),
		slog.String("method", req.Method),
		sl.Error(err),
	)
	r.Render(w, req, http.StatusInternalServerError, "errors/500.html", nil)
}

// Redirect sends a 302 to url.
func Redirect(w http.ResponseWriter, req *http.Request, url string) {
	http.Redirect(w, req, url, http.StatusFound)
}

// SafeNext returns next when it is a local path, fallback otherwise.
func SafeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	return next
}

// Account is a shortcut for handlers.
func Account(req *http.Request) *models.Account {
	return auth.FromContext(req.Context())
}

// Watch reloads the pages whenever a file in the template directory changes.
// It returns when ctx is done. Nothing happens for embedded templates.
func (r *Renderer) Watch(ctx context.Context) error {
	if r.dir == "" {
		return nil
	}
	return watch(ctx, r.log, r.dir, r.load)
}
