package web

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"blog-portal/internal/lib/logger/sl"

	"github.com/fsnotify/fsnotify"
)

// debounce collapses the burst of events an editor produces on save.
const debounce = 200 * time.Millisecond

func watch(ctx context.Context, log *slog.Logger, dir string, reload func() error) error {
	const op = "web.watch"

	log = log.With(slog.String("op", op))

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// fsnotify doesn't recurse
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(p)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info("watching templates", slog.String("dir", dir))

	ticker := time.NewTicker(debounce)
	defer ticker.Stop()

	var pending time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				pending = time.Now()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", sl.Error(err))
		case now := <-ticker.C:
			if pending.IsZero() || now.Sub(pending) < debounce {
				continue
			}
			pending = time.Time{}

			if err := reload(); err != nil {
				// keep serving the previous set
				log.Error("failed to reload templates", sl.Error(err))
				continue
			}
			log.Info("templates reloaded")
		}
	}
}
