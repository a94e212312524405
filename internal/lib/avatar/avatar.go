// Package avatar stores uploaded profile pictures under the media directory.
package avatar

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

// MaxSide is the largest width or height a stored avatar keeps.
const MaxSide = 300

const dir = "avatars"

var ErrNotImage = errors.New("uploaded file is not a valid image")

type Store struct {
	root string
}

// New returns a store writing below root, the media directory.
func New(root string) *Store {
	return &Store{root: root}
}

// Save decodes the image in r, shrinks it to fit MaxSide and writes it as
// JPEG. It returns the path relative to the media directory.
func (s *Store) Save(userID int64, r io.Reader) (string, error) {
	const op = "avatar.Save"

	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrNotImage)
	}

	b := img.Bounds()
	if b.Dx() > MaxSide || b.Dy() > MaxSide {
		img = imaging.Fit(img, MaxSide, MaxSide, imaging.Lanczos)
	}

	if err := os.MkdirAll(filepath.Join(s.root, dir), 0o755); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	rel := filepath.ToSlash(filepath.Join(dir, fmt.Sprintf("%d_%d.jpg", userID, time.Now().UnixNano())))
	if err := imaging.Save(img, filepath.Join(s.root, rel), imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return rel, nil
}

// Remove deletes a file previously returned by Save. Missing files and paths
// outside the avatar directory are ignored.
func (s *Store) Remove(rel string) error {
	const op = "avatar.Remove"

	clean := filepath.Clean(filepath.FromSlash(rel))
	if rel == "" || !strings.HasPrefix(clean, dir+string(filepath.Separator)) {
		return nil
	}

	if err := os.Remove(filepath.Join(s.root, clean)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
