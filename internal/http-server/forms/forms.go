// Package forms binds posted HTML forms to tagged structs.
package forms

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"blog-portal/internal/lib/validate"

	"github.com/ajg/form"
)

// MaxMemory bounds the in-memory part of multipart uploads.
const MaxMemory = 5 << 20

var ErrBadForm = errors.New("malformed form")

// Decode parses the request body and fills dst from the fields named by its
// form tags. Unknown fields are ignored.
func Decode(r *http.Request, dst any) error {
	const op = "forms.Decode"

	if err := parse(r); err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrBadForm, err)
	}

	d := form.NewDecoder(nil)
	d.IgnoreUnknownKeys(true)
	if err := d.DecodeValues(dst, r.PostForm); err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrBadForm, err)
	}

	return nil
}

func parse(r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.ParseMultipartForm(MaxMemory)
	}
	return r.ParseForm()
}

// File returns the uploaded file of field, or nil when none was sent.
func File(r *http.Request, field string) (io.ReadCloser, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}

	f, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return f, nil
}

// IDs reads every value of field as an id. Values that aren't ids are
// skipped.
func IDs(r *http.Request, field string) []int64 {
	_ = parse(r)

	var ids []int64
	for _, v := range r.PostForm[field] {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// Errors turns a validation error into per-field messages. It returns nil
// for any other error.
func Errors(err error) map[string]string {
	return validate.Messages(err)
}
