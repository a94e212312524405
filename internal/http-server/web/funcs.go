package web

import (
	"html/template"
	"strings"
	"time"

	"blog-portal/internal/domain/models"

	"gitlab.com/golang-commonmark/markdown"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Article bodies are user input, so raw HTML stays escaped.
var md = markdown.New(markdown.HTML(false), markdown.Linkify(true), markdown.Typographer(true), markdown.MaxNesting(10))

var funcs = template.FuncMap{
	"markdown": func(s string) template.HTML {
		return template.HTML(md.RenderToString([]byte(s)))
	},
	"date":     formatDate,
	"truncate": truncate,
	"humanize": humanize,
	"media": func(p string) string {
		return "/media/" + p
	},
	"groupNames": func(groups []models.Group) string {
		names := make([]string, 0, len(groups))
		for _, g := range groups {
			names = append(names, g.Name)
		}
		return strings.Join(names, ", ")
	},
	"inGroup": func(groups []models.Group, id int64) bool {
		for _, g := range groups {
			if g.ID == id {
				return true
			}
		}
		return false
	},
	"add": func(a, b int) int {
		return a + b
	},
}

// formatDate accepts time.Time and *time.Time. A nil or zero time gives "".
func formatDate(layout string, v any) string {
	var t time.Time
	switch tv := v.(type) {
	case time.Time:
		t = tv
	case *time.Time:
		if tv == nil {
			return ""
		}
		t = *tv
	default:
		return ""
	}
	if t.IsZero() {
		return ""
	}
	return t.Format(layout)
}

func truncate(n int, s string) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// humanize turns a codename such as "can_publish_article" into
// "Can Publish Article".
func humanize(code string) string {
	// a Caser keeps state, so one per call
	return cases.Title(language.English).String(strings.ReplaceAll(code, "_", " "))
}
