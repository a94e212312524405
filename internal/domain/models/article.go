package models

import "time"

type Article struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	AuthorID    int64     `json:"author_id"`
	AuthorName  string    `json:"author,omitempty"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ArticleOrder string

const (
	OrderNewest ArticleOrder = "newest"
	OrderOldest ArticleOrder = "oldest"
	OrderTitle  ArticleOrder = "title"
)

// ArticleFilter narrows article queries. Zero values don't filter.
type ArticleFilter struct {
	Published *bool
	AuthorID  int64
	ExcludeID int64
	// Query matches title or content, case-insensitively.
	Query string
	// TitleQuery matches the title only.
	TitleQuery string
	// VisibleTo also includes unpublished articles by this author when
	// Published is set to true.
	VisibleTo int64
	Order     ArticleOrder
	Limit     int
	Offset    int
}

func Bool(b bool) *bool {
	return &b
}
