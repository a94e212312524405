package request

type Credentials struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// Article is the body of article create and update calls. A nil
// IsPublished leaves the flag as it is.
type Article struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	IsPublished *bool  `json:"is_published,omitempty"`
}
