package response

import (
	"blog-portal/internal/domain/models"
)

const (
	StatusOk    = "OK"
	StatusError = "Error"
)

type Response struct {
	Status   string           `json:"status"`
	Error    string           `json:"error,omitempty"`
	Token    string           `json:"token,omitempty"`
	User     *models.User     `json:"user,omitempty"`
	Groups   []models.Group   `json:"groups,omitempty"`
	Perms    []string         `json:"permissions,omitempty"`
	Article  *models.Article  `json:"article,omitempty"`
	Articles []models.Article `json:"articles,omitempty"`
	Total    int              `json:"total,omitempty"`
	ID       int64            `json:"id,omitempty"`
}

func OK() Response {
	return Response{Status: StatusOk}
}

func Err(msg string) Response {
	return Response{
		Status: StatusError,
		Error:  msg,
	}
}
