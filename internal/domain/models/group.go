package models

const (
	GroupSiteAdmins = "Site Admins"
	GroupModerators = "Moderators"
	GroupAuthors    = "Authors"
	GroupMembers    = "Members"
)

type Group struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
