package models

import "fmt"

// Content types permissions are attached to.
const (
	ContentArticle = "article"
	ContentProfile = "userprofile"
	ContentUser    = "user"
	ContentGroup   = "group"
)

// Custom permission codenames.
const (
	PermPublishArticle   = "can_publish_article"
	PermUnpublishArticle = "can_unpublish_article"
	PermViewUnpublished  = "can_view_unpublished"

	PermViewAllProfiles = "can_view_all_profiles"
	PermEditAllProfiles = "can_edit_all_profiles"
	PermDeleteProfiles  = "can_delete_profiles"
)

// Default per-model codenames used by the application.
var (
	PermAddArticle    = Codename("add", ContentArticle)
	PermChangeArticle = Codename("change", ContentArticle)
	PermDeleteArticle = Codename("delete", ContentArticle)
	PermViewArticle   = Codename("view", ContentArticle)
)

type Permission struct {
	ID          int64  `json:"id"`
	ContentType string `json:"content_type"`
	Codename    string `json:"codename"`
	Name        string `json:"name"`
}

func (p Permission) String() string {
	return p.ContentType + "." + p.Codename
}

// Codename builds a default model permission codename such as "add_article".
func Codename(action, contentType string) string {
	return action + "_" + contentType
}

// PermissionCatalogue lists every permission known to the application: the
// four default actions for each content type followed by the custom ones.
func PermissionCatalogue() []Permission {
	verbose := map[string]string{
		ContentArticle: "article",
		ContentProfile: "user profile",
		ContentUser:    "user",
		ContentGroup:   "group",
	}

	var perms []Permission
	for _, ct := range []string{ContentArticle, ContentProfile, ContentUser, ContentGroup} {
		for _, action := range []string{"add", "change", "delete", "view"} {
			perms = append(perms, Permission{
				ContentType: ct,
				Codename:    Codename(action, ct),
				Name:        fmt.Sprintf("Can %s %s", action, verbose[ct]),
			})
		}
	}

	return append(perms,
		Permission{ContentType: ContentArticle, Codename: PermPublishArticle, Name: "Can publish articles"},
		Permission{ContentType: ContentArticle, Codename: PermUnpublishArticle, Name: "Can unpublish articles"},
		Permission{ContentType: ContentArticle, Codename: PermViewUnpublished, Name: "Can view unpublished articles"},
		Permission{ContentType: ContentProfile, Codename: PermViewAllProfiles, Name: "Can view all user profiles"},
		Permission{ContentType: ContentProfile, Codename: PermEditAllProfiles, Name: "Can edit all user profiles"},
		Permission{ContentType: ContentProfile, Codename: PermDeleteProfiles, Name: "Can delete user profiles"},
	)
}
