package article

import "blog-portal/internal/domain/models"

// Who may do what with an article. A nil account is an anonymous visitor.

func isAuthor(acc *models.Account, a models.Article) bool {
	return acc.UserID() != 0 && acc.IsActive && a.AuthorID == acc.UserID()
}

func CanView(acc *models.Account, a models.Article) bool {
	return a.IsPublished || isAuthor(acc, a) || acc.HasPerm(models.PermViewUnpublished)
}

func CanEdit(acc *models.Account, a models.Article) bool {
	if acc.IsAdmin() || isAuthor(acc, a) {
		return true
	}
	return acc.HasPerm(models.PermChangeArticle) && acc.HasPerm(models.PermViewUnpublished)
}

func CanDelete(acc *models.Account, a models.Article) bool {
	if acc.IsAdmin() {
		return true
	}
	if !acc.HasPerm(models.PermDeleteArticle) {
		return false
	}
	return isAuthor(acc, a) || acc.HasPerm(models.PermViewUnpublished)
}

func CanCreate(acc *models.Account) bool {
	return acc.HasPerm(models.PermAddArticle)
}

func CanPublish(acc *models.Account) bool {
	return acc.HasPerm(models.PermPublishArticle)
}

func CanUnpublish(acc *models.Account) bool {
	return acc.HasPerm(models.PermUnpublishArticle)
}

// CanBulk covers publishing or unpublishing many articles at once.
func CanBulk(acc *models.Account) bool {
	return acc.IsAdmin()
}

// mayChangeStatus reports whether a form may move the article to published.
func mayChangeStatus(acc *models.Account, published bool) bool {
	if acc.IsAdmin() {
		return true
	}
	if published {
		return CanPublish(acc)
	}
	return CanUnpublish(acc)
}
