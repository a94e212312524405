package models

import "sort"

// Account is an authenticated user with their groups and effective
// permissions.
type Account struct {
	User
	Groups []Group
	perms  map[string]struct{}
}

func NewAccount(u User, groups []Group, codenames []string) *Account {
	perms := make(map[string]struct{}, len(codenames))
	for _, c := range codenames {
		perms[c] = struct{}{}
	}

	return &Account{
		User:   u,
		Groups: groups,
		perms:  perms,
	}
}

// HasPerm reports whether the account holds the permission codename.
// Inactive accounts hold nothing; active superusers hold everything.
func (a *Account) HasPerm(codename string) bool {
	if a == nil || !a.IsActive {
		return false
	}
	if a.IsSuperuser {
		return true
	}
	_, ok := a.perms[codename]
	return ok
}

// Perms returns the codenames granted through groups, sorted. For
// superusers it returns the whole catalogue.
func (a *Account) Perms() []string {
	if a == nil || !a.IsActive {
		return nil
	}

	var codes []string
	if a.IsSuperuser {
		for _, p := range PermissionCatalogue() {
			codes = append(codes, p.Codename)
		}
	} else {
		for c := range a.perms {
			codes = append(codes, c)
		}
	}
	sort.Strings(codes)

	return codes
}

func (a *Account) InGroup(name string) bool {
	if a == nil {
		return false
	}
	for _, g := range a.Groups {
		if g.Name == name {
			return true
		}
	}
	return false
}

// IsAdmin is true for active staff and superusers.
func (a *Account) IsAdmin() bool {
	return a != nil && a.IsActive && (a.IsStaff || a.IsSuperuser)
}

// UserID returns 0 for a nil account, so anonymous requests compare unequal to
// every author.
func (a *Account) UserID() int64 {
	if a == nil {
		return 0
	}
	return a.ID
}
