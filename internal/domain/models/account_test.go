package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccountHasPerm(t *testing.T) {
	cases := []struct {
		name    string
		account *Account
		perm    string
		want    bool
	}{
		{
			name:    "anonymous",
			account: nil,
			perm:    PermAddArticle,
			want:    false,
		},
		{
			name:    "granted through group",
			account: NewAccount(User{ID: 1, IsActive: true}, nil, []string{PermAddArticle}),
			perm:    PermAddArticle,
			want:    true,
		},
		{
			name:    "not granted",
			account: NewAccount(User{ID: 1, IsActive: true}, nil, []string{PermAddArticle}),
			perm:    PermPublishArticle,
			want:    false,
		},
		{
			name:    "inactive user holds nothing",
			account: NewAccount(User{ID: 1, IsActive: false}, nil, []string{PermAddArticle}),
			perm:    PermAddArticle,
			want:    false,
		},
		{
			name:    "superuser holds everything",
			account: NewAccount(User{ID: 1, IsActive: true, IsSuperuser: true}, nil, nil),
			perm:    PermDeleteProfiles,
			want:    true,
		},
		{
			name:    "inactive superuser holds nothing",
			account: NewAccount(User{ID: 1, IsSuperuser: true}, nil, nil),
			perm:    PermDeleteProfiles,
			want:    false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.account.HasPerm(tc.perm))
		})
	}
}

func TestAccountPerms(t *testing.T) {
	a := NewAccount(User{IsActive: true}, nil, []string{PermChangeArticle, PermAddArticle})
	assert.Equal(t, []string{"add_article", "change_article"}, a.Perms())

	su := NewAccount(User{IsActive: true, IsSuperuser: true}, nil, nil)
	assert.Len(t, su.Perms(), len(PermissionCatalogue()))
}

func TestAccountInGroup(t *testing.T) {
	a := NewAccount(User{IsActive: true}, []Group{{ID: 4, Name: GroupMembers}}, nil)

	assert.True(t, a.InGroup(GroupMembers))
	assert.False(t, a.InGroup(GroupAuthors))

	var anon *Account
	assert.False(t, anon.InGroup(GroupMembers))
	assert.Equal(t, int64(0), anon.UserID())
}

func TestPermissionCatalogue(t *testing.T) {
	seen := map[string]bool{}
	for _, p := range PermissionCatalogue() {
		assert.False(t, seen[p.Codename], "duplicate codename %s", p.Codename)
		seen[p.Codename] = true
	}

	assert.Len(t, seen, 22)
	assert.True(t, seen["view_userprofile"])
	assert.True(t, seen[PermViewUnpublished])
}
