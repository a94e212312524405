package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"blog-portal/internal/domain/models"
	"blog-portal/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func addUser(t *testing.T, s *Storage, name string, groups ...string) int64 {
	t.Helper()

	id, err := s.CreateUser(context.Background(), models.User{
		Username: name,
		Email:    name + "@example.com",
		PassHash: []byte("hash"),
		IsActive: true,
	}, groups...)
	require.NoError(t, err)

	return id
}

func TestWithParams(t *testing.T) {
	cases := []struct {
		dsn  string
		want string
	}{
		{"./db.sqlite", "./db.sqlite?_foreign_keys=on&_busy_timeout=10000&_journal_mode=WAL"},
		{":memory:", ":memory:?_foreign_keys=on&_busy_timeout=10000"},
		{"file:x.db?cache=shared", "file:x.db?cache=shared&_foreign_keys=on&_busy_timeout=10000&_journal_mode=WAL"},
		{"x.db?_fk=1&_timeout=5&_journal=DELETE", "x.db?_fk=1&_timeout=5&_journal=DELETE"},
	}

	for _, tc := range cases {
		t.Run(tc.dsn, func(t *testing.T) {
			assert.Equal(t, tc.want, withParams(tc.dsn))
		})
	}
}

func TestNew_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "test.db")

	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = New(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestSessionStore(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	store := s.SessionStore()
	require.NoError(t, store.Commit("live", []byte("data"), time.Now().Add(time.Hour)))
	require.NoError(t, store.Commit("old", []byte("stale"), time.Now().Add(-time.Hour)))

	b, found, err := store.Find("live")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("data"), b)

	_, found, err = store.Find("old")
	require.NoError(t, err)
	assert.False(t, found)

	n, err := s.DeleteExpiredSessions()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestNew_BadPath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	_, err := New(filepath.Join(file, "test.db"))
	assert.Error(t, err)
}

func TestCreateUser(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	id := addUser(t, s, "alice", models.GroupMembers)

	u, err := s.UserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.True(t, u.IsActive)
	assert.False(t, u.DateJoined.IsZero())
	assert.Nil(t, u.LastLogin)

	p, err := s.ProfileByUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, p.UserID)

	groups, err := s.GroupsOf(ctx, id)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, models.GroupMembers, groups[0].Name)

	_, err = s.CreateUser(ctx, models.User{Username: "alice", PassHash: []byte("x")})
	assert.ErrorIs(t, err, storage.ErrUserExists)
}

func TestUserByName_NotFound(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.UserByName(context.Background(), "nobody")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestUsers(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	for _, name := range []string{"carol", "alice", "bob"} {
		addUser(t, s, name)
	}

	n, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	users, err := s.Users(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "bob", users[1].Username)
	assert.Equal(t, users[0].ID, users[0].Profile.UserID)

	users, err = s.Users(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "carol", users[0].Username)
}

func TestUpdateUser(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	id := addUser(t, s, "alice")

	u, err := s.UserByID(ctx, id)
	require.NoError(t, err)

	u.FirstName = "Alice"
	u.IsStaff = true
	require.NoError(t, s.UpdateUser(ctx, u))
	require.NoError(t, s.SetPassword(ctx, id, []byte("new")))

	now := time.Now()
	require.NoError(t, s.TouchLastLogin(ctx, id, now))

	u, err = s.UserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.FirstName)
	assert.True(t, u.IsStaff)
	assert.Equal(t, []byte("new"), u.PassHash)
	require.NotNil(t, u.LastLogin)
	assert.WithinDuration(t, now, *u.LastLogin, time.Second)

	err = s.UpdateUser(ctx, models.User{ID: 999})
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestRemoveUser_Cascades(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	id := addUser(t, s, "alice", models.GroupAuthors)
	_, err := s.CreateArticle(ctx, models.Article{Title: "t", Content: "c", AuthorID: id})
	require.NoError(t, err)

	require.NoError(t, s.RemoveUser(ctx, id))

	_, err = s.ProfileByUser(ctx, id)
	assert.ErrorIs(t, err, storage.ErrProfileNotFound)

	n, err := s.CountArticles(ctx, models.ArticleFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.ErrorIs(t, s.RemoveUser(ctx, id), storage.ErrUserNotFound)
}

func TestProfile(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	id := addUser(t, s, "alice")

	birth := time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC)
	err := s.UpdateProfile(ctx, models.Profile{
		UserID:      id,
		PhoneNumber: "+123",
		BirthDate:   &birth,
		Avatar:      "avatars/1.png",
		Bio:         "hi",
		Location:    "Berlin",
	})
	require.NoError(t, err)

	p, err := s.ProfileByUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "+123", p.PhoneNumber)
	require.NotNil(t, p.BirthDate)
	assert.True(t, birth.Equal(*p.BirthDate))
	assert.Equal(t, "avatars/1.png", p.Avatar)
	assert.Equal(t, "Berlin", p.Location)

	_, err = s.CreateProfile(ctx, 999)
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	assert.ErrorIs(t, s.UpdateProfile(ctx, models.Profile{UserID: 999}), storage.ErrProfileNotFound)
}

func TestGroupsAndPermissions(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.EnsurePermissions(ctx, models.PermissionCatalogue()))
	require.NoError(t, s.EnsurePermissions(ctx, models.PermissionCatalogue()))

	perms, err := s.Permissions(ctx)
	require.NoError(t, err)
	assert.Len(t, perms, len(models.PermissionCatalogue()))

	g, created, err := s.GetOrCreateGroup(ctx, models.GroupAuthors, "Can create and publish articles")
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := s.GetOrCreateGroup(ctx, models.GroupAuthors, "ignored")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, g, again)

	require.NoError(t, s.SetGroupPermissions(ctx, g.ID, []string{
		models.PermAddArticle, models.PermPublishArticle, "no_such_perm",
	}))

	codes, err := s.GroupPermissions(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{models.PermAddArticle, models.PermPublishArticle}, codes)

	uid := addUser(t, s, "alice")
	require.NoError(t, s.AddMember(ctx, g.ID, uid))
	require.NoError(t, s.AddMember(ctx, g.ID, uid))

	codes, err = s.UserPermissions(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, []string{models.PermAddArticle, models.PermPublishArticle}, codes)

	require.NoError(t, s.RemoveMember(ctx, g.ID, uid))
	codes, err = s.UserPermissions(ctx, uid)
	require.NoError(t, err)
	assert.Empty(t, codes)

	assert.ErrorIs(t, s.AddMember(ctx, 999, uid), storage.ErrGroupNotFound)

	_, err = s.Group(ctx, 999)
	assert.ErrorIs(t, err, storage.ErrGroupNotFound)
	_, err = s.GroupByName(ctx, "nope")
	assert.ErrorIs(t, err, storage.ErrGroupNotFound)

	groups, err := s.Groups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "Can create and publish articles", groups[0].Description)
}

func TestCreateGroup(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	g, err := s.CreateGroup(ctx, "Editors", "Copy editing")
	require.NoError(t, err)
	assert.NotZero(t, g.ID)

	_, err = s.CreateGroup(ctx, "Editors", "again")
	assert.ErrorIs(t, err, storage.ErrGroupExists)

	stored, err := s.GroupByName(ctx, "Editors")
	require.NoError(t, err)
	assert.Equal(t, g, stored)
}

func TestArticles(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	alice := addUser(t, s, "alice")
	bob := addUser(t, s, "bob")

	mk := func(title, content string, author int64, published bool) int64 {
		id, err := s.CreateArticle(ctx, models.Article{
			Title: title, Content: content, AuthorID: author, IsPublished: published,
		})
		require.NoError(t, err)
		return id
	}

	a1 := mk("Go basics", "intro to go", alice, true)
	a2 := mk("Python tips", "100% useful", alice, false)
	a3 := mk("Another story", "go routines", bob, true)

	a, err := s.ArticleByID(ctx, a2)
	require.NoError(t, err)
	assert.Equal(t, "alice", a.AuthorName)
	assert.False(t, a.IsPublished)

	_, err = s.ArticleByID(ctx, 999)
	assert.ErrorIs(t, err, storage.ErrArticleNotFound)

	published, err := s.Articles(ctx, models.ArticleFilter{Published: models.Bool(true)})
	require.NoError(t, err)
	assert.Equal(t, []int64{a3, a1}, ids(published))

	visible, err := s.Articles(ctx, models.ArticleFilter{Published: models.Bool(true), VisibleTo: alice})
	require.NoError(t, err)
	assert.Len(t, visible, 3)

	byTitle, err := s.Articles(ctx, models.ArticleFilter{Order: models.OrderTitle})
	require.NoError(t, err)
	assert.Equal(t, []int64{a3, a1, a2}, ids(byTitle))

	found, err := s.Articles(ctx, models.ArticleFilter{Query: "GO", Order: models.OrderOldest})
	require.NoError(t, err)
	assert.Equal(t, []int64{a1, a3}, ids(found))

	escaped, err := s.Articles(ctx, models.ArticleFilter{Query: "%"})
	require.NoError(t, err)
	assert.Equal(t, []int64{a2}, ids(escaped))

	others, err := s.Articles(ctx, models.ArticleFilter{AuthorID: alice, ExcludeID: a1})
	require.NoError(t, err)
	assert.Equal(t, []int64{a2}, ids(others))

	paged, err := s.Articles(ctx, models.ArticleFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []int64{a2}, ids(paged))

	n, err := s.CountArticles(ctx, models.ArticleFilter{TitleQuery: "o", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	a.Title = "Python tricks"
	a.IsPublished = true
	require.NoError(t, s.UpdateArticle(ctx, a))
	a, err = s.ArticleByID(ctx, a2)
	require.NoError(t, err)
	assert.Equal(t, "Python tricks", a.Title)
	assert.True(t, a.IsPublished)

	changed, err := s.SetPublished(ctx, []int64{a1, a2, a3}, false)
	require.NoError(t, err)
	assert.EqualValues(t, 3, changed)

	changed, err = s.SetPublished(ctx, []int64{a1, a2}, false)
	require.NoError(t, err)
	assert.Zero(t, changed)

	authors, err := s.Authors(ctx)
	require.NoError(t, err)
	require.Len(t, authors, 2)
	assert.Equal(t, "alice", authors[0].Username)

	require.NoError(t, s.RemoveArticle(ctx, a3))
	assert.ErrorIs(t, s.RemoveArticle(ctx, a3), storage.ErrArticleNotFound)

	authors, err = s.Authors(ctx)
	require.NoError(t, err)
	assert.Len(t, authors, 1)

	_, err = s.CreateArticle(ctx, models.Article{Title: "x", Content: "y", AuthorID: 999})
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestLogEntries(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	admin := addUser(t, s, "admin")
	target := addUser(t, s, "bob")

	require.NoError(t, s.AddLogEntry(ctx, models.LogEntry{
		ActorID: admin, ObjectID: target, ObjectRepr: "bob", Message: "Staff status changed by admin",
	}))
	require.NoError(t, s.AddLogEntry(ctx, models.LogEntry{
		ObjectID: target, ObjectRepr: "bob", Message: "system",
	}))

	entries, err := s.LogEntries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "system", entries[0].Message)
	assert.Zero(t, entries[0].ActorID)
	assert.Equal(t, "admin", entries[1].ActorName)

	require.NoError(t, s.RemoveUser(ctx, admin))
	entries, err = s.LogEntries(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func ids(articles []models.Article) []int64 {
	out := make([]int64, 0, len(articles))
	for _, a := range articles {
		out = append(out, a.ID)
	}
	return out
}
