package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"blog-portal/internal/app"
	"blog-portal/internal/config"
	"blog-portal/internal/domain/models"
	resp "blog-portal/internal/lib/api/response"
	"blog-portal/internal/lib/logger"
	"blog-portal/internal/service/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const password = "s3cret-pass"

type env struct {
	t   *testing.T
	app *app.App
	srv *httptest.Server
	dir string
}

func setup(t *testing.T) *env {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		Env:        config.EnvLocal,
		StorageURL: "sqlite3:" + filepath.Join(dir, "portal.db"),
		MediaDir:   filepath.Join(dir, "media"),
		Secret:     "test-secret",
		TokenTTL:   time.Hour,
		Session: config.Session{
			Lifetime:    time.Hour,
			IdleTimeout: time.Hour,
			CookieName:  "sessionid",
		},
	}

	a, err := app.New(logger.Discard(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ctx := context.Background()
	_, err = a.Access.Setup(ctx)
	require.NoError(t, err)

	for _, u := range []user.NewUser{
		{Username: "alice", Password: password, Groups: []string{models.GroupAuthors}},
		{Username: "bob", Password: password, Groups: []string{models.GroupMembers}},
		{Username: "carol", Password: password, Groups: []string{models.GroupModerators}},
		{Username: "root", Password: password, IsSuperuser: true},
	} {
		_, err := a.Users.CreateUser(ctx, u)
		require.NoError(t, err)
	}

	srv := httptest.NewServer(a)
	t.Cleanup(srv.Close)

	return &env{t: t, app: a, srv: srv, dir: dir}
}

type browser struct {
	env *env
	c   *http.Client
}

func (e *env) browser() *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(e.t, err)

	return &browser{
		env: e,
		c: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (b *browser) read(res *http.Response, err error) (*http.Response, string) {
	b.env.t.Helper()

	require.NoError(b.env.t, err)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(b.env.t, err)
	return res, string(body)
}

func (b *browser) get(path string) (*http.Response, string) {
	b.env.t.Helper()
	return b.read(b.c.Get(b.env.srv.URL + path))
}

func (b *browser) post(path string, form url.Values) (*http.Response, string) {
	b.env.t.Helper()
	return b.read(b.c.PostForm(b.env.srv.URL+path, form))
}

// upload posts fields as multipart/form-data with file sent as the avatar.
func (b *browser) upload(path string, fields url.Values, file []byte) (*http.Response, string) {
	b.env.t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, vs := range fields {
		for _, v := range vs {
			require.NoError(b.env.t, mw.WriteField(k, v))
		}
	}
	if file != nil {
		fw, err := mw.CreateFormFile("avatar", "me.png")
		require.NoError(b.env.t, err)
		_, err = fw.Write(file)
		require.NoError(b.env.t, err)
	}
	require.NoError(b.env.t, mw.Close())

	return b.read(b.c.Post(b.env.srv.URL+path, mw.FormDataContentType(), &body))
}

func pngImage(t *testing.T, c color.Color) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for x := 0; x < 40; x++ {
		for y := 0; y < 30; y++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func (e *env) groupID(name string) int64 {
	e.t.Helper()

	groups, err := e.app.Access.Groups(context.Background())
	require.NoError(e.t, err)
	for _, g := range groups {
		if g.Name == name {
			return g.ID
		}
	}
	e.t.Fatalf("no group %q", name)
	return 0
}

func (b *browser) login(username string) {
	b.env.t.Helper()

	res, _ := b.post("/accounts/login/", url.Values{"username": {username}, "password": {password}})
	require.Equal(b.env.t, http.StatusFound, res.StatusCode)
	require.Equal(b.env.t, "/dashboard/", res.Header.Get("Location"))
}

// createArticle posts the new article form and returns the id from the
// redirect.
func (b *browser) createArticle(title string, published bool) int64 {
	b.env.t.Helper()

	form := url.Values{"title": {title}, "content": {"Some **content**."}}
	if published {
		form.Set("is_published", "true")
	}

	res, _ := b.post("/articles/new/", form)
	require.Equal(b.env.t, http.StatusFound, res.StatusCode)

	loc := res.Header.Get("Location")
	require.True(b.env.t, strings.HasPrefix(loc, "/articles/"), loc)

	id, err := strconv.ParseInt(strings.Trim(strings.TrimPrefix(loc, "/articles/"), "/"), 10, 64)
	require.NoError(b.env.t, err)
	return id
}

func TestAnonymousIsSentToLogin(t *testing.T) {
	e := setup(t)
	b := e.browser()

	for path, want := range map[string]string{
		"/articles/new/": "/accounts/login/?next=%2Farticles%2Fnew%2F",
		"/dashboard/":    "/accounts/login/?next=%2Fdashboard%2F",
		"/users/?page=2": "/accounts/login/?next=%2Fusers%2F%3Fpage%3D2",
		"/admin/users/":  "/accounts/login/?next=%2Fadmin%2Fusers%2F",
	} {
		res, _ := b.get(path)
		assert.Equal(t, http.StatusFound, res.StatusCode, path)
		assert.Equal(t, want, res.Header.Get("Location"), path)
	}
}

func TestLoginLogout(t *testing.T) {
	e := setup(t)
	b := e.browser()

	res, body := b.post("/accounts/login/", url.Values{"username": {"bob"}, "password": {"wrong-pass1"}})
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Please enter a correct username and password.")

	b.login("bob")

	res, body = b.get("/dashboard/")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Welcome back, bob!")
	assert.Contains(t, body, "Members")

	res, _ = b.post("/accounts/logout/", nil)
	assert.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, "/accounts/login/", res.Header.Get("Location"))

	res, _ = b.get("/dashboard/")
	assert.Equal(t, http.StatusFound, res.StatusCode)
}

func TestLoginRedirectsToNext(t *testing.T) {
	e := setup(t)
	b := e.browser()

	res, _ := b.post("/accounts/login/", url.Values{
		"username": {"alice"},
		"password": {password},
		"next":     {"/articles/new/"},
	})
	assert.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, "/articles/new/", res.Header.Get("Location"))

	res, _ = b.get("/articles/new/")
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestForbiddenForMissingPermission(t *testing.T) {
	e := setup(t)

	bob := e.browser()
	bob.login("bob")

	res, body := bob.get("/users/")
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Contains(t, body, "403")

	carol := e.browser()
	carol.login("carol")

	res, body = carol.get("/users/")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "alice")

	res, _ = carol.get("/admin/users/1/update/")
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
}

func TestMemberCannotPublish(t *testing.T) {
	e := setup(t)

	bob := e.browser()
	bob.login("bob")

	id := bob.createArticle("Bob's notes", true)
	path := "/articles/" + strconv.FormatInt(id, 10) + "/"

	// asked for published, stored as a draft
	res, body := bob.get(path)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Draft")

	res, _ = bob.post(path+"publish/", nil)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	anon := e.browser()
	res, _ = anon.get(path)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	// moderators see drafts
	carol := e.browser()
	carol.login("carol")
	res, _ = carol.get(path)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestAuthorPublishes(t *testing.T) {
	e := setup(t)

	alice := e.browser()
	alice.login("alice")

	id := alice.createArticle("Hello Go", false)
	path := "/articles/" + strconv.FormatInt(id, 10) + "/"

	anon := e.browser()
	res, _ := anon.get(path)
	require.Equal(t, http.StatusNotFound, res.StatusCode)

	res, _ = alice.post(path+"publish/", nil)
	require.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, path, res.Header.Get("Location"))

	res, body := anon.get(path)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Hello Go")
	assert.Contains(t, body, "<strong>content</strong>")

	res, body = anon.get("/search/?q=hello")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Hello Go")

	// the legacy singular path serves the same page
	res, _ = anon.get("/article/" + strconv.FormatInt(id, 10) + "/")
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestSignup(t *testing.T) {
	e := setup(t)
	b := e.browser()

	form := url.Values{
		"username":  {"dave"},
		"email":     {"dave@example.com"},
		"password1": {password},
		"password2": {password},
	}

	res, _ := b.post("/signup/", form)
	require.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, "/accounts/login/", res.Header.Get("Location"))

	res, body := b.get("/accounts/login/")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Account created successfully for dave! You can now log in.")

	b.login("dave")

	res, body = b.get("/dashboard/")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Members")

	again := e.browser()
	res, body = again.post("/signup/", form)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "A user with that username already exists.")

	form.Set("password2", "different-1")
	form.Set("username", "erin")
	res, body = again.post("/signup/", form)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "The two password fields didn&#39;t match.")
}

func TestUnknownPage(t *testing.T) {
	e := setup(t)

	res, body := e.browser().get("/no/such/page/")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Contains(t, body, "404")

	res, body = e.browser().get("/healthz")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "ok", body)
}

func TestAPI(t *testing.T) {
	e := setup(t)

	res, err := http.Post(e.srv.URL+"/api/v1/token", "application/json",
		strings.NewReader(`{"username":"alice","password":"`+password+`"}`))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var tok resp.Response
	require.NoError(t, json.NewDecoder(res.Body).Decode(&tok))
	require.NotEmpty(t, tok.Token)

	req, err := http.NewRequest(http.MethodPost, e.srv.URL+"/api/v1/articles",
		strings.NewReader(`{"title":"From the API","content":"Body","is_published":true}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok.Token)

	res2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res2.Body.Close()
	require.Equal(t, http.StatusCreated, res2.StatusCode)

	var created resp.Response
	require.NoError(t, json.NewDecoder(res2.Body).Decode(&created))
	require.NotNil(t, created.Article)
	assert.True(t, created.Article.IsPublished)

	res3, err := http.Get(e.srv.URL + "/api/v1/articles/" + strconv.FormatInt(created.ID, 10))
	require.NoError(t, err)
	defer res3.Body.Close()
	assert.Equal(t, http.StatusOK, res3.StatusCode)
}

// users are created in setup order: alice, bob, carol, root
const (
	aliceID = "1"
	bobID   = "2"
	carolID = "3"
)

func TestManageGroupMembership(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	mods := strconv.FormatInt(e.groupID(models.GroupModerators), 10)

	bob := e.browser()
	bob.login("bob")
	res, _ := bob.post("/admin/users/", url.Values{"user_id": {bobID}, "group_id": {mods}, "action": {"add"}})
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	carol := e.browser()
	carol.login("carol")

	res, _ = carol.post("/admin/users/", url.Values{"user_id": {bobID}, "group_id": {mods}, "action": {"add"}})
	require.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, "/admin/users/", res.Header.Get("Location"))

	res, body := carol.get("/admin/users/")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Added bob to Moderators")

	acc, err := e.app.Access.Account(ctx, 2)
	require.NoError(t, err)
	assert.True(t, acc.InGroup(models.GroupModerators))

	res, _ = carol.post("/admin/users/", url.Values{"user_id": {bobID}, "group_id": {mods}, "action": {"remove"}})
	require.Equal(t, http.StatusFound, res.StatusCode)
	_, body = carol.get("/admin/users/")
	assert.Contains(t, body, "Removed bob from Moderators")

	acc, err = e.app.Access.Account(ctx, 2)
	require.NoError(t, err)
	assert.False(t, acc.InGroup(models.GroupModerators))

	for _, form := range []url.Values{
		{"user_id": {"999"}, "group_id": {mods}, "action": {"add"}},
		{"user_id": {bobID}, "group_id": {"999"}, "action": {"add"}},
		{"user_id": {"x"}, "group_id": {mods}, "action": {"add"}},
	} {
		res, _ = carol.post("/admin/users/", form)
		require.Equal(t, http.StatusFound, res.StatusCode)
		_, body = carol.get("/admin/users/")
		assert.Contains(t, body, "User or group not found", form.Encode())
	}
}

func TestAdminUpdateUser(t *testing.T) {
	e := setup(t)
	path := "/admin/users/" + bobID + "/update/"
	form := url.Values{
		"first_name": {"Bob"},
		"email":      {"bob@example.com"},
		"is_active":  {"true"},
		"is_staff":   {"true"},
	}

	carol := e.browser()
	carol.login("carol")
	res, _ := carol.post(path, form)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	root := e.browser()
	root.login("root")

	res, body := root.get(path)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "None yet.")

	res, _ = root.post(path, form)
	require.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, "/admin/users/", res.Header.Get("Location"))

	_, body = root.get("/admin/users/")
	assert.Contains(t, body, "User bob updated.")

	res, body = root.get(path)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Staff status changed by root")

	d, err := e.app.Users.Detail(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, d.IsStaff)
	assert.Equal(t, "Bob", d.FirstName)

	form.Set("email", "not-an-email")
	res, body = root.post(path, form)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, `class="errorlist"`)

	res, _ = root.post("/admin/users/999/update/", form)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestDeleteUser(t *testing.T) {
	e := setup(t)

	bob := e.browser()
	bob.login("bob")
	res, _ := bob.post("/admin/users/"+aliceID+"/delete/", nil)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	carol := e.browser()
	carol.login("carol")

	res, _ = carol.post("/admin/users/"+carolID+"/delete/", nil)
	require.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, "/users/", res.Header.Get("Location"))
	_, body := carol.get("/users/")
	assert.Contains(t, body, "You cannot delete your own account.")

	res, _ = carol.post("/admin/users/"+bobID+"/delete/", nil)
	require.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, "/users/", res.Header.Get("Location"))
	_, body = carol.get("/users/")
	assert.Contains(t, body, "User deleted.")

	_, err := e.app.Users.Detail(context.Background(), 2)
	assert.ErrorIs(t, err, user.ErrUserNotFound)

	res, _ = carol.post("/admin/users/999/delete/", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestProfileUpdate(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	bob := e.browser()
	bob.login("bob")

	res, _ := bob.upload("/accounts/profile/", url.Values{
		"first_name": {"Bob"},
		"last_name":  {"Builder"},
		"bio":        {"Builds things"},
		"location":   {"Bristol"},
	}, pngImage(t, color.RGBA{R: 200, A: 255}))
	require.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, "/accounts/profile/", res.Header.Get("Location"))

	res, body := bob.get("/accounts/profile/")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Your profile has been updated successfully!")

	d, err := e.app.Users.Detail(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Builder", d.LastName)
	assert.Equal(t, "Bristol", d.Profile.Location)
	first := d.Profile.Avatar
	require.NotEmpty(t, first)
	assert.FileExists(t, filepath.Join(e.dir, "media", first))

	// a new upload replaces the old file
	res, _ = bob.upload("/accounts/profile/", url.Values{"first_name": {"Bob"}}, pngImage(t, color.RGBA{B: 200, A: 255}))
	require.Equal(t, http.StatusFound, res.StatusCode)

	d, err = e.app.Users.Detail(ctx, 2)
	require.NoError(t, err)
	require.NotEmpty(t, d.Profile.Avatar)
	assert.NotEqual(t, first, d.Profile.Avatar)
	assert.FileExists(t, filepath.Join(e.dir, "media", d.Profile.Avatar))
	_, err = os.Stat(filepath.Join(e.dir, "media", first))
	assert.True(t, os.IsNotExist(err))

	res, body = bob.upload("/profile/update/", url.Values{"bio": {"x"}}, []byte("not an image"))
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Upload a valid image.")

	// the profile only form keeps the picture unless it is cleared
	res, _ = bob.post("/profile/update/", url.Values{"bio": {"Retired"}, "location": {"Bath"}})
	require.Equal(t, http.StatusFound, res.StatusCode)

	kept, err := e.app.Users.Detail(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Retired", kept.Profile.Bio)
	assert.Equal(t, d.Profile.Avatar, kept.Profile.Avatar)

	res, _ = bob.post("/profile/update/", url.Values{"avatar-clear": {"true"}})
	require.Equal(t, http.StatusFound, res.StatusCode)

	cleared, err := e.app.Users.Detail(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, cleared.Profile.Avatar)
	_, err = os.Stat(filepath.Join(e.dir, "media", d.Profile.Avatar))
	assert.True(t, os.IsNotExist(err))
}

func TestProfileDetail(t *testing.T) {
	e := setup(t)

	bob := e.browser()
	bob.login("bob")

	res, _ := bob.get("/profiles/" + aliceID + "/")
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res, body := bob.get("/profiles/" + bobID + "/")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Edit your profile")

	carol := e.browser()
	carol.login("carol")

	res, body = carol.get("/profiles/" + aliceID + "/")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "alice")
	assert.NotContains(t, body, "Edit your profile")

	res, _ = carol.get("/profiles/999/")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestUserListPages(t *testing.T) {
	e := setup(t)

	carol := e.browser()
	carol.login("carol")

	res, _ := carol.get("/users/?page=1")
	assert.Equal(t, http.StatusOK, res.StatusCode)

	for _, page := range []string{"999", "0", "abc"} {
		res, _ = carol.get("/users/?page=" + page)
		assert.Equal(t, http.StatusNotFound, res.StatusCode, page)
	}
}

func TestBulkUpdate(t *testing.T) {
	e := setup(t)

	alice := e.browser()
	alice.login("alice")
	one := alice.createArticle("Bulk one", false)
	two := alice.createArticle("Bulk two", false)

	res, _ := alice.get("/articles/bulk/")
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	root := e.browser()
	root.login("root")

	res, body := root.get("/articles/bulk/")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Bulk one")
	assert.Contains(t, body, "Bulk two")
	assert.Contains(t, body, `name="article_ids" value="`+strconv.FormatInt(one, 10)+`"`)

	// the message counts the selection, including ids that match nothing
	res, _ = root.post("/articles/bulk/", url.Values{
		"article_ids": {strconv.FormatInt(one, 10), strconv.FormatInt(two, 10), "999"},
		"action":      {"publish"},
	})
	require.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, "/articles/", res.Header.Get("Location"))

	_, body = root.get("/articles/")
	assert.Contains(t, body, "3 articles published!")

	anon := e.browser()
	_, body = anon.get("/articles/")
	assert.Contains(t, body, "Bulk one")
	assert.Contains(t, body, "Bulk two")

	res, _ = root.post("/articles/bulk/", url.Values{"article_ids": {strconv.FormatInt(one, 10)}, "action": {"archive"}})
	require.Equal(t, http.StatusFound, res.StatusCode)
	_, body = root.get("/articles/")
	assert.Contains(t, body, "Unknown action.")
}
