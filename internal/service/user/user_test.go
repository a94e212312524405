package user

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"blog-portal/internal/domain/models"
	"blog-portal/internal/lib/avatar"
	"blog-portal/internal/lib/logger"
	"blog-portal/internal/lib/validate"
	"blog-portal/internal/storage/sqlite"

	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc   *Service
	st    *sqlite.Storage
	media string
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	dir := t.TempDir()
	st, err := sqlite.New(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	media := filepath.Join(dir, "media")

	return fixture{
		svc:   New(logger.Discard(), st, avatar.New(media), time.Hour),
		st:    st,
		media: media,
	}
}

func signUp(name string) SignUp {
	return SignUp{
		Username:  name,
		Email:     name + "@example.com",
		FirstName: "Test",
		Password:  "s3cret-pass",
		Password2: "s3cret-pass",
	}
}

func pngImage(t *testing.T, w, h int) *bytes.Buffer {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))
	return buf
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.Register(ctx, signUp("alice"))
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.True(t, u.IsActive)
	assert.False(t, u.IsStaff)

	groups, err := f.st.GroupsOf(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, models.GroupMembers, groups[0].Name)

	_, err = f.st.ProfileByUser(ctx, u.ID)
	assert.NoError(t, err)

	_, err = f.svc.Register(ctx, signUp("alice"))
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name  string
		edit  func(*SignUp)
		field string
	}{
		{"passwords differ", func(s *SignUp) { s.Password2 = "other-pass" }, "password2"},
		{"numeric password", func(s *SignUp) { s.Password, s.Password2 = "12345678", "12345678" }, "password1"},
		{"short password", func(s *SignUp) { s.Password, s.Password2 = "abc", "abc" }, "password1"},
		{"bad username", func(s *SignUp) { s.Username = "no spaces" }, "username"},
		{"missing username", func(s *SignUp) { s.Username = "" }, "username"},
		{"bad email", func(s *SignUp) { s.Email = "nope" }, "email"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := signUp("bob")
			tc.edit(&in)

			_, err := f.svc.Register(context.Background(), in)
			require.Error(t, err)
			assert.True(t, validate.IsInvalid(err))
			assert.Contains(t, validate.Messages(err), tc.field)
		})
	}
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.Register(ctx, signUp("carol"))
	require.NoError(t, err)

	got, err := f.svc.Login(ctx, "carol", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	require.NotNil(t, got.LastLogin)

	stored, err := f.st.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLogin)

	_, err = f.svc.Login(ctx, "carol", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, "nobody", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	stored.IsActive = false
	require.NoError(t, f.st.UpdateUser(ctx, stored))
	_, err = f.svc.Login(ctx, "carol", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.Register(ctx, signUp("dave"))
	require.NoError(t, err)

	token, err := f.svc.Token(ctx, "dave", "s3cret-pass", "test-secret")
	require.NoError(t, err)

	tok, err := jwtauth.VerifyToken(jwtauth.New("HS256", []byte("test-secret"), nil), token)
	require.NoError(t, err)
	uid, ok := tok.Get("uid")
	require.True(t, ok)
	assert.EqualValues(t, u.ID, uid)

	_, err = f.svc.Token(ctx, "dave", "bad", "test-secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUpdateAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.Register(ctx, signUp("erin"))
	require.NoError(t, err)

	err = f.svc.UpdateAccount(ctx, u.ID,
		AccountUpdate{FirstName: " Erin ", LastName: "Smith", Email: "erin@example.org"},
		ProfileUpdate{
			PhoneNumber: "+1 555-0100",
			BirthDate:   "1990-04-12",
			Bio:         "Writes about Go.",
			Location:    "Berlin",
			Avatar:      pngImage(t, 640, 320),
		},
	)
	require.NoError(t, err)

	d, err := f.svc.Detail(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Erin", d.FirstName)
	assert.Equal(t, "Erin Smith", d.FullName())
	assert.Equal(t, "erin@example.org", d.Email)
	assert.Equal(t, "Berlin", d.Profile.Location)
	require.NotNil(t, d.Profile.BirthDate)
	assert.Equal(t, "1990-04-12", d.Profile.BirthDate.Format(time.DateOnly))
	require.True(t, d.Profile.HasAvatar())
	assert.True(t, strings.HasPrefix(d.Profile.Avatar, "avatars/"))

	first := filepath.Join(f.media, filepath.FromSlash(d.Profile.Avatar))
	_, err = os.Stat(first)
	require.NoError(t, err)

	// Clearing the avatar removes the file.
	require.NoError(t, f.svc.UpdateProfile(ctx, u.ID, ProfileUpdate{ClearAvatar: true}))
	d, err = f.svc.Detail(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, d.Profile.HasAvatar())
	assert.Nil(t, d.Profile.BirthDate)
	_, err = os.Stat(first)
	assert.True(t, os.IsNotExist(err))
}

func TestUpdateProfile_Invalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.Register(ctx, signUp("frank"))
	require.NoError(t, err)

	err = f.svc.UpdateProfile(ctx, u.ID, ProfileUpdate{Avatar: strings.NewReader("not an image")})
	assert.ErrorIs(t, err, ErrInvalidAvatar)

	err = f.svc.UpdateProfile(ctx, u.ID, ProfileUpdate{BirthDate: "12/04/1990"})
	require.Error(t, err)
	assert.Equal(t, "Enter a valid date.", validate.Messages(err)["birth_date"])

	err = f.svc.UpdateProfile(ctx, u.ID, ProfileUpdate{PhoneNumber: "call me"})
	require.Error(t, err)
	assert.Contains(t, validate.Messages(err), "phone_number")

	err = f.svc.UpdateProfile(ctx, u.ID, ProfileUpdate{Location: strings.Repeat("x", 31)})
	require.Error(t, err)
	assert.Contains(t, validate.Messages(err), "location")
}

func TestProfile_CreatedWhenMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.Register(ctx, signUp("gina"))
	require.NoError(t, err)

	_, err = f.svc.Profile(ctx, u.ID)
	require.NoError(t, err)

	_, err = f.svc.Profile(ctx, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUsers_Paginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, name := range []string{"u01", "u02", "u03", "u04", "u05", "u06", "u07", "u08", "u09", "u10", "u11", "u12"} {
		_, err := f.st.CreateUser(ctx, models.User{Username: name, PassHash: []byte("h"), IsActive: true})
		require.NoError(t, err)
	}

	p1, err := f.svc.Users(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, p1.Users, PerPage)
	assert.Equal(t, 2, p1.Page.NumPages())
	assert.Equal(t, "u01", p1.Users[0].Username)

	p2, err := f.svc.Users(ctx, 2)
	require.NoError(t, err)
	require.Len(t, p2.Users, 2)
	assert.Equal(t, "u12", p2.Users[1].Username)

	_, err = f.svc.Users(ctx, 3)
	assert.Error(t, err)

	n, err := f.svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, n)
}

func TestAdminUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root := models.NewAccount(models.User{ID: 1, Username: "root", IsActive: true, IsSuperuser: true}, nil, nil)
	_, err := f.st.CreateUser(ctx, models.User{Username: "root", PassHash: []byte("h"), IsActive: true, IsSuperuser: true})
	require.NoError(t, err)

	target, err := f.svc.Register(ctx, signUp("hank"))
	require.NoError(t, err)

	staff := models.NewAccount(models.User{ID: 9, Username: "staff", IsActive: true, IsStaff: true}, nil, nil)
	err = f.svc.AdminUpdate(ctx, staff, target.ID, AdminUserUpdate{IsActive: true, IsStaff: true})
	assert.ErrorIs(t, err, ErrForbidden)

	// No staff change, no log entry.
	err = f.svc.AdminUpdate(ctx, root, target.ID, AdminUserUpdate{FirstName: "Hank", IsActive: true})
	require.NoError(t, err)
	entries, err := f.svc.RecentChanges(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)

	err = f.svc.AdminUpdate(ctx, root, target.ID, AdminUserUpdate{FirstName: "Hank", IsActive: true, IsStaff: true})
	require.NoError(t, err)

	u, err := f.st.UserByID(ctx, target.ID)
	require.NoError(t, err)
	assert.True(t, u.IsStaff)
	assert.Equal(t, "Hank", u.FirstName)

	entries, err = f.svc.RecentChanges(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Staff status changed by root", entries[0].Message)
	assert.Equal(t, "hank", entries[0].ObjectRepr)

	err = f.svc.AdminUpdate(ctx, root, 999, AdminUserUpdate{IsActive: true})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	target, err := f.svc.Register(ctx, signUp("ivy"))
	require.NoError(t, err)
	require.NoError(t, f.svc.UpdateProfile(ctx, target.ID, ProfileUpdate{Avatar: pngImage(t, 10, 10)}))
	p, err := f.svc.Profile(ctx, target.ID)
	require.NoError(t, err)
	file := filepath.Join(f.media, filepath.FromSlash(p.Avatar))

	member := models.NewAccount(models.User{ID: 50, Username: "m", IsActive: true}, nil, []string{models.PermAddArticle})
	assert.ErrorIs(t, f.svc.Remove(ctx, member, target.ID), ErrForbidden)

	mod := models.NewAccount(models.User{ID: target.ID, Username: "ivy", IsActive: true}, nil, []string{models.PermDeleteProfiles})
	assert.ErrorIs(t, f.svc.Remove(ctx, mod, target.ID), ErrSelfDelete)

	mod = models.NewAccount(models.User{ID: 77, Username: "mod", IsActive: true}, nil, []string{models.PermDeleteProfiles})
	require.NoError(t, f.svc.Remove(ctx, mod, target.ID))

	_, err = f.st.UserByID(ctx, target.ID)
	assert.Error(t, err)
	_, err = os.Stat(file)
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, f.svc.Remove(ctx, mod, target.ID), ErrUserNotFound)
}

func TestCreateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.svc.CreateUser(ctx, NewUser{
		Username:    "admin",
		Password:    "admin-pass-1",
		IsSuperuser: true,
		Groups:      []string{models.GroupSiteAdmins},
	})
	require.NoError(t, err)

	u, err := f.st.UserByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, u.IsStaff)
	assert.True(t, u.IsSuperuser)

	_, err = f.svc.Login(ctx, "admin", "admin-pass-1")
	assert.NoError(t, err)

	_, err = f.svc.CreateUser(ctx, NewUser{Username: "admin", Password: "admin-pass-1"})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, signUp("alice"))
	require.NoError(t, err)

	err = f.svc.ChangePassword(ctx, "alice", "short")
	assert.True(t, validate.IsInvalid(err))

	require.NoError(t, f.svc.ChangePassword(ctx, "alice", "brand-new-pass"))

	_, err = f.svc.Login(ctx, "alice", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "alice", "brand-new-pass")
	assert.NoError(t, err)

	assert.ErrorIs(t, f.svc.ChangePassword(ctx, "nobody", "brand-new-pass"), ErrUserNotFound)
}
