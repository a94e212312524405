package user

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"blog-portal/internal/domain/models"
	"blog-portal/internal/lib/avatar"
	"blog-portal/internal/lib/jwt"
	"blog-portal/internal/lib/logger/sl"
	"blog-portal/internal/lib/paginator"
	"blog-portal/internal/lib/validate"
	"blog-portal/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

// PerPage is the size of a page of the user list.
const PerPage = 10

var (
	ErrUserExists         = errors.New("a user with that username already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("please enter a correct username and password")
	ErrForbidden          = errors.New("permission denied")
	ErrSelfDelete         = errors.New("you cannot delete your own account")
	ErrInvalidAvatar      = errors.New("upload a valid image")
)

type Storage interface {
	CreateUser(ctx context.Context, u models.User, groups ...string) (int64, error)
	UserByID(ctx context.Context, id int64) (models.User, error)
	UserByName(ctx context.Context, username string) (models.User, error)
	Users(ctx context.Context, limit, offset int) ([]models.UserWithProfile, error)
	CountUsers(ctx context.Context) (int, error)
	UpdateUser(ctx context.Context, u models.User) error
	SetPassword(ctx context.Context, id int64, passHash []byte) error
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	RemoveUser(ctx context.Context, id int64) error
	ProfileByUser(ctx context.Context, userID int64) (models.Profile, error)
	CreateProfile(ctx context.Context, userID int64) (models.Profile, error)
	UpdateProfile(ctx context.Context, p models.Profile) error
	AddLogEntry(ctx context.Context, e models.LogEntry) error
	LogEntries(ctx context.Context, limit int) ([]models.LogEntry, error)
}

type AvatarStore interface {
	Save(userID int64, r io.Reader) (string, error)
	Remove(rel string) error
}

type SignUp struct {
	Username  string `form:"username" validate:"required,max=150,username"`
	Email     string `form:"email" validate:"omitempty,max=254,email"`
	FirstName string `form:"first_name" validate:"max=150"`
	LastName  string `form:"last_name" validate:"max=150"`
	Password  string `form:"password1" validate:"required,password"`
	Password2 string `form:"password2" validate:"required,eqfield=Password"`
}

// NewUser is an account created from the command line.
type NewUser struct {
	Username    string `form:"username" validate:"required,max=150,username"`
	Email       string `form:"email" validate:"omitempty,max=254,email"`
	Password    string `form:"password" validate:"required,password"`
	IsStaff     bool
	IsSuperuser bool
	Groups      []string
}

type AccountUpdate struct {
	FirstName string `form:"first_name" validate:"max=150"`
	LastName  string `form:"last_name" validate:"max=150"`
	Email     string `form:"email" validate:"omitempty,max=254,email"`
}

// ProfileUpdate carries the editable profile fields. A nil Avatar keeps the
// current picture unless ClearAvatar is set.
type ProfileUpdate struct {
	PhoneNumber string    `form:"phone_number" validate:"max=15,phone"`
	BirthDate   string    `form:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	Bio         string    `form:"bio" validate:"max=500"`
	Location    string    `form:"location" validate:"max=30"`
	ClearAvatar bool      `form:"avatar-clear"`
	Avatar      io.Reader `form:"-" validate:"-"`
}

type AdminUserUpdate struct {
	FirstName string `form:"first_name" validate:"max=150"`
	LastName  string `form:"last_name" validate:"max=150"`
	Email     string `form:"email" validate:"omitempty,max=254,email"`
	IsActive  bool   `form:"is_active"`
	IsStaff   bool   `form:"is_staff"`
}

type UserPage struct {
	Users []models.UserWithProfile
	Page  paginator.Page
}

type Service struct {
	log      *slog.Logger
	storage  Storage
	avatars  AvatarStore
	tokenTTL time.Duration
}

func New(log *slog.Logger, storage Storage, avatars AvatarStore, ttl time.Duration) *Service {
	return &Service{
		log:      log,
		storage:  storage,
		avatars:  avatars,
		tokenTTL: ttl,
	}
}

// Register creates an active account with its profile and puts it in the
// Members group.
func (s *Service) Register(ctx context.Context, in SignUp) (models.User, error) {
	const op = "service.user.Register"

	log := s.log.With(slog.String("op", op))

	if err := validate.Struct(in); err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	// Hashing password
	passHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate hash from password", sl.Error(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	u := models.User{
		Username:   in.Username,
		Email:      strings.TrimSpace(in.Email),
		FirstName:  strings.TrimSpace(in.FirstName),
		LastName:   strings.TrimSpace(in.LastName),
		PassHash:   passHash,
		IsActive:   true,
		DateJoined: time.Now().UTC(),
	}

	// Send to data layer
	u.ID, err = s.storage.CreateUser(ctx, u, models.GroupMembers)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			log.Info("username taken", slog.String("username", in.Username))
			return models.User{}, fmt.Errorf("%s: %w", op, ErrUserExists)
		}
		log.Error("failed to register user", sl.Error(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user registered", slog.Int64("user_id", u.ID), slog.String("username", u.Username))

	return u, nil
}

// CreateUser creates an account from the command line, optionally staff or
// superuser, in the given groups.
func (s *Service) CreateUser(ctx context.Context, in NewUser) (int64, error) {
	const op = "service.user.CreateUser"

	log := s.log.With(slog.String("op", op))

	if err := validate.Struct(in); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate hash from password", sl.Error(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	id, err := s.storage.CreateUser(ctx, models.User{
		Username:    in.Username,
		Email:       in.Email,
		PassHash:    passHash,
		IsActive:    true,
		IsStaff:     in.IsStaff || in.IsSuperuser,
		IsSuperuser: in.IsSuperuser,
	}, in.Groups...)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			return 0, fmt.Errorf("%s: %w", op, ErrUserExists)
		}
		log.Error("failed to create user", sl.Error(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

// Login checks the credentials of an active account and records the login.
func (s *Service) Login(ctx context.Context, username, password string) (models.User, error) {
	const op = "service.user.Login"

	log := s.log.With(slog.String("op", op))

	user, err := s.storage.UserByName(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Info("unknown user", slog.String("username", username))
			return models.User{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		log.Error("failed to get user by name", sl.Error(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	// Checking if password correct
	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
		log.Info("incorrect password", slog.String("username", username))
		return models.User{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if !user.IsActive {
		log.Info("inactive user", slog.String("username", username))
		return models.User{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	now := time.Now().UTC()
	if err := s.storage.TouchLastLogin(ctx, user.ID, now); err != nil {
		log.Error("failed to record login", sl.Error(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	user.LastLogin = &now

	return user, nil
}

// ChangePassword replaces the password of the named user.
func (s *Service) ChangePassword(ctx context.Context, username, password string) error {
	const op = "service.user.ChangePassword"

	log := s.log.With(slog.String("op", op))

	if err := validate.Var(password, "required,password"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.storage.UserByName(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		log.Error("failed to get user by name", sl.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate hash from password", sl.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.SetPassword(ctx, user.ID, passHash); err != nil {
		log.Error("failed to set password", sl.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("password changed", slog.String("username", username))

	return nil
}

// Token logs the user in and returns a signed API token.
func (s *Service) Token(ctx context.Context, username, password, secret string) (string, error) {
	const op = "service.user.Token"

	user, err := s.Login(ctx, username, password)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	// Generating token
	token, err := jwt.NewToken(user, s.tokenTTL, secret)
	if err != nil {
		s.log.Error("failed to create new token", slog.String("op", op), sl.Error(err))
		return "", fmt.Errorf("%s: failed to create new token: %w", op, err)
	}

	return token, nil
}

// Profile returns the profile of the user, creating it when missing.
func (s *Service) Profile(ctx context.Context, userID int64) (models.Profile, error) {
	const op = "service.user.Profile"

	p, err := s.storage.ProfileByUser(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, storage.ErrProfileNotFound) {
		return models.Profile{}, fmt.Errorf("%s: %w", op, err)
	}

	p, err = s.storage.CreateProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.Profile{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return models.Profile{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("profile created", slog.String("op", op), slog.Int64("user_id", userID))

	return p, nil
}

// Detail returns a user with their profile.
func (s *Service) Detail(ctx context.Context, userID int64) (models.UserWithProfile, error) {
	const op = "service.user.Detail"

	u, err := s.storage.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.UserWithProfile{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return models.UserWithProfile{}, fmt.Errorf("%s: %w", op, err)
	}

	p, err := s.Profile(ctx, userID)
	if err != nil {
		return models.UserWithProfile{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.UserWithProfile{User: u, Profile: p}, nil
}

// UpdateAccount stores the user's own name and email together with their
// profile.
func (s *Service) UpdateAccount(ctx context.Context, userID int64, a AccountUpdate, p ProfileUpdate) error {
	const op = "service.user.UpdateAccount"

	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	u, err := s.storage.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	u.FirstName = strings.TrimSpace(a.FirstName)
	u.LastName = strings.TrimSpace(a.LastName)
	u.Email = strings.TrimSpace(a.Email)

	if err := s.storage.UpdateUser(ctx, u); err != nil {
		s.log.Error("failed to update user", slog.String("op", op), sl.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.UpdateProfile(ctx, userID, p); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// UpdateProfile stores the profile fields and swaps the avatar when a new
// one is uploaded. The replaced file is removed.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, in ProfileUpdate) error {
	const op = "service.user.UpdateProfile"

	log := s.log.With(slog.String("op", op))

	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p, err := s.Profile(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	p.Bio = strings.TrimSpace(in.Bio)
	p.Location = strings.TrimSpace(in.Location)
	p.BirthDate = nil
	if in.BirthDate != "" {
		d, err := time.Parse(time.DateOnly, in.BirthDate)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		p.BirthDate = &d
	}

	old := p.Avatar
	switch {
	case in.Avatar != nil:
		rel, err := s.avatars.Save(userID, in.Avatar)
		if err != nil {
			if errors.Is(err, avatar.ErrNotImage) {
				return fmt.Errorf("%s: %w", op, ErrInvalidAvatar)
			}
			log.Error("failed to save avatar", sl.Error(err))
			return fmt.Errorf("%s: %w", op, err)
		}
		p.Avatar = rel
	case in.ClearAvatar:
		p.Avatar = ""
	}

	if err := s.storage.UpdateProfile(ctx, p); err != nil {
		log.Error("failed to update profile", sl.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if old != "" && old != p.Avatar {
		if err := s.avatars.Remove(old); err != nil {
			log.Warn("failed to remove old avatar", slog.String("path", old), sl.Error(err))
		}
	}

	return nil
}

// Users returns one page of users ordered by username.
func (s *Service) Users(ctx context.Context, page int) (UserPage, error) {
	const op = "service.user.Users"

	total, err := s.storage.CountUsers(ctx)
	if err != nil {
		return UserPage{}, fmt.Errorf("%s: %w", op, err)
	}

	pg, err := paginator.New(total, PerPage, page)
	if err != nil {
		return UserPage{}, fmt.Errorf("%s: %w", op, err)
	}

	users, err := s.storage.Users(ctx, pg.PerPage, pg.Offset())
	if err != nil {
		s.log.Error("failed to list users", slog.String("op", op), sl.Error(err))
		return UserPage{}, fmt.Errorf("%s: %w", op, err)
	}

	return UserPage{Users: users, Page: pg}, nil
}

func (s *Service) Count(ctx context.Context) (int, error) {
	const op = "service.user.Count"

	n, err := s.storage.CountUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

// AdminUpdate lets a superuser edit another account. Changing the staff flag
// is recorded in the admin log.
func (s *Service) AdminUpdate(ctx context.Context, actor *models.Account, targetID int64, in AdminUserUpdate) error {
	const op = "service.user.AdminUpdate"

	log := s.log.With(slog.String("op", op))

	if actor == nil || !actor.IsActive || !actor.IsSuperuser {
		return fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	target, err := s.storage.UserByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	staffChanged := target.IsStaff != in.IsStaff

	target.FirstName = strings.TrimSpace(in.FirstName)
	target.LastName = strings.TrimSpace(in.LastName)
	target.Email = strings.TrimSpace(in.Email)
	target.IsActive = in.IsActive
	target.IsStaff = in.IsStaff

	if err := s.storage.UpdateUser(ctx, target); err != nil {
		log.Error("failed to update user", sl.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if staffChanged {
		err := s.storage.AddLogEntry(ctx, models.LogEntry{
			ActorID:    actor.ID,
			ObjectID:   target.ID,
			ObjectRepr: target.Username,
			Message:    fmt.Sprintf("Staff status changed by %s", actor.Username),
		})
		if err != nil {
			log.Error("failed to write admin log", sl.Error(err))
			return fmt.Errorf("%s: %w", op, err)
		}
		log.Info("staff status changed",
			slog.String("actor", actor.Username),
			slog.String("user", target.Username),
			slog.Bool("is_staff", target.IsStaff),
		)
	}

	return nil
}

// RecentChanges returns the latest admin log entries.
func (s *Service) RecentChanges(ctx context.Context, limit int) ([]models.LogEntry, error) {
	const op = "service.user.RecentChanges"

	entries, err := s.storage.LogEntries(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return entries, nil
}

// Remove deletes another user's account and their avatar.
func (s *Service) Remove(ctx context.Context, actor *models.Account, targetID int64) error {
	const op = "service.user.Remove"

	log := s.log.With(slog.String("op", op))

	if !actor.HasPerm(models.PermDeleteProfiles) {
		return fmt.Errorf("%s: %w", op, ErrForbidden)
	}
	if actor.ID == targetID {
		return fmt.Errorf("%s: %w", op, ErrSelfDelete)
	}

	var avatarPath string
	if p, err := s.storage.ProfileByUser(ctx, targetID); err == nil {
		avatarPath = p.Avatar
	}

	// Send to data layer
	if err := s.storage.RemoveUser(ctx, targetID); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		log.Error("failed to remove user", sl.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if avatarPath != "" {
		if err := s.avatars.Remove(avatarPath); err != nil {
			log.Warn("failed to remove avatar", slog.String("path", avatarPath), sl.Error(err))
		}
	}

	log.Info("user removed", slog.Int64("user_id", targetID), slog.String("by", actor.Username))

	return nil
}
