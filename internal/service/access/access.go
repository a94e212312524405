package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"blog-portal/internal/domain/models"
	"blog-portal/internal/lib/logger/sl"
	"blog-portal/internal/storage"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrGroupNotFound = errors.New("group not found")
	ErrGroupExists   = errors.New("a group with that name already exists")
	ErrGroupName     = errors.New("group name is required")
)

type Storage interface {
	EnsurePermissions(ctx context.Context, perms []models.Permission) error
	Permissions(ctx context.Context) ([]models.Permission, error)
	CreateGroup(ctx context.Context, name, description string) (models.Group, error)
	GetOrCreateGroup(ctx context.Context, name, description string) (models.Group, bool, error)
	Group(ctx context.Context, id int64) (models.Group, error)
	GroupByName(ctx context.Context, name string) (models.Group, error)
	Groups(ctx context.Context) ([]models.Group, error)
	SetGroupPermissions(ctx context.Context, groupID int64, codenames []string) error
	GroupPermissions(ctx context.Context, groupID int64) ([]string, error)
	GroupsOf(ctx context.Context, userID int64) ([]models.Group, error)
	AddMember(ctx context.Context, groupID, userID int64) error
	RemoveMember(ctx context.Context, groupID, userID int64) error
	UserPermissions(ctx context.Context, userID int64) ([]string, error)
	UserByID(ctx context.Context, id int64) (models.User, error)
	UserByName(ctx context.Context, username string) (models.User, error)
}

// GroupSpec is a group created by Setup together with its permissions.
type GroupSpec struct {
	Name        string
	Description string
	Grants      func(p models.Permission) bool
}

func codenames(codes ...string) func(models.Permission) bool {
	return func(p models.Permission) bool {
		for _, c := range codes {
			if p.Codename == c {
				return true
			}
		}
		return false
	}
}

// DefaultGroups are the groups every installation starts with.
var DefaultGroups = []GroupSpec{
	{
		Name:        models.GroupSiteAdmins,
		Description: "Full administrative access",
		Grants:      func(models.Permission) bool { return true },
	},
	{
		Name:        models.GroupModerators,
		Description: "Content moderation and user management",
		Grants: func(p models.Permission) bool {
			return p.ContentType == models.ContentArticle || p.ContentType == models.ContentProfile
		},
	},
	{
		Name:        models.GroupAuthors,
		Description: "Can create and publish articles",
		Grants: codenames(
			models.PermAddArticle,
			models.PermChangeArticle,
			models.PermDeleteArticle,
			models.PermPublishArticle,
			models.PermUnpublishArticle,
		),
	},
	{
		Name:        models.GroupMembers,
		Description: "Basic user access",
		Grants:      codenames(models.PermAddArticle, models.PermChangeArticle),
	},
}

// SetupResult reports what Setup did for one group.
type SetupResult struct {
	Group       models.Group
	Created     bool
	Permissions []string
}

type Service struct {
	log     *slog.Logger
	storage Storage
}

func New(log *slog.Logger, storage Storage) *Service {
	return &Service{
		log:     log,
		storage: storage,
	}
}

// Setup installs the permission catalogue and the default groups. Running it
// again leaves the same state behind.
func (s *Service) Setup(ctx context.Context) ([]SetupResult, error) {
	const op = "service.access.Setup"

	log := s.log.With(slog.String("op", op))

	catalogue := models.PermissionCatalogue()
	if err := s.storage.EnsurePermissions(ctx, catalogue); err != nil {
		log.Error("failed to ensure permissions", sl.Error(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	results := make([]SetupResult, 0, len(DefaultGroups))
	for _, spec := range DefaultGroups {
		g, created, err := s.storage.GetOrCreateGroup(ctx, spec.Name, spec.Description)
		if err != nil {
			log.Error("failed to create group", slog.String("group", spec.Name), sl.Error(err))
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		var codes []string
		for _, p := range catalogue {
			if spec.Grants(p) {
				codes = append(codes, p.Codename)
			}
		}

		if err := s.storage.SetGroupPermissions(ctx, g.ID, codes); err != nil {
			log.Error("failed to set group permissions", slog.String("group", spec.Name), sl.Error(err))
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		log.Info("group ready", slog.String("group", g.Name), slog.Bool("created", created), slog.Int("permissions", len(codes)))

		results = append(results, SetupResult{Group: g, Created: created, Permissions: codes})
	}

	return results, nil
}

// Account loads the user with their groups and effective permissions.
func (s *Service) Account(ctx context.Context, userID int64) (*models.Account, error) {
	const op = "service.access.Account"

	user, err := s.storage.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		s.log.Error("failed to get user", slog.String("op", op), sl.Error(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	groups, err := s.storage.GroupsOf(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	perms, err := s.storage.UserPermissions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return models.NewAccount(user, groups, perms), nil
}

// Permissions lists every stored permission.
func (s *Service) Permissions(ctx context.Context) ([]models.Permission, error) {
	const op = "service.access.Permissions"

	perms, err := s.storage.Permissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return perms, nil
}

func (s *Service) Groups(ctx context.Context) ([]models.Group, error) {
	const op = "service.access.Groups"

	groups, err := s.storage.Groups(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return groups, nil
}

func (s *Service) GroupsOf(ctx context.Context, userID int64) ([]models.Group, error) {
	const op = "service.access.GroupsOf"

	groups, err := s.storage.GroupsOf(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return groups, nil
}

func (s *Service) GroupPermissions(ctx context.Context, groupID int64) ([]string, error) {
	const op = "service.access.GroupPermissions"

	if _, err := s.group(ctx, groupID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	codes, err := s.storage.GroupPermissions(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return codes, nil
}

// Join adds the user to the group. Both must exist.
func (s *Service) Join(ctx context.Context, userID, groupID int64) (models.Group, error) {
	const op = "service.access.Join"

	log := s.log.With(slog.String("op", op))

	g, err := s.checkMembership(ctx, userID, groupID)
	if err != nil {
		return models.Group{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.AddMember(ctx, groupID, userID); err != nil {
		log.Error("failed to add member", sl.Error(err))
		return models.Group{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user joined group", slog.Int64("user_id", userID), slog.String("group", g.Name))

	return g, nil
}

// Leave removes the user from the group. Both must exist.
func (s *Service) Leave(ctx context.Context, userID, groupID int64) (models.Group, error) {
	const op = "service.access.Leave"

	log := s.log.With(slog.String("op", op))

	g, err := s.checkMembership(ctx, userID, groupID)
	if err != nil {
		return models.Group{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.RemoveMember(ctx, groupID, userID); err != nil {
		log.Error("failed to remove member", sl.Error(err))
		return models.Group{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user left group", slog.Int64("user_id", userID), slog.String("group", g.Name))

	return g, nil
}

// CreateGroup adds a group outside the default set and grants it the given
// permission codenames.
func (s *Service) CreateGroup(ctx context.Context, name, description string, codenames []string) (models.Group, error) {
	const op = "service.access.CreateGroup"

	log := s.log.With(slog.String("op", op))

	if name == "" {
		return models.Group{}, fmt.Errorf("%s: %w", op, ErrGroupName)
	}

	g, err := s.storage.CreateGroup(ctx, name, description)
	if err != nil {
		if errors.Is(err, storage.ErrGroupExists) {
			log.Info("group already exists", slog.String("group", name))
			return models.Group{}, fmt.Errorf("%s: %w", op, ErrGroupExists)
		}
		log.Error("failed to create group", sl.Error(err))
		return models.Group{}, fmt.Errorf("%s: %w", op, err)
	}

	if len(codenames) > 0 {
		if err := s.storage.SetGroupPermissions(ctx, g.ID, codenames); err != nil {
			log.Error("failed to set group permissions", sl.Error(err))
			return models.Group{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	log.Info("group created", slog.String("group", name))

	return g, nil
}

// JoinByName resolves the username and group name, then joins.
func (s *Service) JoinByName(ctx context.Context, username, group string) error {
	const op = "service.access.JoinByName"

	uid, gid, err := s.resolve(ctx, username, group)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.Join(ctx, uid, gid); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Service) LeaveByName(ctx context.Context, username, group string) error {
	const op = "service.access.LeaveByName"

	uid, gid, err := s.resolve(ctx, username, group)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.Leave(ctx, uid, gid); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Service) resolve(ctx context.Context, username, group string) (int64, int64, error) {
	u, err := s.storage.UserByName(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return 0, 0, ErrUserNotFound
		}
		return 0, 0, err
	}

	g, err := s.storage.GroupByName(ctx, group)
	if err != nil {
		if errors.Is(err, storage.ErrGroupNotFound) {
			return 0, 0, ErrGroupNotFound
		}
		return 0, 0, err
	}

	return u.ID, g.ID, nil
}

func (s *Service) checkMembership(ctx context.Context, userID, groupID int64) (models.Group, error) {
	if _, err := s.storage.UserByID(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.Group{}, ErrUserNotFound
		}
		return models.Group{}, err
	}

	return s.group(ctx, groupID)
}

func (s *Service) group(ctx context.Context, groupID int64) (models.Group, error) {
	g, err := s.storage.Group(ctx, groupID)
	if err != nil {
		if errors.Is(err, storage.ErrGroupNotFound) {
			return models.Group{}, ErrGroupNotFound
		}
		return models.Group{}, err
	}
	return g, nil
}
