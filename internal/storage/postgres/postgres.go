// Package postgres is the gorm backed storage used when the storage URL has a
// postgres scheme. It mirrors the sqlite storage operation for operation.
package postgres

import (
	"fmt"
	"sync"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type Storage struct {
	db       *gorm.DB
	sessions *memstore.MemStore
	once     sync.Once
}

type user struct {
	ID          int64  `gorm:"primaryKey"`
	Username    string `gorm:"size:150;uniqueIndex;not null"`
	Email       string `gorm:"size:254;not null"`
	FirstName   string `gorm:"size:150;not null"`
	LastName    string `gorm:"size:150;not null"`
	PassHash    []byte `gorm:"not null"`
	IsActive    bool   `gorm:"not null"`
	IsStaff     bool   `gorm:"not null"`
	IsSuperuser bool   `gorm:"not null"`
	DateJoined  time.Time
	LastLogin   *time.Time
}

func (user) TableName() string { return "users" }

type profile struct {
	ID          int64      `gorm:"primaryKey"`
	UserID      int64      `gorm:"uniqueIndex;not null"`
	User        *user      `gorm:"constraint:OnDelete:CASCADE"`
	PhoneNumber string     `gorm:"size:15;not null"`
	BirthDate   *time.Time `gorm:"type:date"`
	Avatar      string     `gorm:"not null"`
	Bio         string     `gorm:"size:500;not null"`
	Location    string     `gorm:"size:30;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (profile) TableName() string { return "profiles" }

type permission struct {
	ID          int64  `gorm:"primaryKey"`
	ContentType string `gorm:"size:100;not null"`
	Codename    string `gorm:"size:100;uniqueIndex;not null"`
	Name        string `gorm:"size:255;not null"`
}

func (permission) TableName() string { return "permissions" }

type group struct {
	ID          int64  `gorm:"primaryKey"`
	Name        string `gorm:"size:150;uniqueIndex;not null"`
	Description string `gorm:"not null"`
}

func (group) TableName() string { return "grp" }

type groupPermission struct {
	GroupID      int64       `gorm:"column:grp;primaryKey"`
	Group        *group      `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
	PermissionID int64       `gorm:"column:permission;primaryKey"`
	Permission   *permission `gorm:"foreignKey:PermissionID;constraint:OnDelete:CASCADE"`
}

func (groupPermission) TableName() string { return "grp_permissions" }

type membership struct {
	GroupID int64  `gorm:"column:grp;primaryKey"`
	Group   *group `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
	UserID  int64  `gorm:"column:usr;primaryKey"`
	User    *user  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (membership) TableName() string { return "membership" }

type article struct {
	ID          int64  `gorm:"primaryKey"`
	Title       string `gorm:"size:200;not null"`
	Content     string `gorm:"not null"`
	AuthorID    int64  `gorm:"index;not null"`
	Author      *user  `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"`
	IsPublished bool   `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (article) TableName() string { return "articles" }

type logEntry struct {
	ID         int64  `gorm:"primaryKey"`
	ActorID    *int64 `gorm:"index"`
	Actor      *user  `gorm:"foreignKey:ActorID;constraint:OnDelete:SET NULL"`
	ObjectID   int64  `gorm:"not null"`
	ObjectRepr string `gorm:"not null"`
	Message    string `gorm:"not null"`
	CreatedAt  time.Time
}

func (logEntry) TableName() string { return "log_entries" }

// New connects to dsn and migrates the schema.
func New(dsn string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Parents before children so the foreign keys can be created.
	for _, m := range []any{
		&user{}, &profile{}, &permission{}, &group{}, &groupPermission{}, &membership{}, &article{}, &logEntry{},
	} {
		if err := db.AutoMigrate(m); err != nil {
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				_ = sqlDB.Close()
			}
			return nil, fmt.Errorf("%s: migrate %T: %w", op, m, err)
		}
	}

	return &Storage{db: db, sessions: memstore.New()}, nil
}

// Close stops the session cleanup and closes the pool. Calls after the first
// are no-ops.
func (s *Storage) Close() error {
	var err error
	s.once.Do(func() {
		s.sessions.StopCleanup()

		sqlDB, dbErr := s.db.DB()
		if dbErr != nil {
			err = dbErr
			return
		}
		err = sqlDB.Close()
	})
	return err
}

// SessionStore keeps sessions in process memory.
func (s *Storage) SessionStore() scs.Store {
	return s.sessions
}
