package models

import "time"

type User struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email,omitempty"`
	FirstName   string     `json:"first_name,omitempty"`
	LastName    string     `json:"last_name,omitempty"`
	PassHash    []byte     `json:"-"`
	IsActive    bool       `json:"is_active"`
	IsStaff     bool       `json:"is_staff"`
	IsSuperuser bool       `json:"is_superuser"`
	DateJoined  time.Time  `json:"date_joined"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
}

// DisplayName is the first name when set, the username otherwise.
func (u User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Username
}

func (u User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.LastName
	}
}

// UserWithProfile is a user row joined with its profile, as listed on the
// user pages.
type UserWithProfile struct {
	User
	Profile Profile `json:"profile"`
	Groups  []Group `json:"groups,omitempty"`
}

type LogEntry struct {
	ID         int64     `json:"id"`
	ActorID    int64     `json:"actor_id"`
	ActorName  string    `json:"actor_name,omitempty"`
	ObjectID   int64     `json:"object_id"`
	ObjectRepr string    `json:"object_repr"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}
