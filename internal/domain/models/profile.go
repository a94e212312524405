package models

import "time"

// Profile extends a User one-to-one.
type Profile struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	PhoneNumber string     `json:"phone_number,omitempty"`
	BirthDate   *time.Time `json:"birth_date,omitempty"`
	Avatar      string     `json:"avatar,omitempty"` // path relative to the media dir
	Bio         string     `json:"bio,omitempty"`
	Location    string     `json:"location,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (p Profile) HasAvatar() bool {
	return p.Avatar != ""
}
