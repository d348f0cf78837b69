package model

import (
	"slices"
	"time"
)

// UserID uniquely identifies a user across the system
type UserID string

// DefaultUserImage is shown for users who never uploaded an avatar
const DefaultUserImage = "https://static.productionready.io/images/smiley-cyrus.jpg"

// User is a registered account. Groups holds the user-side half of the
// group membership back-reference pair.
type User struct {
	ID           UserID    `json:"id" bson:"_id"`
	Username     string    `json:"username" bson:"username"` // normalised, unique
	Email        string    `json:"email,omitempty" bson:"email,omitempty"`
	PasswordHash string    `json:"password_hash" bson:"password_hash"` // bcrypt hash
	Image        string    `json:"image,omitempty" bson:"image,omitempty"`
	Confirmed    bool      `json:"confirmed" bson:"confirmed"`
	Groups       []GroupID `json:"groups" bson:"groups"`
	Version      int64     `json:"version" bson:"version"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

// HasGroup reports whether the user holds a reference to the group
func (u *User) HasGroup(id GroupID) bool {
	return slices.Contains(u.Groups, id)
}

// AddGroup adds a group reference. Returns false if it was already present.
func (u *User) AddGroup(id GroupID) bool {
	if u.HasGroup(id) {
		return false
	}
	u.Groups = append(u.Groups, id)
	return true
}

// RemoveGroup drops a group reference. Returns false if it was not present.
func (u *User) RemoveGroup(id GroupID) bool {
	idx := slices.Index(u.Groups, id)
	if idx < 0 {
		return false
	}
	u.Groups = slices.Delete(u.Groups, idx, idx+1)
	return true
}

// AvatarURL returns the user's image or the default avatar
func (u *User) AvatarURL() string {
	if u.Image == "" {
		return DefaultUserImage
	}
	return u.Image
}

// UserUpdate carries the optional fields of a profile update
type UserUpdate struct {
	Username *string
	Email    *string
	Password *string
	Image    *string
}
