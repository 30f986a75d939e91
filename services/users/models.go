package users

import (
	"time"
)

type User struct {
	ID               uint    `json:"id" gorm:"primaryKey"`
	Name             string  `json:"name" gorm:"size:255"`
	Username         string  `json:"username" gorm:"uniqueIndex;size:255;not null"`
	Email            string  `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash     string  `json:"-" gorm:"column:password;size:255;not null"`
	RefreshTokenHash *string `json:"-" gorm:"size:255"`
	// PreviousRefreshTokenHash is the hash replaced by the latest rotation,
	// kept so a request that lost a rotation race is not mistaken for reuse.
	PreviousRefreshTokenHash *string    `json:"-" gorm:"size:255"`
	RefreshRotatedAt         *time.Time `json:"-"`
	CreatedAt                time.Time  `json:"createdAt"`
	UpdatedAt                time.Time  `json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}

// HasRefreshToken reports whether a refresh token is currently outstanding.
func (u *User) HasRefreshToken() bool {
	return u.RefreshTokenHash != nil && *u.RefreshTokenHash != ""
}

// RecentlySuperseded reports whether hash was replaced by a rotation less
// than grace before now.
func (u *User) RecentlySuperseded(hash string, now time.Time, grace time.Duration) bool {
	if u.PreviousRefreshTokenHash == nil || u.RefreshRotatedAt == nil || grace <= 0 {
		return false
	}
	if *u.PreviousRefreshTokenHash != hash {
		return false
	}
	return now.Sub(*u.RefreshRotatedAt) < grace
}

// Summary is the public projection returned by signup and login.
type Summary struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (u *User) Summary() Summary {
	return Summary{ID: u.ID, Username: u.Username, Email: u.Email}
}
