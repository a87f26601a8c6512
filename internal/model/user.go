package model

import "time"

// Role controls which chore actions a household member may take.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// User stores Telegram user metadata for a household member.
type User struct {
	ID         uint  `gorm:"primaryKey"`
	TelegramID int64 `gorm:"uniqueIndex"`
	FirstName  string
	LastName   string
	Username   string `gorm:"index"`
	Role       Role   `gorm:"default:member"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// DisplayName prefers the @username and falls back to the first name.
func (u User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return "member"
}
