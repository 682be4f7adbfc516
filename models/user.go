package models

import "time"

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleInstitute Role = "institute"
	RoleReviewer  Role = "reviewer"
	RoleAuditor   Role = "auditor"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleInstitute, RoleReviewer, RoleAuditor:
		return true
	}
	return false
}

type UserStatus string

const (
	UserPending   UserStatus = "pending"
	UserActive    UserStatus = "active"
	UserSuspended UserStatus = "suspended"
	UserInactive  UserStatus = "inactive"
)

func (s UserStatus) Valid() bool {
	switch s {
	case UserPending, UserActive, UserSuspended, UserInactive:
		return true
	}
	return false
}

type User struct {
	Base
	Name                string     `gorm:"column:name;size:100" json:"name"`
	Email               string     `gorm:"column:email;uniqueIndex;size:191" json:"email"`
	Password            string     `gorm:"column:password" json:"-"`
	Role                Role       `gorm:"column:role;size:20;index" json:"role"`
	Status              UserStatus `gorm:"column:status;size:20;default:pending" json:"status"`
	Phone               string     `gorm:"column:phone;size:40" json:"phone,omitempty"`
	LoginAttempts       int        `gorm:"column:login_attempts" json:"-"`
	LockUntil           *time.Time `gorm:"column:lock_until" json:"-"`
	LastLogin           *time.Time `gorm:"column:last_login" json:"last_login,omitempty"`
	ResetPasswordToken  *string    `gorm:"column:reset_password_token;size:64" json:"-"`
	ResetPasswordExpire *time.Time `gorm:"column:reset_password_expire" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// IsLocked reports whether repeated login failures have locked the account at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockUntil != nil && u.LockUntil.After(now)
}

// RefreshToken is a server-side record of an issued refresh token. Only the sha256 is stored.
type RefreshToken struct {
	Base
	UserID    string     `gorm:"column:user_id;type:varchar(36);index" json:"user_id"`
	TokenHash string     `gorm:"column:token_hash;size:64;uniqueIndex" json:"-"`
	SessionID string     `gorm:"column:session_id;size:64" json:"session_id"`
	ExpiresAt time.Time  `gorm:"column:expires_at" json:"expires_at"`
	RevokedAt *time.Time `gorm:"column:revoked_at" json:"revoked_at,omitempty"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}
