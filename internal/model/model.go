package model

import (
	"time"
)

// User represents an account that owns conversations
type User struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	Username           string    `gorm:"uniqueIndex;not null;size:64" json:"username"`
	Password           string    `gorm:"not null" json:"-"` // bcrypt hash, never exposed in JSON
	Role               string    `gorm:"size:16;default:viewer" json:"role"` // "admin" or "viewer"
	Email              string    `gorm:"size:254" json:"email"`
	FirstName          string    `gorm:"size:150" json:"first_name"`
	LastName           string    `gorm:"size:150" json:"last_name"`
	Address1           string    `gorm:"size:255" json:"address1"`
	Address2           string    `gorm:"size:255" json:"address2"`
	Address3           string    `gorm:"size:255" json:"address3"`
	Address4           string    `gorm:"size:255" json:"address4"`
	TermsAndConditions bool      `gorm:"default:false" json:"terms_and_conditions"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// User roles
const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

// IsAdmin reports whether the user has the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// AuditLog records mutating operations
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index" json:"user_id"`
	Username  string    `gorm:"size:64" json:"username"`
	Action    string    `gorm:"size:32;not null" json:"action"` // CREATE, UPDATE, DELETE, PROMPT, LOGIN
	Target    string    `gorm:"size:32" json:"target"`          // aimodel, thread, user
	TargetID  string    `gorm:"size:64" json:"target_id"`
	Detail    string    `gorm:"type:text" json:"detail"`
	IP        string    `gorm:"size:64" json:"ip"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// All returns every persisted model, in migration order
func All() []interface{} {
	return []interface{}{
		&User{},
		&AIModel{},
		&ConversationThread{},
		&ConversationItem{},
		&AuditLog{},
	}
}
