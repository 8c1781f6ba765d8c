package models

import (
	"time"
)

type Role string

const (
	RoleManager        Role = "Manager"
	RoleSpecialist     Role = "Specialist"
	RoleOperator       Role = "Operator"
	RoleCustomer       Role = "Customer"
	RoleQualityManager Role = "QualityManager"

	// RoleAdmin is honored by the authorization policy but cannot be registered.
	RoleAdmin Role = "Admin"
)

// RegistrableRoles lists the roles accepted at registration and account creation.
var RegistrableRoles = []Role{
	RoleManager,
	RoleSpecialist,
	RoleOperator,
	RoleCustomer,
	RoleQualityManager,
}

// ParseRole returns the role matching s exactly, or false when s is not a registrable role.
func ParseRole(s string) (Role, bool) {
	for _, r := range RegistrableRoles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// User is an account of any role. The password hash never leaves the server.
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	FullName     string    `json:"fio" gorm:"column:fio;size:255;not null"`
	Phone        string    `json:"phone" gorm:"size:20;uniqueIndex;not null"`
	Login        string    `json:"login" gorm:"size:50;uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"column:password_hash;type:text;not null"`
	Role         Role      `json:"role" gorm:"type:varchar(30);not null"`
	CreatedAt    time.Time `json:"-" gorm:"autoCreateTime"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

func (u *User) IsSpecialist() bool {
	return u.Role == RoleSpecialist
}

// Actor is the authenticated principal performing an operation, as carried by the access token.
type Actor struct {
	ID    uint
	Login string
	Role  Role
}

// Profile is the public view of a user returned by the auth endpoints.
type Profile struct {
	ID       uint   `json:"id"`
	FullName string `json:"fio"`
	Login    string `json:"login"`
	Role     Role   `json:"role"`
	Phone    string `json:"phone,omitempty"`
}

func (u *User) Profile() Profile {
	return Profile{ID: u.ID, FullName: u.FullName, Login: u.Login, Role: u.Role, Phone: u.Phone}
}

// RegisterInput is the registration body; the same shape is used by managers creating accounts.
type RegisterInput struct {
	Login    string `json:"login" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=6,max=128"`
	FullName string `json:"fio" binding:"required,min=3,max=255"`
	Phone    string `json:"phone" binding:"required,min=10,max=20"`
	Role     string `json:"role" binding:"required"`
}

type LoginInput struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
}

// SpecialistStats summarises a specialist's completed work and the feedback left on it.
type SpecialistStats struct {
	ID                uint     `json:"id"`
	FullName          string   `json:"fio"`
	Phone             string   `json:"phone"`
	Role              Role     `json:"role"`
	CompletedRequests int64    `json:"completed_requests"`
	AverageRating     *float64 `json:"average_rating"`
}
