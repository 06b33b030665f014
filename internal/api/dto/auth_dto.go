package dto

import "time"

// LoginRequest payload.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse returns token info.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserRoleRequest assigns a role, optionally subscribed to a notification group.
type UserRoleRequest struct {
	RoleID              int  `json:"role_id" validate:"required,oneof=3 4 5 6 7 8"`
	NotificationGroupID *int `json:"notification_group_id" validate:"omitempty,oneof=1 2 3 5 6 7 8 9"`
	EmailNotifications  bool `json:"email_notifications"`
}

// CreateUserRequest payload.
type CreateUserRequest struct {
	Username string            `json:"username" validate:"required,min=3,max=64"`
	Email    string            `json:"email" validate:"required,email"`
	Password string            `json:"password" validate:"required,min=8"`
	Roles    []UserRoleRequest `json:"roles" validate:"required,min=1,dive"`
}

// UserRoleResponse describes one role assignment.
type UserRoleResponse struct {
	RoleID              int  `json:"role_id"`
	NotificationGroupID *int `json:"notification_group_id,omitempty"`
	EmailNotifications  bool `json:"email_notifications"`
}

// UserResponse describes an account.
type UserResponse struct {
	ID        int64              `json:"id"`
	Username  string             `json:"username"`
	Email     string             `json:"email"`
	Roles     []UserRoleResponse `json:"roles"`
	CreatedAt time.Time          `json:"created_at"`
}
