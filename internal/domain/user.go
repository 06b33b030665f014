package domain

import "time"

// RoleID identifies an application role.
type RoleID int

const (
	RoleAdmin        RoleID = 3
	RoleInstallation RoleID = 4
	RoleMaintenance  RoleID = 5
	RoleBahiaHead    RoleID = 6
	RoleOversight    RoleID = 7
	RoleFlotaHead    RoleID = 8
)

// NotificationGroupID identifies a notification subscription group.
type NotificationGroupID int

const (
	GroupNewRequest       NotificationGroupID = 1
	GroupCriticalAlerts   NotificationGroupID = 2
	GroupDeadlineAlerts   NotificationGroupID = 3
	GroupCompletionNotice NotificationGroupID = 5
	GroupResponsible      NotificationGroupID = 6
	GroupStatus           NotificationGroupID = 7
	GroupComments         NotificationGroupID = 8
	GroupCompleted        NotificationGroupID = 9
)

// User is an application account.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Roles        []UserRole
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasRole reports whether the user holds any of the given roles.
func (u *User) HasRole(roles ...RoleID) bool {
	for _, ur := range u.Roles {
		for _, r := range roles {
			if ur.RoleID == r {
				return true
			}
		}
	}
	return false
}

// UserRole links a user to a role and a notification group with an opt-in flag.
type UserRole struct {
	UserID              int64
	RoleID              RoleID
	NotificationGroupID *NotificationGroupID
	EmailNotifications  bool
}

// Recipient is a resolved notification target.
type Recipient struct {
	UserID int64
	Name   string
	Email  string
	RoleID RoleID
}
