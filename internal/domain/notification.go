package domain

import "time"

// NotificationType labels a generated in-app notification.
type NotificationType string

const (
	NotificationNewRequest         NotificationType = "NEW_REQUEST"
	NotificationResponsibleChanged NotificationType = "RESPONSIBLE_CHANGED"
	NotificationCommentAdded       NotificationType = "ADD_COMMENT"
	NotificationStatusChanged      NotificationType = "STATUS_CHANGED"
	NotificationCompleted          NotificationType = "COMPLETED"
	NotificationEstimatedDates     NotificationType = "ESTIMATED_DATES_CHANGED"
)

// GeneratedNotification is an in-app notification tied to a ticket.
type GeneratedNotification struct {
	ID                  int64
	TicketID            int64
	Type                NotificationType
	Title               string
	Message             string
	NotificationGroupID NotificationGroupID
	CreatedAt           time.Time
}
