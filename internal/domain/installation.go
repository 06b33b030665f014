package domain

import "time"

// Installation is a vessel or facility that owns tickets.
type Installation struct {
	ID        int64
	Name      string
	FolioCode string
	CreatedAt time.Time
}

// ResponsibleParty is the person accountable for resolving tickets.
type ResponsibleParty struct {
	ID     int64
	Name   string
	UserID *int64
	Email  string
}
