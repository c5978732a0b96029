package models

import "time"

// ReadCursor is how far one participant has read
type ReadCursor struct {
	UserID     string     `json:"userId"`
	LastReadAt *time.Time `json:"lastReadAt,omitempty"`
}

// ReadInfo is the per-room read snapshot used to compute unread counts
type ReadInfo struct {
	TotalActive  int          `json:"totalActive"`
	Participants []ReadCursor `json:"participants"`
}
