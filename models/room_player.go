package models

import "time"

// RoomPlayer is append-only: a member is never removed once joined.
type RoomPlayer struct {
	RoomID      uint      `json:"room_id" gorm:"primaryKey;autoIncrement:false"`
	UserID      uint      `json:"user_id" gorm:"primaryKey;autoIncrement:false"`
	DisplayName string    `json:"display_name" gorm:"size:100"`
	Role        string    `json:"role" gorm:"size:10;not null"`
	JoinedAt    time.Time `json:"joined_at" gorm:"not null"`
}
