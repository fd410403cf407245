package models

import "time"

type RematchVote struct {
	RoomID  uint      `json:"room_id" gorm:"primaryKey;autoIncrement:false"`
	UserID  uint      `json:"user_id" gorm:"primaryKey;autoIncrement:false"`
	ReadyAt time.Time `json:"ready_at" gorm:"not null"`
}
