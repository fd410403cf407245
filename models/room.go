package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoomModeSync  = "sync"
	RoomModeAsync = "async"

	RoomStatusLobby    = "lobby"
	RoomStatusActive   = "active"
	RoomStatusComplete = "complete"

	RoleHost  = "host"
	RoleGuest = "guest"

	// MaxRoomPlayers caps a head-to-head duel.
	MaxRoomPlayers = 2
)

type Room struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	Code         string         `json:"code" gorm:"size:5;uniqueIndex;not null"`
	Mode         string         `json:"mode" gorm:"size:10;not null"`
	Status       string         `json:"status" gorm:"size:20;not null;default:'lobby'"` // lobby, active, complete
	QuizID       string         `json:"quiz_id" gorm:"not null"`
	CurrentIndex int            `json:"current_index" gorm:"not null;default:0"`
	HostUserID   uint           `json:"host_user_id" gorm:"not null;index"`
	StartedAt    *time.Time     `json:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}
