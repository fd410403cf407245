package models

import "time"

// NoAnswer is recorded when the client-side countdown expires.
const NoAnswer = -1

// RoomAnswer is write-once per (room, user, question).
type RoomAnswer struct {
	RoomID      uint      `json:"room_id" gorm:"primaryKey;autoIncrement:false"`
	UserID      uint      `json:"user_id" gorm:"primaryKey;autoIncrement:false"`
	QuestionID  string    `json:"question_id" gorm:"primaryKey;size:64"`
	AnswerIndex int       `json:"answer_index" gorm:"not null"`
	IsCorrect   bool      `json:"is_correct" gorm:"not null;default:false"`
	AnsweredAt  time.Time `json:"answered_at" gorm:"not null"`
}
