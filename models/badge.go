package models

import "time"

const (
	BadgeDualSpark  = "dual_spark"
	BadgeFocusGlow  = "focus_glow"
	BadgeCalmStreak = "calm_streak"
)

type UserBadge struct {
	UserID   uint      `json:"user_id" gorm:"primaryKey;autoIncrement:false"`
	BadgeID  string    `json:"badge_id" gorm:"primaryKey;size:64"`
	EarnedAt time.Time `json:"earned_at" gorm:"not null"`
}
