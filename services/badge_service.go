package services

import (
	"context"
	"time"

	"quizduel/models"
	"quizduel/store"

	"github.com/rs/zerolog/log"
)

const (
	focusGlowScore  = 3
	calmStreakTotal  = 10
)

type BadgeService struct {
	badges store.BadgeStore
	now    func() time.Time
}

func NewBadgeService(badges store.BadgeStore) *BadgeService {
	return &BadgeService{badges: badges, now: time.Now}
}

// AwardForRoom grants completion badges to every member of a finished room.
func (s *BadgeService) AwardForRoom(ctx context.Context, room *models.Room, quiz *models.Quiz, members []models.RoomPlayer, answers []models.RoomAnswer) error {
	state := BuildRoomState(room, quiz, members, answers, nil)

	for _, progress := range state.Progress {
		var earned []string
		if progress.AnsweredCount > 0 {
			earned = append(earned, models.BadgeDualSpark)
		}
		if progress.CorrectCount >= focusGlowScore {
			earned = append(earned, models.BadgeFocusGlow)
		}

		total, err := s.badges.CountCorrectAnswers(ctx, progress.UserID)
		if err != nil {
			return err
		}
		if total >= calmStreakTotal {
			earned = append(earned, models.BadgeCalmStreak)
		}

		for _, badgeID := range earned {
			inserted, err := s.badges.AwardBadge(ctx, &models.UserBadge{
				UserID:   progress.UserID,
				BadgeID:  badgeID,
				EarnedAt: s.now().UTC(),
			})
			if err != nil {
				return err
			}
			if inserted {
				log.Info().Str("room", room.Code).Uint("user", progress.UserID).Str("badge", badgeID).Msg("badge awarded")
			}
		}
	}
	return nil
}

func (s *BadgeService) ListBadges(ctx context.Context, userID uint) ([]models.UserBadge, error) {
	badges, err := s.badges.ListBadges(ctx, userID)
	if err != nil {
		return nil, err
	}
	if badges == nil {
		badges = []models.UserBadge{}
	}
	return badges, nil
}
