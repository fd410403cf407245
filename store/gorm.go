package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"quizduel/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	readAttempts   = 3
	readRetryDelay = 50 * time.Millisecond
)

// GormStore is the Postgres-backed RoomStore.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// AutoMigrate creates or updates every table the store owns.
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(
		&models.Room{},
		&models.RoomPlayer{},
		&models.RoomAnswer{},
		&models.RematchVote{},
		&models.StoredQuiz{},
		&models.UserBadge{},
	)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	// 23505 is unique_violation
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// retryRead re-runs an idempotent read on transient failures.
func retryRead(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= readAttempts; attempt++ {
		err = fn()
		if err == nil || errors.Is(err, gorm.ErrRecordNotFound) ||
			errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Msg("store read failed")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(readRetryDelay * time.Duration(attempt)):
		}
	}
	return err
}

func (s *GormStore) GetRoom(ctx context.Context, code string) (*models.Room, error) {
	var room models.Room
	err := retryRead(ctx, "get_room", func() error {
		return s.db.WithContext(ctx).Where("code = ?", code).First(&room).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", code, err)
	}
	return &room, nil
}

func (s *GormStore) CreateRoom(ctx context.Context, room *models.Room, host *models.RoomPlayer) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return err
		}
		host.RoomID = room.ID
		return tx.Create(host).Error
	})
	if isUniqueViolation(err) {
		return ErrDuplicateCode
	}
	if err != nil {
		return fmt.Errorf("create room %s: %w", room.Code, err)
	}
	return nil
}

func (s *GormStore) SaveRoom(ctx context.Context, room *models.Room) error {
	if err := s.db.WithContext(ctx).Save(room).Error; err != nil {
		return fmt.Errorf("save room %s: %w", room.Code, err)
	}
	return nil
}

func (s *GormStore) ListRoomsForUser(ctx context.Context, userID uint) ([]models.Room, error) {
	var rooms []models.Room
	err := retryRead(ctx, "list_rooms_for_user", func() error {
		return s.db.WithContext(ctx).
			Joins("JOIN room_players ON room_players.room_id = rooms.id").
			Where("room_players.user_id = ?", userID).
			Order("rooms.id DESC").
			Find(&rooms).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list rooms for user %d: %w", userID, err)
	}
	return rooms, nil
}

func (s *GormStore) ListMembers(ctx context.Context, roomID uint) ([]models.RoomPlayer, error) {
	var members []models.RoomPlayer
	err := retryRead(ctx, "list_members", func() error {
		return s.db.WithContext(ctx).Where("room_id = ?", roomID).Order("joined_at").Find(&members).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list members of room %d: %w", roomID, err)
	}
	return members, nil
}

func (s *GormStore) AddMember(ctx context.Context, member *models.RoomPlayer) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(member).Error
	if err != nil {
		return fmt.Errorf("add member %d to room %d: %w", member.UserID, member.RoomID, err)
	}
	return nil
}

func (s *GormStore) ListAnswers(ctx context.Context, roomID uint) ([]models.RoomAnswer, error) {
	var answers []models.RoomAnswer
	err := retryRead(ctx, "list_answers", func() error {
		return s.db.WithContext(ctx).Where("room_id = ?", roomID).Order("answered_at").Find(&answers).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list answers of room %d: %w", roomID, err)
	}
	return answers, nil
}

func (s *GormStore) InsertAnswer(ctx context.Context, answer *models.RoomAnswer) (bool, error) {
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(answer)
	if result.Error != nil {
		return false, fmt.Errorf("insert answer: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *GormStore) CountCorrectAnswers(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := retryRead(ctx, "count_correct_answers", func() error {
		return s.db.WithContext(ctx).Model(&models.RoomAnswer{}).
			Where("user_id = ? AND is_correct = ?", userID, true).
			Count(&n).Error
	})
	if err != nil {
		return 0, fmt.Errorf("count correct answers of user %d: %w", userID, err)
	}
	return n, nil
}

func (s *GormStore) ListRematchVotes(ctx context.Context, roomID uint) ([]models.RematchVote, error) {
	var votes []models.RematchVote
	err := retryRead(ctx, "list_rematch_votes", func() error {
		return s.db.WithContext(ctx).Where("room_id = ?", roomID).Order("ready_at").Find(&votes).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list rematch votes of room %d: %w", roomID, err)
	}
	return votes, nil
}

func (s *GormStore) AddRematchVote(ctx context.Context, vote *models.RematchVote) (bool, error) {
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(vote)
	if result.Error != nil {
		return false, fmt.Errorf("add rematch vote: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *GormStore) ResetRound(ctx context.Context, room *models.Room) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", room.ID).Delete(&models.RoomAnswer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", room.ID).Delete(&models.RematchVote{}).Error; err != nil {
			return err
		}
		return tx.Save(room).Error
	})
	if err != nil {
		return fmt.Errorf("reset round of room %s: %w", room.Code, err)
	}
	return nil
}

func (s *GormStore) SaveQuiz(ctx context.Context, quiz *models.Quiz) error {
	data, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("marshal quiz %s: %w", quiz.ID, err)
	}
	row := models.StoredQuiz{QuizID: quiz.ID, QuizJSON: string(data)}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return fmt.Errorf("save quiz %s: %w", quiz.ID, err)
	}
	return nil
}

func (s *GormStore) GetQuiz(ctx context.Context, id string) (*models.Quiz, error) {
	var row models.StoredQuiz
	err := retryRead(ctx, "get_quiz", func() error {
		return s.db.WithContext(ctx).Where("quiz_id = ?", id).First(&row).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get quiz %s: %w", id, err)
	}

	var quiz models.Quiz
	if err := json.Unmarshal([]byte(row.QuizJSON), &quiz); err != nil {
		return nil, fmt.Errorf("unmarshal quiz %s: %w", id, err)
	}
	return &quiz, nil
}

func (s *GormStore) AwardBadge(ctx context.Context, badge *models.UserBadge) (bool, error) {
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(badge)
	if result.Error != nil {
		return false, fmt.Errorf("award badge %s to user %d: %w", badge.BadgeID, badge.UserID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *GormStore) ListBadges(ctx context.Context, userID uint) ([]models.UserBadge, error) {
	var badges []models.UserBadge
	err := retryRead(ctx, "list_badges", func() error {
		return s.db.WithContext(ctx).Where("user_id = ?", userID).Order("earned_at").Find(&badges).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list badges of user %d: %w", userID, err)
	}
	return badges, nil
}
