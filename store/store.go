package store

import (
	"context"
	"errors"

	"quizduel/models"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicateCode = errors.New("room code already in use")
)

// RoomStore is the durable home of rooms, memberships, answers and rematch
// votes. Each method is atomic on its own; callers serialize per room.
type RoomStore interface {
	GetRoom(ctx context.Context, code string) (*models.Room, error)
	CreateRoom(ctx context.Context, room *models.Room, host *models.RoomPlayer) error
	SaveRoom(ctx context.Context, room *models.Room) error
	ListRoomsForUser(ctx context.Context, userID uint) ([]models.Room, error)

	ListMembers(ctx context.Context, roomID uint) ([]models.RoomPlayer, error)
	AddMember(ctx context.Context, member *models.RoomPlayer) error

	ListAnswers(ctx context.Context, roomID uint) ([]models.RoomAnswer, error)
	// InsertAnswer is insert-if-absent; inserted is false when the
	// (room, user, question) record already existed.
	InsertAnswer(ctx context.Context, answer *models.RoomAnswer) (inserted bool, err error)

	ListRematchVotes(ctx context.Context, roomID uint) ([]models.RematchVote, error)
	AddRematchVote(ctx context.Context, vote *models.RematchVote) (inserted bool, err error)

	// ResetRound deletes every answer and rematch vote of the room and saves
	// the room, all in one transaction.
	ResetRound(ctx context.Context, room *models.Room) error

	QuizStore
}

// BadgeStore backs badge awarding. Awards are insert-if-absent.
type BadgeStore interface {
	CountCorrectAnswers(ctx context.Context, userID uint) (int64, error)
	AwardBadge(ctx context.Context, badge *models.UserBadge) (inserted bool, err error)
	ListBadges(ctx context.Context, userID uint) ([]models.UserBadge, error)
}

type QuizStore interface {
	SaveQuiz(ctx context.Context, quiz *models.Quiz) error
	GetQuiz(ctx context.Context, id string) (*models.Quiz, error)
}

// SnapshotCache keeps the last room snapshot seen by the notification
// emitter, encoded by the caller.
type SnapshotCache interface {
	// Swap stores data for code and returns what was stored before (nil if none).
	Swap(ctx context.Context, code string, data []byte) ([]byte, error)
}
