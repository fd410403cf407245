package services

import (
	"time"

	"quizduel/models"
)

// RoomState is the complete snapshot broadcast on every room update and
// returned by every query. Clients replace their local view with it.
type RoomState struct {
	Code           string           `json:"code"`
	Mode           string           `json:"mode"`
	Status         string           `json:"status"`
	CurrentIndex   int              `json:"currentIndex"`
	TotalQuestions int              `json:"totalQuestions"`
	HostUserID     uint             `json:"hostUserId"`
	Quiz           *models.Quiz     `json:"quiz"`
	Players        []PlayerView     `json:"players"`
	Progress       []PlayerProgress `json:"progress"`
	RematchReady   []uint           `json:"rematchReady"`
	StartedAt      *time.Time       `json:"startedAt,omitempty"`
	CompletedAt    *time.Time       `json:"completedAt,omitempty"`
}

type PlayerView struct {
	UserID      uint   `json:"id"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
}

type PlayerProgress struct {
	UserID        uint `json:"userId"`
	AnsweredCount int  `json:"answeredCount"`
	CorrectCount  int  `json:"correctCount"`
	WrongCount    int  `json:"wrongCount"`
}

// BuildRoomState derives a snapshot from stored facts. Progress is always
// recomputed from answer records. Correct answers stay hidden until the
// room is complete.
func BuildRoomState(room *models.Room, quiz *models.Quiz, members []models.RoomPlayer, answers []models.RoomAnswer, votes []models.RematchVote) *RoomState {
	state := &RoomState{
		Code:           room.Code,
		Mode:           room.Mode,
		Status:         room.Status,
		CurrentIndex:   room.CurrentIndex,
		TotalQuestions: len(quiz.Questions),
		HostUserID:     room.HostUserID,
		Players:        make([]PlayerView, 0, len(members)),
		Progress:       make([]PlayerProgress, 0, len(members)),
		RematchReady:   make([]uint, 0, len(votes)),
		StartedAt:      room.StartedAt,
		CompletedAt:    room.CompletedAt,
	}

	if room.Status == models.RoomStatusComplete {
		state.Quiz = quiz
	} else {
		state.Quiz = quiz.Sanitized()
	}

	byUser := make(map[uint]*PlayerProgress, len(members))
	for _, member := range members {
		state.Players = append(state.Players, PlayerView{
			UserID:      member.UserID,
			DisplayName: member.DisplayName,
			Role:        member.Role,
		})
		state.Progress = append(state.Progress, PlayerProgress{UserID: member.UserID})
	}
	for i := range state.Progress {
		byUser[state.Progress[i].UserID] = &state.Progress[i]
	}

	for _, answer := range answers {
		progress, ok := byUser[answer.UserID]
		if !ok {
			continue
		}
		question, ok := quiz.Question(answer.QuestionID)
		if !ok {
			continue
		}
		progress.AnsweredCount++
		if question.IsCorrect(answer.AnswerIndex) {
			progress.CorrectCount++
		} else {
			progress.WrongCount++
		}
	}

	for _, vote := range votes {
		state.RematchReady = append(state.RematchReady, vote.UserID)
	}
	return state
}

// ProgressOf returns how many questions userID has answered.
func (s *RoomState) ProgressOf(userID uint) int {
	for _, progress := range s.Progress {
		if progress.UserID == userID {
			return progress.AnsweredCount
		}
	}
	return 0
}

// IsMember reports whether userID belongs to the room.
func (s *RoomState) IsMember(userID uint) bool {
	for _, player := range s.Players {
		if player.UserID == userID {
			return true
		}
	}
	return false
}

// IsRematchReady reports whether userID has voted for a rematch.
func (s *RoomState) IsRematchReady(userID uint) bool {
	for _, id := range s.RematchReady {
		if id == userID {
			return true
		}
	}
	return false
}
