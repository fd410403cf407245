package services

import (
	"testing"
	"time"

	"quizduel/models"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestBuildRoomState(t *testing.T) {
	quiz := &models.Quiz{ID: "trio", Title: "Trio", Questions: questions("t1", "t2", "t3")}
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	room := &models.Room{
		ID: 7, Code: "ABCDE", Mode: models.RoomModeSync, Status: models.RoomStatusActive,
		QuizID: "trio", CurrentIndex: 1, HostUserID: alice.UserID, StartedAt: &started,
	}
	members := []models.RoomPlayer{
		{RoomID: 7, UserID: alice.UserID, DisplayName: "Alice", Role: models.RoleHost},
		{RoomID: 7, UserID: bob.UserID, DisplayName: "Bob", Role: models.RoleGuest},
	}
	answers := []models.RoomAnswer{
		{RoomID: 7, UserID: alice.UserID, QuestionID: "t1", AnswerIndex: 0},
		{RoomID: 7, UserID: bob.UserID, QuestionID: "t1", AnswerIndex: 2},
		{RoomID: 7, UserID: alice.UserID, QuestionID: "t2", AnswerIndex: models.NoAnswer},
		{RoomID: 7, UserID: carol.UserID, QuestionID: "t1", AnswerIndex: 0},
		{RoomID: 7, UserID: bob.UserID, QuestionID: "gone", AnswerIndex: 0},
	}

	got := BuildRoomState(room, quiz, members, answers, nil)

	want := &RoomState{
		Code:           "ABCDE",
		Mode:           models.RoomModeSync,
		Status:         models.RoomStatusActive,
		CurrentIndex:   1,
		TotalQuestions: 3,
		HostUserID:     alice.UserID,
		Quiz:           quiz.Sanitized(),
		Players: []PlayerView{
			{UserID: alice.UserID, DisplayName: "Alice", Role: models.RoleHost},
			{UserID: bob.UserID, DisplayName: "Bob", Role: models.RoleGuest},
		},
		Progress: []PlayerProgress{
			{UserID: alice.UserID, AnsweredCount: 2, CorrectCount: 1, WrongCount: 1},
			{UserID: bob.UserID, AnsweredCount: 1, CorrectCount: 0, WrongCount: 1},
		},
		RematchReady: []uint{},
		StartedAt:    &started,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BuildRoomState mismatch (-want +got):\n%s", diff)
	}
	assert.NotNil(t, quiz.Questions[0].Answer, "sanitizing must not touch the source quiz")
}

func TestBuildRoomState_RevealsAnswersWhenComplete(t *testing.T) {
	quiz := &models.Quiz{ID: "trio", Questions: questions("t1")}
	room := &models.Room{Code: "ABCDE", Status: models.RoomStatusComplete}
	votes := []models.RematchVote{{UserID: bob.UserID}}

	got := BuildRoomState(room, quiz, nil, nil, votes)

	assert.NotNil(t, got.Quiz.Questions[0].Answer)
	assert.Equal(t, []uint{bob.UserID}, got.RematchReady)
	assert.True(t, got.IsRematchReady(bob.UserID))
	assert.False(t, got.IsRematchReady(alice.UserID))
	assert.NotNil(t, got.Players)
	assert.NotNil(t, got.Progress)
	assert.False(t, got.IsMember(alice.UserID))
}
