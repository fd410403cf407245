package services

import (
	"context"
	"testing"

	"quizduel/models"
	"quizduel/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func badgeIDs(badges []models.UserBadge) []string {
	ids := make([]string, 0, len(badges))
	for _, badge := range badges {
		ids = append(ids, badge.BadgeID)
	}
	return ids
}

func TestBadgeServiceAwardForRoom(t *testing.T) {
	memory := store.NewMemoryStore()
	badges := NewBadgeService(memory)
	ctx := context.Background()

	quiz := &models.Quiz{ID: "trio", Questions: questions("t1", "t2", "t3")}
	room := &models.Room{ID: 1, Code: "ABCDE", Status: models.RoomStatusComplete}
	members := []models.RoomPlayer{
		{RoomID: 1, UserID: alice.UserID, Role: models.RoleHost},
		{RoomID: 1, UserID: bob.UserID, Role: models.RoleGuest},
	}
	var answers []models.RoomAnswer
	for _, id := range []string{"t1", "t2", "t3"} {
		answers = append(answers,
			models.RoomAnswer{RoomID: 1, UserID: alice.UserID, QuestionID: id, AnswerIndex: 0, IsCorrect: true},
			models.RoomAnswer{RoomID: 1, UserID: bob.UserID, QuestionID: id, AnswerIndex: 1},
		)
	}
	for _, answer := range answers {
		answer := answer
		_, err := memory.InsertAnswer(ctx, &answer)
		require.NoError(t, err)
	}

	require.NoError(t, badges.AwardForRoom(ctx, room, quiz, members, answers))
	require.NoError(t, badges.AwardForRoom(ctx, room, quiz, members, answers))

	got, err := badges.ListBadges(ctx, alice.UserID)
	require.NoError(t, err)
	assert.Equal(t, []string{models.BadgeDualSpark, models.BadgeFocusGlow}, badgeIDs(got))

	got, err = badges.ListBadges(ctx, bob.UserID)
	require.NoError(t, err)
	assert.Equal(t, []string{models.BadgeDualSpark}, badgeIDs(got))

	got, err = badges.ListBadges(ctx, carol.UserID)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestBadgeServiceCalmStreak(t *testing.T) {
	memory := store.NewMemoryStore()
	badges := NewBadgeService(memory)
	ctx := context.Background()

	for i := 0; i < calmStreakTotal; i++ {
		_, err := memory.InsertAnswer(ctx, &models.RoomAnswer{
			RoomID: uint(100 + i), UserID: alice.UserID, QuestionID: "t1", IsCorrect: true,
		})
		require.NoError(t, err)
	}

	quiz := &models.Quiz{ID: "solo", Questions: questions("t1")}
	room := &models.Room{ID: 109, Code: "ABCDE", Status: models.RoomStatusComplete}
	members := []models.RoomPlayer{{RoomID: 109, UserID: alice.UserID}}
	answers := []models.RoomAnswer{{RoomID: 109, UserID: alice.UserID, QuestionID: "t1", IsCorrect: true}}

	require.NoError(t, badges.AwardForRoom(ctx, room, quiz, members, answers))

	got, err := badges.ListBadges(ctx, alice.UserID)
	require.NoError(t, err)
	assert.Contains(t, badgeIDs(got), models.BadgeCalmStreak)
	assert.NotContains(t, badgeIDs(got), models.BadgeFocusGlow)
}
