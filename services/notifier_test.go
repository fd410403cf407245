package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"quizduel/models"
	"quizduel/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func snapshot(status, mode string, progress map[uint]int, ready ...uint) *RoomState {
	state := &RoomState{
		Code:           "ABCDE",
		Mode:           mode,
		Status:         status,
		TotalQuestions: 3,
		RematchReady:   ready,
	}
	for _, id := range []uint{alice.UserID, bob.UserID} {
		if _, ok := progress[id]; !ok {
			continue
		}
		role := models.RoleGuest
		if id == alice.UserID {
			role = models.RoleHost
		}
		state.Players = append(state.Players, PlayerView{UserID: id, Role: role})
		state.Progress = append(state.Progress, PlayerProgress{UserID: id, AnsweredCount: progress[id]})
	}
	return state
}

func TestRoomEvents(t *testing.T) {
	both := func(a, b int) map[uint]int { return map[uint]int{alice.UserID: a, bob.UserID: b} }
	hostOnly := map[uint]int{alice.UserID: 0}

	testCases := []struct {
		name     string
		prev     *RoomState
		cur      *RoomState
		observer uint
		want     []string
	}{
		{
			name:     "no previous snapshot",
			cur:      snapshot(models.RoomStatusActive, models.RoomModeSync, both(0, 0)),
			observer: alice.UserID,
		},
		{
			name:     "host sees opponent join",
			prev:     snapshot(models.RoomStatusLobby, models.RoomModeSync, hostOnly),
			cur:      snapshot(models.RoomStatusLobby, models.RoomModeSync, both(0, 0)),
			observer: alice.UserID,
			want:     []string{EventHostPlayerJoined},
		},
		{
			name:     "guest does not get host_player_joined",
			prev:     snapshot(models.RoomStatusLobby, models.RoomModeSync, hostOnly),
			cur:      snapshot(models.RoomStatusLobby, models.RoomModeSync, both(0, 0)),
			observer: bob.UserID,
		},
		{
			name:     "room started",
			prev:     snapshot(models.RoomStatusLobby, models.RoomModeSync, both(0, 0)),
			cur:      snapshot(models.RoomStatusActive, models.RoomModeSync, both(0, 0)),
			observer: bob.UserID,
			want:     []string{EventRoomStarted},
		},
		{
			name:     "async opponent overtakes",
			prev:     snapshot(models.RoomStatusActive, models.RoomModeAsync, both(1, 1)),
			cur:      snapshot(models.RoomStatusActive, models.RoomModeAsync, both(1, 2)),
			observer: alice.UserID,
			want:     []string{EventYourTurn},
		},
		{
			name:     "async opponent already ahead",
			prev:     snapshot(models.RoomStatusActive, models.RoomModeAsync, both(0, 1)),
			cur:      snapshot(models.RoomStatusActive, models.RoomModeAsync, both(0, 2)),
			observer: alice.UserID,
		},
		{
			name:     "async opponent still behind",
			prev:     snapshot(models.RoomStatusActive, models.RoomModeAsync, both(2, 0)),
			cur:      snapshot(models.RoomStatusActive, models.RoomModeAsync, both(2, 1)),
			observer: alice.UserID,
		},
		{
			name:     "async observer finished",
			prev:     snapshot(models.RoomStatusActive, models.RoomModeAsync, both(3, 3)),
			cur:      snapshot(models.RoomStatusActive, models.RoomModeAsync, both(3, 3)),
			observer: alice.UserID,
		},
		{
			name:     "sync progress is not a turn",
			prev:     snapshot(models.RoomStatusActive, models.RoomModeSync, both(1, 1)),
			cur:      snapshot(models.RoomStatusActive, models.RoomModeSync, both(1, 2)),
			observer: alice.UserID,
		},
		{
			name:     "match complete",
			prev:     snapshot(models.RoomStatusActive, models.RoomModeSync, both(3, 2)),
			cur:      snapshot(models.RoomStatusComplete, models.RoomModeSync, both(3, 3)),
			observer: alice.UserID,
			want:     []string{EventMatchComplete},
		},
		{
			name:     "opponent requests rematch",
			prev:     snapshot(models.RoomStatusComplete, models.RoomModeSync, both(3, 3)),
			cur:      snapshot(models.RoomStatusComplete, models.RoomModeSync, both(3, 3), bob.UserID),
			observer: alice.UserID,
			want:     []string{EventRematchRequested},
		},
		{
			name:     "own rematch vote is silent",
			prev:     snapshot(models.RoomStatusComplete, models.RoomModeSync, both(3, 3)),
			cur:      snapshot(models.RoomStatusComplete, models.RoomModeSync, both(3, 3), alice.UserID),
			observer: alice.UserID,
		},
		{
			name:     "rematch restart",
			prev:     snapshot(models.RoomStatusComplete, models.RoomModeAsync, both(3, 3), alice.UserID),
			cur:      snapshot(models.RoomStatusActive, models.RoomModeAsync, both(0, 0)),
			observer: alice.UserID,
			want:     []string{EventRoomStarted},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, RoomEvents(tc.prev, tc.cur, tc.observer))
		})
	}
}

type mockDeliverer struct {
	mock.Mock
}

func (m *mockDeliverer) Deliver(ctx context.Context, userID uint, event string, dc DeliveryContext) error {
	return m.Called(ctx, userID, event, dc).Error(0)
}

type staticPresence map[uint]bool

func (p staticPresence) IsSubscribed(code string, userID uint) bool {
	return p[userID]
}

func TestNotifierProcess(t *testing.T) {
	deliverer := &mockDeliverer{}
	deliverer.On("Deliver", mock.Anything, bob.UserID, EventRoomStarted,
		DeliveryContext{RoomCode: "ABCDE", Status: models.RoomStatusActive, Online: false}).
		Return(errors.New("broker down")).Once()
	deliverer.On("Deliver", mock.Anything, alice.UserID, EventRoomStarted,
		DeliveryContext{RoomCode: "ABCDE", Status: models.RoomStatusActive, Online: true}).
		Return(nil).Once()

	notifier := NewNotifier(store.NewMemorySnapshotCache(), deliverer, staticPresence{alice.UserID: true})
	ctx := context.Background()

	lobby := snapshot(models.RoomStatusLobby, models.RoomModeSync, map[uint]int{alice.UserID: 0, bob.UserID: 0})
	require.NoError(t, notifier.process(ctx, lobby))
	deliverer.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	active := snapshot(models.RoomStatusActive, models.RoomModeSync, map[uint]int{alice.UserID: 0, bob.UserID: 0})
	require.NoError(t, notifier.process(ctx, active))

	deliverer.AssertExpectations(t)
}

func TestNotifierRunsQueuedUpdates(t *testing.T) {
	delivered := make(chan string, 4)
	deliverer := &mockDeliverer{}
	deliverer.On("Deliver", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { delivered <- args.String(2) }).
		Return(nil)

	f := newRoomFixture(t)
	notifier := NewNotifier(store.NewMemorySnapshotCache(), deliverer, nil)
	f.rooms.AddListener(notifier)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go notifier.Run(ctx)

	f.activeRoom(t, models.RoomModeSync)

	want := map[string]int{EventHostPlayerJoined: 1, EventRoomStarted: 2}
	got := map[string]int{}
	for i := 0; i < 3; i++ {
		select {
		case event := <-delivered:
			got[event]++
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for notifications, got %v", got)
		}
	}
	assert.Equal(t, want, got)
}
