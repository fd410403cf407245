package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"quizduel/models"
	"quizduel/store"

	"github.com/stretchr/testify/require"
)

var (
	alice = Identity{UserID: 1, DisplayName: "Alice"}
	bob   = Identity{UserID: 2, DisplayName: "Bob"}
	carol = Identity{UserID: 3, DisplayName: "Carol"}
)

func questions(ids ...string) []models.Question {
	out := make([]models.Question, 0, len(ids))
	for _, id := range ids {
		answer := 0
		out = append(out, models.Question{
			ID:      id,
			Prompt:  "Question " + id,
			Options: []string{"right", "wrong", "also wrong"},
			Answer:  &answer,
		})
	}
	return out
}

func testBank() []models.Quiz {
	return []models.Quiz{
		{ID: "trio", CategoryID: "test", CategoryLabel: "Test", Title: "Trio", Questions: questions("t1", "t2", "t3")},
		{ID: "more", CategoryID: "test", CategoryLabel: "Test", Title: "More", Questions: questions("t4", "t5", "t6")},
		{ID: "solo", CategoryID: "other", CategoryLabel: "Other", Title: "Solo", Questions: questions("o1")},
	}
}

// sequenceCodes hands out codes in order and then repeats the last one.
func sequenceCodes(codes ...string) func() (string, error) {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		code := codes[i]
		if i < len(codes)-1 {
			i++
		}
		return code, nil
	}
}

func counterCodes() func() (string, error) {
	var mu sync.Mutex
	n := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("R%04d", n), nil
	}
}

func fixedClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

type recordingListener struct {
	mu      sync.Mutex
	updates []RoomUpdate
}

func (l *recordingListener) OnRoomUpdate(ctx context.Context, update RoomUpdate) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updates = append(l.updates, update)
}

func (l *recordingListener) actions() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.updates))
	for _, update := range l.updates {
		out = append(out, update.Action)
	}
	return out
}

type roomFixture struct {
	rooms    *RoomService
	store    *store.MemoryStore
	quizzes  *QuizService
	listener *recordingListener
}

func newRoomFixture(t *testing.T, opts ...RoomServiceOption) *roomFixture {
	t.Helper()

	memory := store.NewMemoryStore()
	quizzes := NewQuizServiceWithBank(memory, testBank())
	base := []RoomServiceOption{WithCodeGenerator(counterCodes()), WithClock(fixedClock())}
	rooms := NewRoomService(memory, quizzes, append(base, opts...)...)
	listener := &recordingListener{}
	rooms.AddListener(listener)

	return &roomFixture{rooms: rooms, store: memory, quizzes: quizzes, listener: listener}
}

// activeRoom creates a room hosted by alice, joined by bob and started.
func (f *roomFixture) activeRoom(t *testing.T, mode string) string {
	t.Helper()
	ctx := context.Background()

	state, err := f.rooms.Create(ctx, alice, &CreateRoomRequest{QuizID: "trio", Mode: mode})
	require.NoError(t, err)
	_, err = f.rooms.Join(ctx, bob, state.Code)
	require.NoError(t, err)
	_, err = f.rooms.Start(ctx, alice, state.Code)
	require.NoError(t, err)
	return state.Code
}

func (f *roomFixture) answer(t *testing.T, who Identity, code, questionID string, index int) *RoomState {
	t.Helper()
	state, err := f.rooms.SubmitAnswer(context.Background(), who, code, questionID, index)
	require.NoError(t, err)
	return state
}

func newMemoryStoreForTest() *store.MemoryStore {
	return store.NewMemoryStore()
}
