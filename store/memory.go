package store

import (
	"context"
	"sort"
	"sync"

	"quizduel/models"
)

type answerKey struct {
	roomID     uint
	userID     uint
	questionID string
}

type memberKey struct {
	roomID uint
	userID uint
}

// MemoryStore is an in-process RoomStore. State is lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  uint
	rooms   map[string]*models.Room
	members map[uint][]models.RoomPlayer
	answers map[answerKey]models.RoomAnswer
	votes   map[memberKey]models.RematchVote
	quizzes map[string]models.Quiz
	badges  map[uint][]models.UserBadge
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:   make(map[string]*models.Room),
		members: make(map[uint][]models.RoomPlayer),
		answers: make(map[answerKey]models.RoomAnswer),
		votes:   make(map[memberKey]models.RematchVote),
		quizzes: make(map[string]models.Quiz),
		badges:  make(map[uint][]models.UserBadge),
	}
}

func (m *MemoryStore) GetRoom(ctx context.Context, code string) (*models.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	room, ok := m.rooms[code]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *room
	return &cp, nil
}

func (m *MemoryStore) CreateRoom(ctx context.Context, room *models.Room, host *models.RoomPlayer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rooms[room.Code]; exists {
		return ErrDuplicateCode
	}
	m.nextID++
	room.ID = m.nextID
	host.RoomID = room.ID
	cp := *room
	m.rooms[room.Code] = &cp
	m.members[room.ID] = append(m.members[room.ID], *host)
	return nil
}

func (m *MemoryStore) SaveRoom(ctx context.Context, room *models.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[room.Code]; !ok {
		return ErrNotFound
	}
	cp := *room
	m.rooms[room.Code] = &cp
	return nil
}

func (m *MemoryStore) ListRoomsForUser(ctx context.Context, userID uint) ([]models.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var rooms []models.Room
	for _, room := range m.rooms {
		for _, member := range m.members[room.ID] {
			if member.UserID == userID {
				rooms = append(rooms, *room)
				break
			}
		}
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID > rooms[j].ID })
	return rooms, nil
}

func (m *MemoryStore) ListMembers(ctx context.Context, roomID uint) ([]models.RoomPlayer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]models.RoomPlayer(nil), m.members[roomID]...), nil
}

func (m *MemoryStore) AddMember(ctx context.Context, member *models.RoomPlayer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.members[member.RoomID] {
		if existing.UserID == member.UserID {
			return nil
		}
	}
	m.members[member.RoomID] = append(m.members[member.RoomID], *member)
	return nil
}

func (m *MemoryStore) ListAnswers(ctx context.Context, roomID uint) ([]models.RoomAnswer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var answers []models.RoomAnswer
	for key, answer := range m.answers {
		if key.roomID == roomID {
			answers = append(answers, answer)
		}
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].AnsweredAt.Before(answers[j].AnsweredAt) })
	return answers, nil
}

func (m *MemoryStore) InsertAnswer(ctx context.Context, answer *models.RoomAnswer) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := answerKey{answer.RoomID, answer.UserID, answer.QuestionID}
	if _, exists := m.answers[key]; exists {
		return false, nil
	}
	m.answers[key] = *answer
	return true, nil
}

func (m *MemoryStore) CountCorrectAnswers(ctx context.Context, userID uint) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for key, answer := range m.answers {
		if key.userID == userID && answer.IsCorrect {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) ListRematchVotes(ctx context.Context, roomID uint) ([]models.RematchVote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var votes []models.RematchVote
	for key, vote := range m.votes {
		if key.roomID == roomID {
			votes = append(votes, vote)
		}
	}
	sort.Slice(votes, func(i, j int) bool { return votes[i].ReadyAt.Before(votes[j].ReadyAt) })
	return votes, nil
}

func (m *MemoryStore) AddRematchVote(ctx context.Context, vote *models.RematchVote) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memberKey{vote.RoomID, vote.UserID}
	if _, exists := m.votes[key]; exists {
		return false, nil
	}
	m.votes[key] = *vote
	return true, nil
}

func (m *MemoryStore) ResetRound(ctx context.Context, room *models.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[room.Code]; !ok {
		return ErrNotFound
	}
	for key := range m.answers {
		if key.roomID == room.ID {
			delete(m.answers, key)
		}
	}
	for key := range m.votes {
		if key.roomID == room.ID {
			delete(m.votes, key)
		}
	}
	cp := *room
	m.rooms[room.Code] = &cp
	return nil
}

func (m *MemoryStore) SaveQuiz(ctx context.Context, quiz *models.Quiz) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.quizzes[quiz.ID] = *quiz
	return nil
}

func (m *MemoryStore) GetQuiz(ctx context.Context, id string) (*models.Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	quiz, ok := m.quizzes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &quiz, nil
}

func (m *MemoryStore) AwardBadge(ctx context.Context, badge *models.UserBadge) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.badges[badge.UserID] {
		if existing.BadgeID == badge.BadgeID {
			return false, nil
		}
	}
	m.badges[badge.UserID] = append(m.badges[badge.UserID], *badge)
	return true, nil
}

func (m *MemoryStore) ListBadges(ctx context.Context, userID uint) ([]models.UserBadge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]models.UserBadge(nil), m.badges[userID]...), nil
}
