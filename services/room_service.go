package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"quizduel/models"
	"quizduel/store"

	"github.com/rs/zerolog/log"
)

const (
	// codeAlphabet leaves out I, L, O, 0 and 1.
	codeAlphabet   = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	codeLength     = 5
	maxCodeRetries = 10
)

// Room actions reported to listeners.
const (
	ActionCreate  = "create"
	ActionJoin    = "join"
	ActionStart   = "start"
	ActionAnswer  = "answer"
	ActionRematch = "rematch"
)

// Identity is an already-authenticated user.
type Identity struct {
	UserID      uint
	DisplayName string
}

// RoomUpdate is emitted after every successful room operation, while the
// room is still locked.
type RoomUpdate struct {
	Action string
	Actor  Identity
	State  *RoomState
}

// RoomListener observes committed room updates. Implementations must not
// block: they run inside the room's critical section.
type RoomListener interface {
	OnRoomUpdate(ctx context.Context, update RoomUpdate)
}

// Awarder grants badges when a room completes.
type Awarder interface {
	AwardForRoom(ctx context.Context, room *models.Room, quiz *models.Quiz, members []models.RoomPlayer, answers []models.RoomAnswer) error
}

type CreateRoomRequest struct {
	QuizID        string `json:"quizId"`
	CategoryID    string `json:"categoryId"`
	QuestionCount int    `json:"questionCount"`
	Mode          string `json:"mode"`
}

type RoomService struct {
	store        store.RoomStore
	catalog      QuizCatalog
	awarder      Awarder
	listeners    []RoomListener
	locks        *roomLocks
	generateCode func() (string, error)
	now          func() time.Time
}

type RoomServiceOption func(*RoomService)

func WithAwarder(awarder Awarder) RoomServiceOption {
	return func(s *RoomService) { s.awarder = awarder }
}

func WithCodeGenerator(generate func() (string, error)) RoomServiceOption {
	return func(s *RoomService) { s.generateCode = generate }
}

func WithClock(now func() time.Time) RoomServiceOption {
	return func(s *RoomService) { s.now = now }
}

func NewRoomService(roomStore store.RoomStore, catalog QuizCatalog, opts ...RoomServiceOption) *RoomService {
	s := &RoomService{
		store:        roomStore,
		catalog:      catalog,
		locks:        newRoomLocks(),
		generateCode: GenerateRoomCode,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddListener registers l for every later update. Call before serving.
func (s *RoomService) AddListener(l RoomListener) {
	s.listeners = append(s.listeners, l)
}

// GenerateRoomCode draws a random code from the unambiguous alphabet.
func GenerateRoomCode() (string, error) {
	var sb strings.Builder
	size := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		sb.WriteByte(codeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// NormalizeCode upper-cases and trims a user-typed room code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *RoomService) timestamp() *time.Time {
	t := s.now().UTC()
	return &t
}

func (s *RoomService) notify(ctx context.Context, action string, actor Identity, state *RoomState) {
	update := RoomUpdate{Action: action, Actor: actor, State: state}
	for _, l := range s.listeners {
		l.OnRoomUpdate(ctx, update)
	}
}

func (s *RoomService) getRoom(ctx context.Context, code string) (*models.Room, error) {
	room, err := s.store.GetRoom(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	return room, err
}

func (s *RoomService) resolveQuiz(ctx context.Context, quizID string) (*models.Quiz, error) {
	quiz, err := s.catalog.Resolve(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("resolve quiz %s: %w", quizID, err)
	}
	return quiz, nil
}

// roomFacts is everything stored about a room at one point in time.
type roomFacts struct {
	room    *models.Room
	quiz    *models.Quiz
	members []models.RoomPlayer
	answers []models.RoomAnswer
	votes   []models.RematchVote
}

func (f *roomFacts) isMember(userID uint) bool {
	for _, member := range f.members {
		if member.UserID == userID {
			return true
		}
	}
	return false
}

func (f *roomFacts) state() *RoomState {
	return BuildRoomState(f.room, f.quiz, f.members, f.answers, f.votes)
}

func (s *RoomService) loadFacts(ctx context.Context, room *models.Room) (*roomFacts, error) {
	quiz, err := s.resolveQuiz(ctx, room.QuizID)
	if err != nil {
		return nil, err
	}
	members, err := s.store.ListMembers(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	answers, err := s.store.ListAnswers(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	votes, err := s.store.ListRematchVotes(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	return &roomFacts{room: room, quiz: quiz, members: members, answers: answers, votes: votes}, nil
}

func (s *RoomService) selectQuiz(ctx context.Context, req *CreateRoomRequest) (*models.Quiz, error) {
	var (
		quiz *models.Quiz
		err  error
	)
	switch {
	case req.QuizID != "":
		quiz, err = s.catalog.Resolve(ctx, req.QuizID)
	case req.CategoryID != "":
		quiz, err = s.catalog.BuildFromCategory(ctx, req.CategoryID, req.QuestionCount)
	default:
		return nil, ErrInvalidConfiguration
	}
	if err != nil {
		log.Debug().Err(err).Str("quiz", req.QuizID).Str("category", req.CategoryID).Msg("quiz selection rejected")
		return nil, ErrInvalidConfiguration
	}
	if quiz == nil || len(quiz.Questions) == 0 {
		return nil, ErrInvalidConfiguration
	}
	return quiz, nil
}

// Create opens a lobby hosted by actor.
func (s *RoomService) Create(ctx context.Context, actor Identity, req *CreateRoomRequest) (*RoomState, error) {
	quiz, err := s.selectQuiz(ctx, req)
	if err != nil {
		return nil, err
	}

	mode := models.RoomModeAsync
	if req.Mode == models.RoomModeSync {
		mode = models.RoomModeSync
	}

	for attempt := 0; attempt < maxCodeRetries; attempt++ {
		code, err := s.generateCode()
		if err != nil {
			return nil, fmt.Errorf("generate room code: %w", err)
		}

		state, err := s.createWithCode(ctx, actor, code, mode, quiz)
		if errors.Is(err, store.ErrDuplicateCode) {
			log.Debug().Str("room", code).Msg("room code collision, retrying")
			continue
		}
		return state, err
	}
	return nil, ErrCodeSpaceExhausted
}

func (s *RoomService) createWithCode(ctx context.Context, actor Identity, code, mode string, quiz *models.Quiz) (*RoomState, error) {
	unlock := s.locks.Lock(code)
	defer unlock()

	if _, err := s.store.GetRoom(ctx, code); err == nil {
		return nil, store.ErrDuplicateCode
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	room := &models.Room{
		Code:       code,
		Mode:       mode,
		Status:     models.RoomStatusLobby,
		QuizID:     quiz.ID,
		HostUserID: actor.UserID,
	}
	host := &models.RoomPlayer{
		UserID:      actor.UserID,
		DisplayName: actor.DisplayName,
		Role:        models.RoleHost,
		JoinedAt:    *s.timestamp(),
	}
	if err := s.store.CreateRoom(ctx, room, host); err != nil {
		return nil, err
	}

	facts := &roomFacts{room: room, quiz: quiz, members: []models.RoomPlayer{*host}}
	state := facts.state()
	log.Info().Str("room", code).Uint("user", actor.UserID).Str("mode", mode).Str("quiz", quiz.ID).Msg("room created")
	s.notify(ctx, ActionCreate, actor, state)
	return state, nil
}

// Join adds actor as a guest. Joining again is a no-op that returns the
// current snapshot, which is how clients resynchronise after a reconnect.
func (s *RoomService) Join(ctx context.Context, actor Identity, code string) (*RoomState, error) {
	code = NormalizeCode(code)
	unlock := s.locks.Lock(code)
	defer unlock()

	room, err := s.getRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	facts, err := s.loadFacts(ctx, room)
	if err != nil {
		return nil, err
	}

	if !facts.isMember(actor.UserID) {
		if len(facts.members) >= models.MaxRoomPlayers {
			return nil, ErrRoomFull
		}
		member := models.RoomPlayer{
			RoomID:      room.ID,
			UserID:      actor.UserID,
			DisplayName: actor.DisplayName,
			Role:        models.RoleGuest,
			JoinedAt:    *s.timestamp(),
		}
		if err := s.store.AddMember(ctx, &member); err != nil {
			return nil, err
		}
		facts.members = append(facts.members, member)
		log.Info().Str("room", code).Uint("user", actor.UserID).Msg("player joined room")
	}

	state := facts.state()
	s.notify(ctx, ActionJoin, actor, state)
	return state, nil
}

// Start moves a lobby to active. Only the host may start; starting a room
// that already left the lobby is a no-op.
func (s *RoomService) Start(ctx context.Context, actor Identity, code string) (*RoomState, error) {
	code = NormalizeCode(code)
	unlock := s.locks.Lock(code)
	defer unlock()

	room, err := s.getRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if room.HostUserID != actor.UserID {
		return nil, ErrForbidden
	}

	if room.Status == models.RoomStatusLobby {
		room.Status = models.RoomStatusActive
		room.CurrentIndex = 0
		room.StartedAt = s.timestamp()
		if err := s.store.SaveRoom(ctx, room); err != nil {
			return nil, err
		}
		log.Info().Str("room", code).Msg("room started")
	}

	facts, err := s.loadFacts(ctx, room)
	if err != nil {
		return nil, err
	}
	state := facts.state()
	s.notify(ctx, ActionStart, actor, state)
	return state, nil
}

// SubmitAnswer records actor's first answer to questionID and advances the
// room. Submissions outside the active phase are dropped without error.
func (s *RoomService) SubmitAnswer(ctx context.Context, actor Identity, code, questionID string, answerIndex int) (*RoomState, error) {
	code = NormalizeCode(code)
	unlock := s.locks.Lock(code)
	defer unlock()

	room, err := s.getRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	facts, err := s.loadFacts(ctx, room)
	if err != nil {
		return nil, err
	}
	if !facts.isMember(actor.UserID) {
		return nil, ErrForbidden
	}

	if room.Status == models.RoomStatusActive {
		question, ok := facts.quiz.Question(questionID)
		if !ok || answerIndex < models.NoAnswer || answerIndex >= len(question.Options) {
			return nil, ErrInvalidAnswer
		}

		answer := models.RoomAnswer{
			RoomID:      room.ID,
			UserID:      actor.UserID,
			QuestionID:  questionID,
			AnswerIndex: answerIndex,
			IsCorrect:   question.IsCorrect(answerIndex),
			AnsweredAt:  *s.timestamp(),
		}
		inserted, err := s.store.InsertAnswer(ctx, &answer)
		if err != nil {
			return nil, err
		}
		if inserted {
			facts.answers = append(facts.answers, answer)
		} else {
			log.Debug().Str("room", code).Uint("user", actor.UserID).Str("question", questionID).Msg("duplicate answer ignored")
		}

		if err := s.advance(ctx, facts); err != nil {
			return nil, err
		}
	}

	state := facts.state()
	s.notify(ctx, ActionAnswer, actor, state)
	return state, nil
}

// answeredBy counts distinct members that answered questionID.
func answeredBy(facts *roomFacts, questionID string) int {
	seen := make(map[uint]struct{})
	for _, answer := range facts.answers {
		if answer.QuestionID == questionID && facts.isMember(answer.UserID) {
			seen[answer.UserID] = struct{}{}
		}
	}
	return len(seen)
}

// personalProgress counts distinct quiz questions answered by userID.
func personalProgress(facts *roomFacts, userID uint) int {
	seen := make(map[string]struct{})
	for _, answer := range facts.answers {
		if answer.UserID != userID {
			continue
		}
		if _, ok := facts.quiz.Question(answer.QuestionID); ok {
			seen[answer.QuestionID] = struct{}{}
		}
	}
	return len(seen)
}

func (s *RoomService) advance(ctx context.Context, facts *roomFacts) error {
	room := facts.room
	total := len(facts.quiz.Questions)
	changed := false
	complete := false

	switch room.Mode {
	case models.RoomModeSync:
		// Answers recorded ahead of the current index may let several
		// questions resolve at once.
		for room.CurrentIndex < total && answeredBy(facts, facts.quiz.Questions[room.CurrentIndex].ID) >= len(facts.members) {
			if room.CurrentIndex+1 >= total {
				complete = true
				break
			}
			room.CurrentIndex++
			changed = true
		}
	default:
		complete = true
		for _, member := range facts.members {
			if personalProgress(facts, member.UserID) < total {
				complete = false
				break
			}
		}
	}

	if complete {
		room.Status = models.RoomStatusComplete
		room.CompletedAt = s.timestamp()
		changed = true
	}
	if !changed {
		return nil
	}
	if err := s.store.SaveRoom(ctx, room); err != nil {
		return err
	}

	if complete {
		log.Info().Str("room", room.Code).Msg("room complete")
		if s.awarder != nil {
			if err := s.awarder.AwardForRoom(ctx, room, facts.quiz, facts.members, facts.answers); err != nil {
				log.Error().Err(err).Str("room", room.Code).Msg("failed to award badges")
			}
		}
	} else {
		log.Debug().Str("room", room.Code).Int("index", room.CurrentIndex).Msg("room advanced")
	}
	return nil
}

// RequestRematch records actor's vote. The last missing vote restarts the
// room on a fresh draw of the same shape.
func (s *RoomService) RequestRematch(ctx context.Context, actor Identity, code string) (*RoomState, error) {
	code = NormalizeCode(code)
	unlock := s.locks.Lock(code)
	defer unlock()

	room, err := s.getRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	facts, err := s.loadFacts(ctx, room)
	if err != nil {
		return nil, err
	}
	if !facts.isMember(actor.UserID) {
		return nil, ErrForbidden
	}
	if room.Status != models.RoomStatusComplete {
		return nil, ErrInvalidState
	}

	vote := models.RematchVote{RoomID: room.ID, UserID: actor.UserID, ReadyAt: *s.timestamp()}
	inserted, err := s.store.AddRematchVote(ctx, &vote)
	if err != nil {
		return nil, err
	}
	if inserted {
		facts.votes = append(facts.votes, vote)
	}

	if len(facts.votes) >= len(facts.members) {
		if err := s.restart(ctx, facts); err != nil {
			return nil, err
		}
	}

	state := facts.state()
	s.notify(ctx, ActionRematch, actor, state)
	return state, nil
}

func (s *RoomService) restart(ctx context.Context, facts *roomFacts) error {
	room := facts.room
	category := facts.quiz.CategoryID
	if category == "" {
		category = CategoryAll
	}

	next, err := s.catalog.BuildFromCategory(ctx, category, len(facts.quiz.Questions))
	if err != nil {
		log.Warn().Err(err).Str("room", room.Code).Msg("unable to draw rematch quiz, replaying current quiz")
		next = facts.quiz
	}

	room.Status = models.RoomStatusActive
	room.CurrentIndex = 0
	room.CompletedAt = nil
	room.StartedAt = s.timestamp()
	room.QuizID = next.ID
	if err := s.store.ResetRound(ctx, room); err != nil {
		return err
	}

	facts.quiz = next
	facts.answers = nil
	facts.votes = nil
	log.Info().Str("room", room.Code).Str("quiz", next.ID).Msg("rematch started")
	return nil
}

// Get returns the current snapshot to a member.
func (s *RoomService) Get(ctx context.Context, actor Identity, code string) (*RoomState, error) {
	code = NormalizeCode(code)
	unlock := s.locks.Lock(code)
	defer unlock()

	room, err := s.getRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	facts, err := s.loadFacts(ctx, room)
	if err != nil {
		return nil, err
	}
	if !facts.isMember(actor.UserID) {
		return nil, ErrForbidden
	}
	return facts.state(), nil
}

// ListMine returns snapshots of every room actor belongs to, newest first.
func (s *RoomService) ListMine(ctx context.Context, actor Identity) ([]*RoomState, error) {
	rooms, err := s.store.ListRoomsForUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	states := make([]*RoomState, 0, len(rooms))
	for i := range rooms {
		facts, err := s.loadFacts(ctx, &rooms[i])
		if err != nil {
			log.Warn().Err(err).Str("room", rooms[i].Code).Msg("skipping unreadable room")
			continue
		}
		states = append(states, facts.state())
	}
	return states, nil
}

type RoomSummary struct {
	Code      string            `json:"code"`
	Status    string            `json:"status"`
	Total     int               `json:"total"`
	Scores    []PlayerScore     `json:"scores"`
	Questions []QuestionSummary `json:"questions"`
}

type PlayerScore struct {
	UserID      uint   `json:"userId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
}

type QuestionSummary struct {
	ID        string           `json:"id"`
	Prompt    string           `json:"prompt"`
	Options   []string         `json:"options"`
	Answer    *int             `json:"answer"`
	Responses []AnswerResponse `json:"responses"`
}

type AnswerResponse struct {
	UserID      uint   `json:"userId"`
	DisplayName string `json:"displayName"`
	AnswerIndex int    `json:"answerIndex"`
}

// Summary is the per-question recap of a room. Correct answers are only
// included once the room is complete.
func (s *RoomService) Summary(ctx context.Context, actor Identity, code string) (*RoomSummary, error) {
	code = NormalizeCode(code)
	unlock := s.locks.Lock(code)
	defer unlock()

	room, err := s.getRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	facts, err := s.loadFacts(ctx, room)
	if err != nil {
		return nil, err
	}
	if !facts.isMember(actor.UserID) {
		return nil, ErrForbidden
	}

	state := facts.state()
	names := make(map[uint]string, len(facts.members))
	summary := &RoomSummary{
		Code:      room.Code,
		Status:    room.Status,
		Total:     len(facts.quiz.Questions),
		Scores:    make([]PlayerScore, 0, len(facts.members)),
		Questions: make([]QuestionSummary, 0, len(facts.quiz.Questions)),
	}
	for _, member := range facts.members {
		names[member.UserID] = member.DisplayName
	}
	for _, progress := range state.Progress {
		summary.Scores = append(summary.Scores, PlayerScore{
			UserID:      progress.UserID,
			DisplayName: names[progress.UserID],
			Score:       progress.CorrectCount,
		})
	}

	revealed := room.Status == models.RoomStatusComplete
	for _, question := range facts.quiz.Questions {
		qs := QuestionSummary{
			ID:        question.ID,
			Prompt:    question.Prompt,
			Options:   question.Options,
			Responses: []AnswerResponse{},
		}
		if revealed {
			qs.Answer = question.Answer
		}
		for _, answer := range facts.answers {
			if answer.QuestionID != question.ID {
				continue
			}
			qs.Responses = append(qs.Responses, AnswerResponse{
				UserID:      answer.UserID,
				DisplayName: names[answer.UserID],
				AnswerIndex: answer.AnswerIndex,
			})
		}
		summary.Questions = append(summary.Questions, qs)
	}
	return summary, nil
}
