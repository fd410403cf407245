package services

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"

	"quizduel/models"
	"quizduel/store"

	"github.com/google/uuid"
)

// CategoryAll draws from every category in the bank.
const CategoryAll = "all"

//go:embed quizbank.json
var builtinQuizzes []byte

var errQuizNotFound = errors.New("quiz not found")

// QuizCatalog resolves quiz selections to question sets.
type QuizCatalog interface {
	Resolve(ctx context.Context, quizID string) (*models.Quiz, error)
	BuildFromCategory(ctx context.Context, categoryID string, count int) (*models.Quiz, error)
}

type Category struct {
	ID            string `json:"id"`
	Label         string `json:"label"`
	QuestionCount int    `json:"questionCount"`
}

type QuizService struct {
	quizzes store.QuizStore
	bank    []models.Quiz
	shuffle func(n int, swap func(i, j int))
}

func NewQuizService(quizzes store.QuizStore) (*QuizService, error) {
	var bank []models.Quiz
	if err := json.Unmarshal(builtinQuizzes, &bank); err != nil {
		return nil, fmt.Errorf("failed to load quiz bank: %w", err)
	}
	return NewQuizServiceWithBank(quizzes, bank), nil
}

func NewQuizServiceWithBank(quizzes store.QuizStore, bank []models.Quiz) *QuizService {
	return &QuizService{
		quizzes: quizzes,
		bank:    bank,
		shuffle: rand.Shuffle,
	}
}

// Resolve checks drawn quizzes first, then the built-in bank.
func (s *QuizService) Resolve(ctx context.Context, quizID string) (*models.Quiz, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err == nil {
		return quiz, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	for i := range s.bank {
		if s.bank[i].ID == quizID {
			quiz := s.bank[i]
			return &quiz, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", errQuizNotFound, quizID)
}

// BuildFromCategory draws count random questions from the category pool and
// persists the draw under a fresh id.
func (s *QuizService) BuildFromCategory(ctx context.Context, categoryID string, count int) (*models.Quiz, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: question count must be positive", ErrInvalidConfiguration)
	}

	var pool []models.Question
	label := ""
	for _, quiz := range s.bank {
		if categoryID == CategoryAll || quiz.CategoryID == categoryID {
			pool = append(pool, quiz.Questions...)
			label = quiz.CategoryLabel
		}
	}
	if categoryID == CategoryAll {
		label = "All Categories"
	}
	if len(pool) == 0 || count > len(pool) {
		return nil, fmt.Errorf("%w: category %q cannot supply %d questions", ErrInvalidConfiguration, categoryID, count)
	}

	s.shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	quiz := &models.Quiz{
		ID:            fmt.Sprintf("custom_%s_%s", categoryID, uuid.NewString()),
		CategoryID:    categoryID,
		CategoryLabel: label,
		Title:         label,
		Questions:     append([]models.Question(nil), pool[:count]...),
	}
	if err := s.quizzes.SaveQuiz(ctx, quiz); err != nil {
		return nil, fmt.Errorf("failed to save drawn quiz: %w", err)
	}
	return quiz, nil
}

// Categories lists the bank's categories, "all" first.
func (s *QuizService) Categories() []Category {
	total := 0
	seen := map[string]int{}
	var categories []Category
	for _, quiz := range s.bank {
		total += len(quiz.Questions)
		if i, ok := seen[quiz.CategoryID]; ok {
			categories[i].QuestionCount += len(quiz.Questions)
			continue
		}
		seen[quiz.CategoryID] = len(categories)
		categories = append(categories, Category{
			ID:            quiz.CategoryID,
			Label:         quiz.CategoryLabel,
			QuestionCount: len(quiz.Questions),
		})
	}
	return append([]Category{{ID: CategoryAll, Label: "All Categories", QuestionCount: total}}, categories...)
}
