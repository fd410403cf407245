package models

import "time"

// Quiz is an immutable question set. Once a room references a quiz id the
// content behind that id never changes.
type Quiz struct {
	ID            string     `json:"id"`
	CategoryID    string     `json:"categoryId"`
	CategoryLabel string     `json:"categoryLabel"`
	Title         string     `json:"title"`
	Questions     []Question `json:"questions"`
}

type Question struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
	Answer  *int     `json:"answer,omitempty"`
}

// Sanitized returns a copy of the quiz with every correct answer stripped.
func (q *Quiz) Sanitized() *Quiz {
	out := *q
	out.Questions = make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		question.Answer = nil
		out.Questions[i] = question
	}
	return &out
}

// Question looks up a question by id.
func (q *Quiz) Question(id string) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

// IsCorrect reports whether answerIndex matches the question's answer.
func (q Question) IsCorrect(answerIndex int) bool {
	return q.Answer != nil && *q.Answer == answerIndex
}

// StoredQuiz persists drawn quizzes so a room's quiz reference keeps its meaning.
type StoredQuiz struct {
	QuizID    string    `gorm:"primaryKey;size:128"`
	QuizJSON  string    `gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
}
