package models

import (
	"encoding/json"
	"time"
)

// Quiz belongs to a course. Passing all of a course's quizzes completes the
// course.
type Quiz struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CourseID    uint      `gorm:"not null;index" json:"course_id"`
	Course      Course    `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedByID uint      `gorm:"index" json:"created_by_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Questions []QuizQuestion `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
}

// TableName specifies the table name for Quiz model.
func (Quiz) TableName() string {
	return "quizzes"
}

// QuizQuestion is a single question. CorrectAnswers is the current
// multi-answer format; CorrectAnswer is the legacy single-index fallback kept
// for questions created before the list format existed.
type QuizQuestion struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	QuizID         uint            `gorm:"not null;index" json:"quiz_id"`
	Question       string          `gorm:"type:text;not null" json:"question"`
	QuestionType   string          `gorm:"size:50;default:MULTIPLE_CHOICE" json:"question_type"`
	Options        json.RawMessage `gorm:"type:jsonb" json:"options"`         // []string
	CorrectAnswers json.RawMessage `gorm:"type:jsonb" json:"correct_answers"` // []int, may be empty
	CorrectAnswer  int             `gorm:"default:0" json:"correct_answer"`
	Points         int             `gorm:"default:0" json:"points"`
	Position       int             `gorm:"default:0" json:"position"`
	CreatedAt      time.Time       `json:"created_at"`
}

// TableName specifies the table name for QuizQuestion model.
func (QuizQuestion) TableName() string {
	return "quiz_questions"
}

// CorrectAnswerList decodes the multi-answer list. A nil or empty result
// means the legacy single-index field applies.
func (q *QuizQuestion) CorrectAnswerList() []int {
	if len(q.CorrectAnswers) == 0 {
		return nil
	}
	var answers []int
	if err := json.Unmarshal(q.CorrectAnswers, &answers); err != nil {
		return nil
	}
	return answers
}

// QuizAttempt records one scored submission. Immutable once created; multiple
// attempts per (user, quiz) are allowed subject to the failure cooldown.
type QuizAttempt struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	QuizID         uint            `gorm:"not null;index" json:"quiz_id"`
	Quiz           Quiz            `gorm:"foreignKey:QuizID" json:"quiz,omitempty"`
	UserID         uint            `gorm:"not null;index" json:"user_id"`
	User           User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Answers        json.RawMessage `gorm:"type:jsonb" json:"answers"` // []int, submission order
	Score          int             `gorm:"not null" json:"score"`
	TotalQuestions int             `gorm:"not null" json:"total_questions"`
	TotalPoints    int             `gorm:"not null" json:"total_points"`
	Percentage     float64         `gorm:"not null" json:"percentage"`
	Passed         bool            `gorm:"not null" json:"passed"`
	AttemptedAt    time.Time       `gorm:"not null;index" json:"attempted_at"`
}

// TableName specifies the table name for QuizAttempt model.
func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}
