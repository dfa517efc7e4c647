package quiz

import (
	"github.com/aimd54/elearn-gamification/internal/models"
)

// QuestionResult is the per-question scoring breakdown returned to the
// caller alongside the aggregate result.
type QuestionResult struct {
	QuestionID uint `json:"question_id"`
	Position   int  `json:"position"`
	Submitted  int  `json:"submitted"`
	Correct    bool `json:"correct"`
	Points     int  `json:"points"`
	MaxPoints  int  `json:"max_points"`
}

// scoreSubmission pairs answers with questions in order, up to the
// shorter of the two lists, and sums the points of correctly answered
// questions. When no paired question defines explicit points, every
// question falls back to defaultPoints and the total spans the whole
// quiz.
func scoreSubmission(questions []models.QuizQuestion, answers []int, defaultPoints int) (score, totalPoints int, breakdown []QuestionResult) {
	n := len(questions)
	if len(answers) < n {
		n = len(answers)
	}

	breakdown = make([]QuestionResult, 0, n)
	for i := 0; i < n; i++ {
		q := &questions[i]
		correct := isCorrect(q, answers[i])
		earned := 0
		if correct {
			earned = q.Points
			score += q.Points
		}
		totalPoints += q.Points
		breakdown = append(breakdown, QuestionResult{
			QuestionID: q.ID,
			Position:   i,
			Submitted:  answers[i],
			Correct:    correct,
			Points:     earned,
			MaxPoints:  q.Points,
		})
	}

	if totalPoints == 0 {
		// No explicit point values anywhere: weight uniformly across the
		// full question list, not just the answered prefix.
		totalPoints = len(questions) * defaultPoints
		score = 0
		for i := range breakdown {
			breakdown[i].MaxPoints = defaultPoints
			if breakdown[i].Correct {
				breakdown[i].Points = defaultPoints
				score += defaultPoints
			}
		}
	}
	return score, totalPoints, breakdown
}

// isCorrect accepts a submitted option index if it appears in the
// question's answer list, falling back to the legacy single-index field
// when no list is defined.
func isCorrect(q *models.QuizQuestion, submitted int) bool {
	if list := q.CorrectAnswerList(); list != nil {
		for _, a := range list {
			if a == submitted {
				return true
			}
		}
		return false
	}
	return submitted == q.CorrectAnswer
}

// percentage returns the score as a percentage of totalPoints insulated
// against a zero denominator.
func percentage(score, totalPoints int) float64 {
	if totalPoints <= 0 {
		return 0
	}
	return float64(score) / float64(totalPoints) * 100.0
}
