package app

import (
	"fmt"

	"mindquest-service/internal/domain"
)

const (
	secondsPerQuestion = 30
	maxTimeBonus       = 20
	perfectScoreBonus  = 50
)

// ScoreResult is the graded outcome of a submission.
type ScoreResult struct {
	Answers        []domain.QuizAnswer
	CorrectAnswers int
	TotalQuestions int
	Score          int
	BasePoints     int64
	TimeBonus      int64
	PerfectBonus   int64
	TotalPoints    int64
	// Answered lists each known answered question once, in submission order.
	// It is complete even when Score returns an error.
	Answered []int64
}

// Score grades answers against questions. Each answer must reference one of
// questions; correctness is an exact match on the option index.
func Score(questions []domain.Question, answers []domain.AnswerInput, totalTimeSpent int) (ScoreResult, error) {
	var result ScoreResult
	if len(answers) == 0 {
		return result, domain.ErrEmptySubmission
	}
	byID := make(map[int64]domain.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	// Every known question is collected into Answered even after a failure,
	// so callers can count usage for the whole submission.
	var firstErr error
	seen := make(map[int64]struct{}, len(answers))
	result.Answers = make([]domain.QuizAnswer, 0, len(answers))
	for _, in := range answers {
		if _, dup := seen[in.QuestionID]; dup {
			if firstErr == nil {
				firstErr = fmt.Errorf("question %d: %w", in.QuestionID, domain.ErrDuplicateAnswer)
			}
			continue
		}
		question, ok := byID[in.QuestionID]
		if !ok {
			if firstErr == nil {
				firstErr = fmt.Errorf("question %d: %w", in.QuestionID, domain.ErrQuestionNotFound)
			}
			continue
		}
		seen[in.QuestionID] = struct{}{}
		result.Answered = append(result.Answered, in.QuestionID)

		answer := domain.QuizAnswer{
			QuestionID:     question.ID,
			SelectedOption: in.SelectedOption,
			Correct:        in.SelectedOption == question.CorrectAnswer,
			TimeSpent:      in.TimeSpent,
		}
		if answer.Correct {
			answer.Points = question.Points
			result.CorrectAnswers++
			result.BasePoints += int64(question.Points)
		}
		result.Answers = append(result.Answers, answer)
	}
	if firstErr == nil && totalTimeSpent < 0 {
		firstErr = fmt.Errorf("negative time spent: %w", domain.ErrInvalidArgument)
	}
	if firstErr != nil {
		return result, firstErr
	}

	n := len(answers)
	result.TotalQuestions = n
	result.Score = percentRounded(result.CorrectAnswers, n)
	result.TimeBonus = timeBonus(totalTimeSpent, n)
	if result.Score == 100 {
		result.PerfectBonus = perfectScoreBonus
	}
	result.TotalPoints = result.BasePoints + result.TimeBonus + result.PerfectBonus
	return result, nil
}

// percentRounded is round(part/whole*100) with halves rounded up.
func percentRounded(part, whole int) int {
	return (200*part + whole) / (2 * whole)
}

// timeBonus rewards finishing under a flat 30s-per-question baseline, capped at 20.
func timeBonus(spent, questions int) int64 {
	expected := questions * secondsPerQuestion
	if spent >= expected {
		return 0
	}
	bonus := (expected - spent) / 10
	if bonus > maxTimeBonus {
		bonus = maxTimeBonus
	}
	return int64(bonus)
}
