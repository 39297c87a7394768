package app

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindquest-service/internal/domain"
)

func tenQuestions() []domain.Question {
	qs := make([]domain.Question, 10)
	for i := range qs {
		qs[i] = domain.Question{
			ID:            int64(i + 1),
			Prompt:        "q",
			Options:       []string{"a", "b", "c", "d"},
			CorrectAnswer: i % 4,
			Points:        10 + i,
		}
	}
	return qs
}

// answersFor answers the first `correct` questions right and the rest wrong.
func answersFor(qs []domain.Question, correct int) []domain.AnswerInput {
	out := make([]domain.AnswerInput, len(qs))
	for i, q := range qs {
		sel := q.CorrectAnswer
		if i >= correct {
			sel = (q.CorrectAnswer + 1) % len(q.Options)
		}
		out[i] = domain.AnswerInput{QuestionID: q.ID, SelectedOption: sel, TimeSpent: 15}
	}
	return out
}

func TestScoreSevenOfTen(t *testing.T) {
	qs := tenQuestions()
	res, err := Score(qs, answersFor(qs, 7), 150)
	require.NoError(t, err)

	var base int64
	for _, q := range qs[:7] {
		base += int64(q.Points)
	}
	assert.Equal(t, 7, res.CorrectAnswers)
	assert.Equal(t, 10, res.TotalQuestions)
	assert.Equal(t, 70, res.Score)
	assert.Equal(t, base, res.BasePoints)
	assert.Equal(t, int64(15), res.TimeBonus)
	assert.Zero(t, res.PerfectBonus)
	assert.Equal(t, base+15, res.TotalPoints)
	assert.Len(t, res.Answers, 10)
	assert.Len(t, res.Answered, 10)
	for i, a := range res.Answers {
		assert.Equal(t, i < 7, a.Correct)
		if a.Correct {
			assert.Equal(t, qs[i].Points, a.Points)
		} else {
			assert.Zero(t, a.Points)
		}
	}
}

func TestScorePerfectRunAddsBonusOnce(t *testing.T) {
	qs := tenQuestions()
	res, err := Score(qs, answersFor(qs, 10), 300)
	require.NoError(t, err)
	assert.Equal(t, 100, res.Score)
	assert.Equal(t, int64(50), res.PerfectBonus)
	assert.Zero(t, res.TimeBonus)
	assert.Equal(t, res.BasePoints+50, res.TotalPoints)
}

func TestTimeBonusBoundaries(t *testing.T) {
	cases := []struct {
		spent, questions int
		want             int64
	}{
		{300, 10, 0},
		{301, 10, 0},
		{299, 10, 0},
		{290, 10, 1},
		{0, 10, 20},
		{50, 10, 20},
		{100, 10, 20},
		{110, 10, 19},
		{25, 1, 0},
		{0, 1, 3},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, timeBonus(tc.spent, tc.questions), "spent=%d questions=%d", tc.spent, tc.questions)
	}
}

func TestPercentRoundsHalfUp(t *testing.T) {
	assert.Equal(t, 67, percentRounded(2, 3))
	assert.Equal(t, 33, percentRounded(1, 3))
	assert.Equal(t, 13, percentRounded(1, 8))
	assert.Equal(t, 0, percentRounded(0, 7))
	assert.Equal(t, 100, percentRounded(7, 7))
}

func TestScoreRejectsBadSubmissions(t *testing.T) {
	qs := tenQuestions()

	_, err := Score(qs, nil, 10)
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))

	_, err = Score(qs, answersFor(qs[:1], 1), -1)
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))

	dup := []domain.AnswerInput{{QuestionID: 1}, {QuestionID: 1}}
	_, err = Score(qs, dup, 10)
	assert.True(t, errors.Is(err, domain.ErrDuplicateAnswer))
}

func TestScoreUnknownQuestionStillCollectsAnswered(t *testing.T) {
	qs := tenQuestions()
	answers := []domain.AnswerInput{
		{QuestionID: 999, SelectedOption: 0},
		{QuestionID: 1, SelectedOption: 0},
		{QuestionID: 1, SelectedOption: 0},
		{QuestionID: 2, SelectedOption: 1},
	}
	res, err := Score(qs, answers, 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrQuestionNotFound))
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Equal(t, []int64{1, 2}, res.Answered)
}

func TestScoreNegativeTimeStillCollectsAnswered(t *testing.T) {
	qs := tenQuestions()
	res, err := Score(qs, answersFor(qs[:2], 2), -1)
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
	assert.Equal(t, []int64{1, 2}, res.Answered)
}
