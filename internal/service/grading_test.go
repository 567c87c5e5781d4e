package service

import (
	"testing"

	"certprep_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func singleChoiceQuestion(points int) *model.Question {
	return &model.Question{
		BaseModel: model.BaseModel{ID: 1},
		Type:      model.SingleChoice,
		Points:    points,
		Options: []model.QuestionOption{
			{BaseModel: model.BaseModel{ID: 11}, OptionText: "WPA2", IsCorrect: false},
			{BaseModel: model.BaseModel{ID: 12}, OptionText: "WPA3", IsCorrect: true},
			{BaseModel: model.BaseModel{ID: 13}, OptionText: "WEP", IsCorrect: false},
		},
	}
}

func TestTextAnswerMatcher(t *testing.T) {
	q := &model.Question{Type: model.PerformanceBased, AnswerText: "ipconfig /all"}

	tests := []struct {
		name      string
		submitted string
		want      bool
	}{
		{"exact match", "ipconfig /all", true},
		{"case insensitive", "IPCONFIG /ALL", true},
		{"surrounding whitespace", "  ipconfig /all  ", true},
		{"wrong command", "ifconfig -a", false},
		{"empty submission", "", false},
		{"whitespace only", "   ", false},
	}

	m := TextAnswerMatcher{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			correct, credit := m.Evaluate(q, tt.submitted)
			assert.Equal(t, tt.want, correct)
			if tt.want {
				assert.Equal(t, 1.0, credit)
			} else {
				assert.Equal(t, 0.0, credit)
			}
		})
	}
}

func TestGrader_SingleChoice(t *testing.T) {
	g := NewGrader(nil)
	q := singleChoiceQuestion(10)

	correctID := uint(12)
	wrongID := uint(11)

	correct, points := g.Grade(q, AnswerSubmission{SelectedOptionID: &correctID})
	assert.True(t, correct)
	assert.Equal(t, 10.0, points)

	correct, points = g.Grade(q, AnswerSubmission{SelectedOptionID: &wrongID})
	assert.False(t, correct)
	assert.Equal(t, 0.0, points)

	// 没有选择任何选项
	correct, points = g.Grade(q, AnswerSubmission{})
	assert.False(t, correct)
	assert.Equal(t, 0.0, points)
}

func TestGrader_SingleChoiceWithoutCorrectOption(t *testing.T) {
	g := NewGrader(nil)
	q := &model.Question{Type: model.SingleChoice, Points: 10}

	id := uint(1)
	correct, points := g.Grade(q, AnswerSubmission{SelectedOptionID: &id})
	assert.False(t, correct)
	assert.Equal(t, 0.0, points)
}

func TestGrader_PerformanceBased(t *testing.T) {
	g := NewGrader(nil)
	q := &model.Question{
		Type:       model.PerformanceBased,
		Points:     20,
		AnswerText: "443",
	}

	correct, points := g.Grade(q, AnswerSubmission{Text: "443"})
	assert.True(t, correct)
	assert.Equal(t, 20.0, points)

	correct, points = g.Grade(q, AnswerSubmission{Text: "8443"})
	assert.False(t, correct)
	assert.Equal(t, 0.0, points)
}

type creditMatcher struct {
	correct bool
	credit  float64
}

func (m creditMatcher) Evaluate(*model.Question, string) (bool, float64) {
	return m.correct, m.credit
}

func TestGrader_CreditClamped(t *testing.T) {
	q := &model.Question{Type: model.PerformanceBased, Points: 10}

	tests := []struct {
		name   string
		credit float64
		want   float64
	}{
		{"partial credit", 0.5, 5},
		{"above one clamped", 1.5, 10},
		{"negative clamped", -0.5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGrader(creditMatcher{correct: tt.credit > 0, credit: tt.credit})
			_, points := g.Grade(q, AnswerSubmission{Text: "anything"})
			require.Equal(t, tt.want, points)
		})
	}
}
