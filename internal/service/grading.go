package service

import (
	"certprep_backend/internal/model"
	"strings"
)

// AnswerSubmission 一次提交的载荷：单选题用选项ID，实操题用自由文本
type AnswerSubmission struct {
	SelectedOptionID *uint
	Text             string
}

// AnswerMatcher 实操题(performance_based)的判定规则。
// 返回是否正确及 [0,1] 的部分得分比例，核心不关心判定的具体实现。
type AnswerMatcher interface {
	Evaluate(question *model.Question, submitted string) (correct bool, credit float64)
}

// TextAnswerMatcher 默认判定：去除首尾空格、忽略大小写后与标准答案比对，
// 命中给满分。需要更复杂的判定（关键词、部分得分）时替换此实现。
type TextAnswerMatcher struct{}

func (TextAnswerMatcher) Evaluate(question *model.Question, submitted string) (bool, float64) {
	if normalizeAnswer(submitted) == "" {
		return false, 0
	}
	if normalizeAnswer(submitted) == normalizeAnswer(question.AnswerText) {
		return true, 1
	}
	return false, 0
}

func normalizeAnswer(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

// Grader 评分引擎。纯函数，不读写任何会话状态。
type Grader struct {
	Matcher AnswerMatcher
}

func NewGrader(matcher AnswerMatcher) *Grader {
	if matcher == nil {
		matcher = TextAnswerMatcher{}
	}
	return &Grader{Matcher: matcher}
}

// Grade 对照题目的正确性判据给一次提交评分
func (g *Grader) Grade(question *model.Question, submission AnswerSubmission) (bool, float64) {
	switch question.Type {
	case model.PerformanceBased:
		correct, credit := g.Matcher.Evaluate(question, submission.Text)
		if credit < 0 {
			credit = 0
		} else if credit > 1 {
			credit = 1
		}
		return correct, float64(question.Points) * credit
	default: // single_choice
		correctOption := question.CorrectOption()
		if correctOption == nil || submission.SelectedOptionID == nil {
			return false, 0
		}
		if *submission.SelectedOptionID != correctOption.ID {
			return false, 0
		}
		return true, float64(question.Points)
	}
}
