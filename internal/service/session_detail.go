package service

import (
	"certprep_backend/internal/model"
	"time"
)

// OptionView 选项视图，正确性标记不在作答过程中外泄
type OptionView struct {
	ID          uint    `json:"id"`
	OptionText  string  `json:"optionText"`
	Explanation *string `json:"explanation,omitempty"` // completed 后才填充
}

type SessionQuestionView struct {
	ID               uint               `json:"id"`
	Position         int                `json:"position"`
	CategoryID       uint               `json:"categoryId"`
	Type             model.QuestionType `json:"type"`
	QuestionText     string             `json:"questionText"`
	ImageURL         *string            `json:"imageUrl,omitempty"`
	Difficulty       model.Difficulty   `json:"difficulty"`
	Points           int                `json:"points"`
	TimeLimitSeconds int                `json:"timeLimitSeconds"`
	Options          []OptionView       `json:"options,omitempty"`

	// 作答回显，恢复客户端状态用
	SelectedOptionID *uint   `json:"selectedOptionId,omitempty"`
	UserAnswer       *string `json:"userAnswer,omitempty"`

	// completed 后才填充
	IsCorrect       *bool    `json:"isCorrect,omitempty"`
	PointsEarned    *float64 `json:"pointsEarned,omitempty"`
	CorrectOptionID *uint    `json:"correctOptionId,omitempty"`
	Explanation     *string  `json:"explanation,omitempty"`
}

type SessionDetail struct {
	ID               string                `json:"id"`
	SessionName      string                `json:"sessionName"`
	Status           model.SessionStatus   `json:"status"`
	TotalQuestions   int                   `json:"totalQuestions"`
	TimeLimitMinutes int                   `json:"timeLimitMinutes"`
	IsPartial        bool                  `json:"isPartial"`
	StartedAt        time.Time             `json:"startedAt"`
	CompletedAt      *time.Time            `json:"completedAt,omitempty"`
	RemainingSeconds int                   `json:"remainingSeconds"`
	Score            *float64              `json:"score,omitempty"`
	MaxScore         *float64              `json:"maxScore,omitempty"`
	Percentage       *float64              `json:"percentage,omitempty"`
	Questions        []SessionQuestionView `json:"questions"`
}

// GetSessionDetail 组装答题/回顾界面需要的会话视图。
// 进行中只返回题面和已选答案；完成后追加判定结果、标准答案和解析。
func (s *SessionService) GetSessionDetail(userID uint, sessionID string) (*SessionDetail, error) {
	session, err := s.loadOwned(userID, sessionID)
	if err != nil {
		return nil, err
	}

	questionIDs, err := s.Sessions.FindQuestionIDs(sessionID)
	if err != nil {
		return nil, err
	}
	questions, err := s.Questions.FindByIDs(questionIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]*model.Question, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}

	answers, err := s.Answers.ListBySession(sessionID)
	if err != nil {
		return nil, err
	}
	answerByQuestion := make(map[uint]*model.AnswerRecord, len(answers))
	for i := range answers {
		answerByQuestion[answers[i].QuestionID] = &answers[i]
	}

	remaining := 0
	if !session.IsCompleted {
		if d := session.ExpiresAt().Sub(s.Clock.Now()); d > 0 {
			remaining = int(d.Seconds())
		}
	}

	views := make([]SessionQuestionView, 0, len(questionIDs))
	for pos, qid := range questionIDs {
		q, ok := byID[qid]
		if !ok {
			continue
		}

		view := SessionQuestionView{
			ID:               q.ID,
			Position:         pos,
			CategoryID:       q.CategoryID,
			Type:             q.Type,
			QuestionText:     q.QuestionText,
			ImageURL:         q.ImageURL,
			Difficulty:       q.Difficulty,
			Points:           q.Points,
			TimeLimitSeconds: q.TimeLimitSeconds,
		}
		for _, opt := range q.Options {
			ov := OptionView{ID: opt.ID, OptionText: opt.OptionText}
			if session.IsCompleted {
				ov.Explanation = opt.Explanation
			}
			view.Options = append(view.Options, ov)
		}

		if rec, ok := answerByQuestion[qid]; ok {
			view.SelectedOptionID = rec.SelectedOptionID
			if rec.UserAnswer != "" {
				ua := rec.UserAnswer
				view.UserAnswer = &ua
			}
			if session.IsCompleted {
				isCorrect := rec.IsCorrect
				earned := rec.PointsEarned
				view.IsCorrect = &isCorrect
				view.PointsEarned = &earned
			}
		}

		if session.IsCompleted {
			if co := q.CorrectOption(); co != nil {
				id := co.ID
				view.CorrectOptionID = &id
			}
			if q.Explanation != "" {
				expl := q.Explanation
				view.Explanation = &expl
			}
		}

		views = append(views, view)
	}

	detail := &SessionDetail{
		ID:               session.ID,
		SessionName:      session.SessionName,
		Status:           session.Status,
		TotalQuestions:   session.TotalQuestions,
		TimeLimitMinutes: session.TimeLimitMinutes,
		IsPartial:        session.IsPartial,
		StartedAt:        session.StartedAt,
		CompletedAt:      session.CompletedAt,
		RemainingSeconds: remaining,
		Questions:        views,
	}
	if session.IsCompleted {
		score := session.Score
		maxScore := session.MaxScore
		pct := session.Percentage
		detail.Score = &score
		detail.MaxScore = &maxScore
		detail.Percentage = &pct
	}

	return detail, nil
}
