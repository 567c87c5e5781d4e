package model

import "time"

// AnswerRecord 学习者对会话内某一题的作答记录。
// (session_id, question_id) 唯一，重复提交按 upsert 覆盖，完成后不再变更。
// swagger:model AnswerRecord
type AnswerRecord struct {
	UUIDBase
	SessionID        string    `gorm:"uniqueIndex:idx_answer_session_question;type:varchar(36);not null" json:"sessionId"`
	QuestionID       uint      `gorm:"uniqueIndex:idx_answer_session_question;type:bigint unsigned;not null" json:"questionId"`
	SelectedOptionID *uint     `gorm:"type:bigint unsigned" json:"selectedOptionId,omitempty"` // single_choice
	UserAnswer       string    `gorm:"type:text" json:"userAnswer,omitempty"`                  // performance_based 自由文本
	IsCorrect        bool      `gorm:"default:false" json:"isCorrect"`
	PointsEarned     float64   `gorm:"default:0" json:"pointsEarned"`
	TimeSpentSeconds int       `gorm:"default:0" json:"timeSpentSeconds"`
	SubmittedAt      time.Time `json:"submittedAt"`
}

func (AnswerRecord) TableName() string {
	return "answer_records"
}
