package model

import "time"

type SessionStatus string

const (
	SessionOpen      SessionStatus = "open"      // 已创建，尚未作答
	SessionAnswering SessionStatus = "answering" // 已收到至少一次提交
	SessionCompleted SessionStatus = "completed" // 终态，不可再变更
)

// TestSession 一次限时练习测试。题目顺序在创建时冻结，之后不再变化。
// 会话永不删除，作为历史记录保留；未完成的会话不会进入进度统计。
// swagger:model TestSession
type TestSession struct {
	UUIDBase
	UserID           uint          `gorm:"index;type:bigint unsigned;not null" json:"userId"`
	SessionName      string        `gorm:"size:255" json:"sessionName"`
	TotalQuestions   int           `gorm:"default:0" json:"totalQuestions"` // 实际抽到的题数
	TimeLimitMinutes int           `gorm:"default:0" json:"timeLimitMinutes"`
	Status           SessionStatus `gorm:"type:enum('open','answering','completed');default:'open'" json:"status"`
	IsPartial        bool          `gorm:"default:false" json:"isPartial"` // 题库不足，抽到的题数少于请求数
	StartedAt        time.Time     `json:"startedAt"`
	CompletedAt      *time.Time    `json:"completedAt,omitempty"`
	IsCompleted      bool          `gorm:"default:false;index" json:"isCompleted"`
	Score            float64       `gorm:"default:0" json:"score"`      // 得分合计
	MaxScore         float64       `gorm:"default:0" json:"maxScore"`   // 会话内所有题目分值合计
	Percentage       float64       `gorm:"default:0" json:"percentage"` // 0-100，两位小数
	ProgressApplied  bool          `gorm:"default:false;index" json:"-"` // 进度统计是否已折算
}

func (TestSession) TableName() string {
	return "test_sessions"
}

// ExpiresAt 超时时刻，按分钟限时从开始时间推算
func (s *TestSession) ExpiresAt() time.Time {
	return s.StartedAt.Add(time.Duration(s.TimeLimitMinutes) * time.Minute)
}

// SessionQuestion 会话的题目顺序快照，position 从 0 开始
type SessionQuestion struct {
	ID         uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID  string `gorm:"uniqueIndex:idx_session_question_pos;type:varchar(36);not null" json:"sessionId"`
	QuestionID uint   `gorm:"uniqueIndex:idx_session_question_pos;type:bigint unsigned;not null" json:"questionId"`
	Position   int    `gorm:"not null" json:"position"`
}

func (SessionQuestion) TableName() string {
	return "session_questions"
}
