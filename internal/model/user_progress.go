package model

import "time"

// UserProgress 每个(学习者, 分类)一行的累计统计。
// 只由进度聚合器在会话完成时更新，作答过程中不变；
// average_score 采用加权滚动均值，更新是 O(1) 的，不回放历史。
// swagger:model UserProgress
type UserProgress struct {
	BaseModel
	UserID             uint      `gorm:"uniqueIndex:idx_progress_user_category;type:bigint unsigned;not null" json:"userId"`
	CategoryID         uint      `gorm:"uniqueIndex:idx_progress_user_category;type:bigint unsigned;not null" json:"categoryId"`
	Category           *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	QuestionsAttempted int       `gorm:"default:0" json:"questionsAttempted"`
	QuestionsCorrect   int       `gorm:"default:0" json:"questionsCorrect"`
	AverageScore       float64   `gorm:"default:0" json:"averageScore"` // 百分比
	LastStudiedAt      time.Time `json:"lastStudiedAt"`
}

func (UserProgress) TableName() string {
	return "user_progress"
}
