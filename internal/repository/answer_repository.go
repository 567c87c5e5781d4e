package repository

import (
	"certprep_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AnswerRepository struct {
	DB *gorm.DB
}

func NewAnswerRepository(db *gorm.DB) *AnswerRepository {
	return &AnswerRepository{DB: db}
}

// Upsert 以 (session_id, question_id) 为冲突键写入作答记录。
// 数据库层的 ON CONFLICT 保证并发提交同一题时不会丢更新，后写覆盖先写。
func (r *AnswerRepository) Upsert(record *model.AnswerRecord) error {
	if record.ID == "" {
		record.ID = model.GenerateUUID()
	}
	return r.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"selected_option_id", "user_answer", "is_correct",
			"points_earned", "time_spent_seconds", "submitted_at",
		}),
	}).Create(record).Error
}

func (r *AnswerRepository) ListBySession(sessionID string) ([]model.AnswerRecord, error) {
	var records []model.AnswerRecord
	err := r.DB.Where("session_id = ?", sessionID).Find(&records).Error
	return records, err
}
