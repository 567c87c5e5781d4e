package repository

import (
	"certprep_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type SessionRepository struct {
	DB *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{DB: db}
}

// CreateWithQuestions 在一个事务里落库会话和它的题目顺序快照。
// 任一步失败整体回滚，不会留下没有题目的会话。
func (r *SessionRepository) CreateWithQuestions(session *model.TestSession, questionIDs []uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(session).Error; err != nil {
			return err
		}
		for i, qid := range questionIDs {
			sq := model.SessionQuestion{
				SessionID:  session.ID,
				QuestionID: qid,
				Position:   i,
			}
			if err := tx.Create(&sq).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SessionRepository) FindByID(id string) (*model.TestSession, error) {
	var session model.TestSession
	err := r.DB.Where("id = ?", id).First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// FindQuestionIDs 按冻结时的顺序返回会话的题目ID
func (r *SessionRepository) FindQuestionIDs(sessionID string) ([]uint, error) {
	var sqs []model.SessionQuestion
	err := r.DB.Where("session_id = ?", sessionID).Order("position ASC").Find(&sqs).Error
	if err != nil {
		return nil, err
	}
	ids := make([]uint, len(sqs))
	for i, sq := range sqs {
		ids[i] = sq.QuestionID
	}
	return ids, nil
}

func (r *SessionRepository) ListByUser(userID uint, offset, limit int) ([]model.TestSession, error) {
	var sessions []model.TestSession
	q := r.DB.Where("user_id = ?", userID).Order("created_at DESC")
	if offset > 0 {
		q = q.Offset(offset)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&sessions).Error
	return sessions, err
}

func (r *SessionRepository) CountByUser(userID uint) (int64, error) {
	var total int64
	err := r.DB.Model(&model.TestSession{}).Where("user_id = ?", userID).Count(&total).Error
	return total, err
}

// BestPercentage 用户历史最高得分率，没有完成过的会话时为0
func (r *SessionRepository) BestPercentage(userID uint) (float64, error) {
	var best float64
	err := r.DB.Model(&model.TestSession{}).
		Where("user_id = ? AND is_completed = ?", userID, true).
		Select("COALESCE(MAX(percentage), 0)").
		Scan(&best).Error
	return best, err
}

func (r *SessionRepository) UpdateStatus(id string, status model.SessionStatus) error {
	return r.DB.Model(&model.TestSession{}).
		Where("id = ? AND is_completed = ?", id, false).
		Update("status", status).
		Error
}

// MarkCompleted 原子地把会话置为完成态。返回 false 表示别处已经完成过，
// 调用方据此保证聚合只触发一次（并发重试下的幂等保障）。
func (r *SessionRepository) MarkCompleted(id string, completedAt time.Time, score, maxScore, percentage float64) (bool, error) {
	res := r.DB.Model(&model.TestSession{}).
		Where("id = ? AND is_completed = ?", id, false).
		Updates(map[string]interface{}{
			"is_completed": true,
			"status":       model.SessionCompleted,
			"completed_at": completedAt,
			"score":        score,
			"max_score":    maxScore,
			"percentage":   percentage,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// FindPendingAggregation 已完成但进度尚未折算的会话，供对账任务重试
func (r *SessionRepository) FindPendingAggregation(limit int) ([]model.TestSession, error) {
	var sessions []model.TestSession
	err := r.DB.Where("is_completed = ? AND progress_applied = ?", true, false).
		Order("completed_at ASC").
		Limit(limit).
		Find(&sessions).Error
	return sessions, err
}
