package repository

import (
	"certprep_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

// ProgressTx 一次进度折算事务内可用的操作。聚合器在单个事务边界内
// 完成所有分类行和全局档案的更新，部分失败整体回滚。
type ProgressTx interface {
	// ClaimSession 把会话标记为已折算，返回 false 表示已被处理过
	ClaimSession(sessionID string) (bool, error)
	// TotalAttempted 该学习者所有分类的累计答题数（更新前的旧值）
	TotalAttempted(userID uint) (int, error)
	// LoadOrCreate 惰性创建 (user, category) 的进度行
	LoadOrCreate(userID, categoryID uint, now time.Time) (*model.UserProgress, error)
	Save(progress *model.UserProgress) error
	// ProfileAverage 学习者当前的全局平均分（更新前的旧值）
	ProfileAverage(userID uint) (float64, error)
	// UpdateProfileAggregates 全局档案：完成次数 +1，平均分覆盖为新值
	UpdateProfileAggregates(userID uint, newAverage float64) error
}

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

func (r *ProgressRepository) InTx(fn func(tx ProgressTx) error) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		return fn(&progressTx{tx: tx})
	})
}

func (r *ProgressRepository) ListByUser(userID uint) ([]model.UserProgress, error) {
	var rows []model.UserProgress
	err := r.DB.Preload("Category").
		Where("user_id = ?", userID).
		Order("category_id ASC").
		Find(&rows).Error
	return rows, err
}

type progressTx struct {
	tx *gorm.DB
}

func (t *progressTx) ClaimSession(sessionID string) (bool, error) {
	res := t.tx.Model(&model.TestSession{}).
		Where("id = ? AND progress_applied = ?", sessionID, false).
		Update("progress_applied", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (t *progressTx) TotalAttempted(userID uint) (int, error) {
	var total int64
	err := t.tx.Model(&model.UserProgress{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(questions_attempted), 0)").
		Scan(&total).Error
	return int(total), err
}

func (t *progressTx) LoadOrCreate(userID, categoryID uint, now time.Time) (*model.UserProgress, error) {
	var progress model.UserProgress
	err := t.tx.Where(model.UserProgress{UserID: userID, CategoryID: categoryID}).
		Attrs(model.UserProgress{LastStudiedAt: now}).
		FirstOrCreate(&progress).Error
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

func (t *progressTx) Save(progress *model.UserProgress) error {
	return t.tx.Save(progress).Error
}

func (t *progressTx) ProfileAverage(userID uint) (float64, error) {
	var user model.User
	if err := t.tx.Select("average_score").First(&user, userID).Error; err != nil {
		return 0, err
	}
	return user.AverageScore, nil
}

func (t *progressTx) UpdateProfileAggregates(userID uint, newAverage float64) error {
	return t.tx.Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"total_tests_taken": gorm.Expr("total_tests_taken + 1"),
			"average_score":     newAverage,
		}).Error
}
