package repository

import (
	"certprep_backend/internal/model"

	"gorm.io/gorm"
)

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

// FindActiveByCategoryIDs 取指定分类下所有启用的题目，带选项
func (r *QuestionRepository) FindActiveByCategoryIDs(categoryIDs []uint) ([]model.Question, error) {
	var questions []model.Question
	err := r.DB.Preload("Options").
		Where("category_id IN ? AND is_active = ?", categoryIDs, true).
		Order("id ASC").
		Find(&questions).Error
	return questions, err
}

func (r *QuestionRepository) FindByIDs(ids []uint) ([]model.Question, error) {
	var questions []model.Question
	err := r.DB.Preload("Options").Where("id IN ?", ids).Find(&questions).Error
	return questions, err
}

func (r *QuestionRepository) FindByID(id uint) (*model.Question, error) {
	var question model.Question
	err := r.DB.Preload("Options").First(&question, id).Error
	if err != nil {
		return nil, err
	}
	return &question, nil
}
