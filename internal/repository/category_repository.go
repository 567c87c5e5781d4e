package repository

import (
	"certprep_backend/internal/model"

	"gorm.io/gorm"
)

type CategoryRepository struct {
	DB *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{DB: db}
}

// ListOrdered 按名称字母序返回所有分类
func (r *CategoryRepository) ListOrdered() ([]model.Category, error) {
	var categories []model.Category
	err := r.DB.Order("name ASC").Find(&categories).Error
	return categories, err
}

func (r *CategoryRepository) FindByIDs(ids []uint) ([]model.Category, error) {
	var categories []model.Category
	err := r.DB.Where("id IN ?", ids).Find(&categories).Error
	return categories, err
}

func (r *CategoryRepository) FindByID(id uint) (*model.Category, error) {
	var category model.Category
	err := r.DB.First(&category, id).Error
	if err != nil {
		return nil, err
	}
	return &category, nil
}
