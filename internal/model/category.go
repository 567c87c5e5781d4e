package model

// Category 题库分类，只读参考数据
// swagger:model Category
type Category struct {
	BaseModel
	Name        string `gorm:"size:100;unique;not null" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	Color       string `gorm:"size:20;default:'#3b82f6'" json:"color"`
}

func (Category) TableName() string {
	return "categories"
}
