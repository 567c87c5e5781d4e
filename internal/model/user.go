package model

import (
	"time"
)

type UserRole string

const (
	Student UserRole = "student"
	Admin   UserRole = "admin"
)

// swagger:model User
type User struct {
	BaseModel
	Name            string    `gorm:"size:100;not null" json:"name"`
	Email           string    `gorm:"size:100;unique;not null" json:"email"`
	Password        string    `gorm:"size:100;not null" json:"-"`
	Role            UserRole  `gorm:"type:enum('student','admin');default:'student'" json:"role"`
	Avatar          string    `gorm:"size:255" json:"avatar"`
	TotalTestsTaken int       `gorm:"default:0" json:"totalTestsTaken"` // 累计完成的测试次数
	AverageScore    float64   `gorm:"default:0" json:"averageScore"`    // 全局滚动平均正确率（百分比）
	Disabled        bool      `gorm:"default:false" json:"disabled"`
	LastLogin       time.Time `gorm:"default:CURRENT_TIMESTAMP(3)" json:"lastLogin"`
	LastSeen        time.Time `gorm:"default:CURRENT_TIMESTAMP(3)" json:"lastSeen"`
}

func (User) TableName() string {
	return "users"
}
