package database

import (
	"certprep_backend/internal/config"
	"certprep_backend/internal/model"
	"fmt"
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})

	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	err = db.AutoMigrate(
		&model.User{},
		&model.Category{},
		&model.Question{},
		&model.QuestionOption{},
		&model.TestSession{},
		&model.SessionQuestion{},
		&model.AnswerRecord{},
		&model.UserProgress{},
	)

	if err != nil {
		return nil, err
	}

	log.Println("Database migration completed")

	// 默认分类（题库内容由外部内容管理维护，这里只保证参考数据存在）
	var catCount int64
	db.Model(&model.Category{}).Count(&catCount)
	if catCount == 0 {
		defaultCategories := []model.Category{
			{Name: "Cryptography", Description: "加密算法、PKI 与证书管理", Color: "#8b5cf6"},
			{Name: "Identity and Access Management", Description: "认证、授权与账户管理", Color: "#3b82f6"},
			{Name: "Network Security", Description: "网络设备、协议与边界防护", Color: "#10b981"},
			{Name: "Risk Management", Description: "风险评估、策略与合规", Color: "#f59e0b"},
			{Name: "Threats and Vulnerabilities", Description: "常见攻击类型与漏洞分析", Color: "#ef4444"},
		}
		for _, c := range defaultCategories {
			db.Create(&c)
		}
		log.Println("Seeded default categories")
	}

	return db, nil
}
