package data

import (
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"

	"contextrelay/cmd/chat-service/internal/conf"
	"contextrelay/pkg/database"
)

// NewDB 创建数据库连接并迁移会话表
func NewDB(c conf.Database, logger log.Logger) (*gorm.DB, error) {
	db, err := database.NewDB(&database.Config{
		Driver:   "postgres",
		Source:   c.Source,
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		Database: c.Name,
		SSLMode:  c.SSLMode,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if err := autoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return db, nil
}

// autoMigrate 自动迁移数据库表
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&ChatSessionDO{})
}
