package model

import "time"

// User — серверная модель пользователя.
type User struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	ExternalID string `gorm:"not null;uniqueIndex;size:64"` // внешний идентификатор, передаётся в токене
	Login      string `gorm:"not null;uniqueIndex"`
	Password   string `gorm:"not null"` // bcrypt-хеш

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
