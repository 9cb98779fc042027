package repo

import (
	"EvidenceVault/internal/cli/model"
	"time"
)

// TokenStore описывает абстракцию хранилища auth-токена на клиенте.
type TokenStore interface {
	Save(token string) error
	Load() (string, error)
}

// UserContextStore абстракция для хранения контекста пользователя (последний логин).
type UserContextStore interface {
	SaveLogin(login string) error
	LoadLogin() (string, error)
}

// AuthStore — токен и активный логин вместе.
type AuthStore interface {
	TokenStore
	UserContextStore
}

// ReceiptRepository — локальные квитанции о загрузках текущего пользователя.
type ReceiptRepository interface {
	Save(r model.Receipt) error
	// Get возвращает (nil, nil), если квитанции нет.
	Get(id string) (*model.Receipt, error)
	List() ([]model.Receipt, error)
	MarkVerified(id string, intact bool, at time.Time) error
	Delete(id string) error
}
