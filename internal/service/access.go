package service

import (
	"EvidenceVault/internal/model"
	"EvidenceVault/internal/repo"
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// AccessGate сопоставляет внешний идентификатор вызывающего с владельцем
// и проверяет право владения перед любой операцией хранилища.
type AccessGate struct {
	users repo.UserRepository
}

func NewAccessGate(users repo.UserRepository) *AccessGate {
	return &AccessGate{users: users}
}

// ResolveOwner возвращает внутренний ID владельца по внешнему идентификатору.
func (g *AccessGate) ResolveOwner(ctx context.Context, externalID string) (int64, error) {
	if strings.TrimSpace(externalID) == "" {
		return 0, newValidationError("missing owner identity")
	}
	u, err := g.users.GetUserByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrUnknownOwner
		}
		return 0, err
	}
	if u == nil {
		return 0, ErrUnknownOwner
	}
	return u.ID, nil
}

// Authorize проверяет, что улика принадлежит владельцу.
func (g *AccessGate) Authorize(ownerID int64, ev *model.Evidence) error {
	if ev == nil || ev.OwnerID != ownerID {
		return ErrForbidden
	}
	return nil
}
