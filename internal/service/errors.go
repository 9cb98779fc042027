package service

import (
	"EvidenceVault/internal/crypto"
	"errors"
	"fmt"
)

var (
	// ErrLoginTaken — логин уже занят.
	ErrLoginTaken = errors.New("login already taken")
	// ErrInvalidCredentials — неверный логин или пароль.
	ErrInvalidCredentials = errors.New("invalid login or password")
	// ErrUnknownOwner — внешний идентификатор не сопоставлен ни одному пользователю.
	ErrUnknownOwner = errors.New("unknown owner identity")
	// ErrNotFound — улики с таким ID нет.
	ErrNotFound = errors.New("evidence not found")
	// ErrForbidden — улика существует, но принадлежит другому владельцу.
	ErrForbidden = errors.New("evidence belongs to another owner")
	// ErrCorruptedEvidence — при выдаче улики не прошла проверка тега.
	ErrCorruptedEvidence = errors.New("evidence is corrupted or has been tampered with")

	ErrIntegrity     = crypto.ErrIntegrity
	ErrConfiguration = crypto.ErrConfiguration
)

// ValidationError — некорректный ввод на границе (4xx).
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

func newValidationError(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation сообщает, является ли err ошибкой валидации.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// EvidenceError добавляет к ошибке имя операции и ID улики.
// Ключи, nonce и открытые данные в сообщение не попадают.
type EvidenceError struct {
	Op     string
	ItemID string
	Err    error
}

func (e *EvidenceError) Error() string {
	if e.ItemID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.ItemID, e.Err)
}

func (e *EvidenceError) Unwrap() error { return e.Err }

func opError(op, itemID string, err error) error {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return err
	}
	return &EvidenceError{Op: op, ItemID: itemID, Err: err}
}
