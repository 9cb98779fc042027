package bootstrap

import (
	"fmt"

	"EvidenceVault/internal/cli/repo"
	fsrepo "EvidenceVault/internal/cli/repo/fs"
	reposqlite "EvidenceVault/internal/cli/repo/sqlite"
)

// OpenReceiptRepo открывает локальные квитанции для текущего пользователя,
// выполняет миграции и возвращает (repo, cleanup, error).
// cleanup необходимо вызвать после окончания работы с репозиторием, чтобы закрыть соединение с БД.
func OpenReceiptRepo(baseDir string) (repo.ReceiptRepository, func() error, error) {
	login, err := (fsrepo.AuthFSStore{}).LoadLogin()
	if err != nil {
		return nil, nil, fmt.Errorf("нет активного пользователя: выполните login/register: %w", err)
	}
	return OpenReceiptRepoFor(baseDir, login)
}

// OpenReceiptRepoFor открывает квитанции для указанного логина.
func OpenReceiptRepoFor(baseDir, login string) (repo.ReceiptRepository, func() error, error) {
	r, _, err := reposqlite.OpenForUser(baseDir, login)
	if err != nil {
		return nil, nil, fmt.Errorf("open user db: %w", err)
	}
	if err := r.Migrate(); err != nil {
		_ = r.Close()
		return nil, nil, fmt.Errorf("migrate user db: %w", err)
	}
	cleanup := func() error { return r.Close() }
	return r, cleanup, nil
}
