package sqlite

import (
	"EvidenceVault/internal/cli/model"
	"EvidenceVault/internal/cli/repo"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	_ "modernc.org/sqlite"
)

// ReceiptRepositorySQLite — квитанции о загрузках в локальной БД SQLite.
type ReceiptRepositorySQLite struct {
	db    *sql.DB
	login string
}

var _ repo.ReceiptRepository = (*ReceiptRepositorySQLite)(nil)

var loginRe = regexp.MustCompile(`^[A-Za-z0-9._@-]+$`)

// OpenForUser открывает (и создаёт при необходимости) файл БД для указанного логина
// и возвращает репозиторий. Вторым значением возвращается путь к БД.
// Пустой base берётся из CLIENT_DB_PATH, затем из каталога настроек пользователя.
func OpenForUser(base, login string) (*ReceiptRepositorySQLite, string, error) {
	if login == "" {
		return nil, "", errors.New("empty login for user store")
	}
	if !loginRe.MatchString(login) {
		return nil, "", fmt.Errorf("login %q cannot be used as a directory name", login)
	}
	if base == "" {
		base = os.Getenv("CLIENT_DB_PATH")
	}
	if base == "" {
		cfgDir, err := os.UserConfigDir()
		if err != nil {
			return nil, "", err
		}
		base = filepath.Join(cfgDir, "EvidenceVault", "users")
	}
	dir := filepath.Join(base, login)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, "", err
	}
	dbPath := filepath.Join(dir, "client.sqlite")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, "", err
	}
	return &ReceiptRepositorySQLite{db: db, login: login}, dbPath, nil
}

// Close закрывает соединение с БД.
func (r *ReceiptRepositorySQLite) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// Migrate гарантирует наличие необходимых таблиц/индексов.
func (r *ReceiptRepositorySQLite) Migrate() error {
	return applyMigrations(r.db)
}

// Save добавляет квитанцию или заменяет существующую с тем же ID.
func (r *ReceiptRepositorySQLite) Save(rc model.Receipt) error {
	if rc.ID == "" {
		return errors.New("receipt id is required")
	}
	_, err := r.db.Exec(`INSERT INTO receipts(
        id, name, case_ref, content_digest, size_bytes, source_path, ingested_at
    ) VALUES(?, ?, ?, ?, ?, ?, ?)
    ON CONFLICT(id) DO UPDATE SET
        name = excluded.name,
        case_ref = excluded.case_ref,
        content_digest = excluded.content_digest,
        size_bytes = excluded.size_bytes,
        source_path = excluded.source_path,
        ingested_at = excluded.ingested_at`,
		rc.ID, rc.Name, rc.CaseRef, rc.ContentDigest, rc.SizeBytes, rc.SourcePath, rc.IngestedAt.UTC().UnixNano(),
	)
	return err
}

const receiptColumns = `id, name, case_ref, content_digest, size_bytes, source_path, ingested_at, verified_at, verified_intact`

type scanner interface {
	Scan(dest ...any) error
}

func scanReceipt(s scanner) (model.Receipt, error) {
	var (
		rc         model.Receipt
		ingested   int64
		verifiedAt sql.NullInt64
		intact     sql.NullBool
	)
	if err := s.Scan(&rc.ID, &rc.Name, &rc.CaseRef, &rc.ContentDigest, &rc.SizeBytes, &rc.SourcePath, &ingested, &verifiedAt, &intact); err != nil {
		return rc, err
	}
	rc.IngestedAt = time.Unix(0, ingested).UTC()
	if verifiedAt.Valid {
		t := time.Unix(0, verifiedAt.Int64).UTC()
		rc.VerifiedAt = &t
	}
	if intact.Valid {
		v := intact.Bool
		rc.VerifiedIntact = &v
	}
	return rc, nil
}

// Get возвращает квитанцию по ID или (nil, nil), если её нет.
func (r *ReceiptRepositorySQLite) Get(id string) (*model.Receipt, error) {
	row := r.db.QueryRow(`SELECT `+receiptColumns+` FROM receipts WHERE id = ?`, id)
	rc, err := scanReceipt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

// List возвращает все квитанции, новые первыми.
func (r *ReceiptRepositorySQLite) List() ([]model.Receipt, error) {
	rows, err := r.db.Query(`SELECT ` + receiptColumns + ` FROM receipts ORDER BY ingested_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []model.Receipt
	for rows.Next() {
		rc, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rc)
	}
	return res, rows.Err()
}

// MarkVerified запоминает результат последней проверки целостности.
func (r *ReceiptRepositorySQLite) MarkVerified(id string, intact bool, at time.Time) error {
	_, err := r.db.Exec(`UPDATE receipts SET verified_at = ?, verified_intact = ? WHERE id = ?`,
		at.UTC().UnixNano(), intact, id)
	return err
}

// Delete удаляет квитанцию; отсутствие записи ошибкой не считается.
func (r *ReceiptRepositorySQLite) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM receipts WHERE id = ?`, id)
	return err
}
