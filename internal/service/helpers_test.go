package service

import (
	"EvidenceVault/internal/crypto"
	"EvidenceVault/internal/metrics"
	"EvidenceVault/internal/model"
	"EvidenceVault/internal/repo"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"
)

const testSecret = "test-evidence-secret-0123456789"

type testEnv struct {
	db      *gorm.DB
	svc     *EvidenceService
	metrics *metrics.Metrics
}

// newTestEnv поднимает сервис поверх in-memory SQLite.
func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(gormsqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, repo.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	m := metrics.New()
	gate := NewAccessGate(repo.NewUserRepository(db))
	keys := crypto.NewKeyDeriver(testSecret, crypto.MinIterations)
	opts = append([]Option{WithMetrics(m)}, opts...)
	svc := NewEvidenceService(repo.NewEvidenceRepository(db), gate, keys, nil, opts...)
	return &testEnv{db: db, svc: svc, metrics: m}
}

// mkOwner создаёт пользователя и возвращает его внешний идентификатор.
func (e *testEnv) mkOwner(t *testing.T, login string) string {
	t.Helper()
	u := &model.User{Login: login, ExternalID: uuid.NewString(), Password: "hash"}
	require.NoError(t, e.db.Create(u).Error)
	return u.ExternalID
}
