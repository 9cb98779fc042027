package handlers_test

import (
	"EvidenceVault/internal/config"
	"EvidenceVault/internal/crypto"
	"EvidenceVault/internal/handlers"
	"EvidenceVault/internal/metrics"
	"EvidenceVault/internal/middleware"
	"EvidenceVault/internal/model"
	"EvidenceVault/internal/repo"
	"EvidenceVault/internal/service"
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"
)

const testAuthSecret = "test-secret"

type evidenceEnv struct {
	router http.Handler
	db     *gorm.DB
	cfg    *config.Config
}

// newEvidenceEnv собирает роутер поверх in-memory SQLite с настоящими сервисами.
func newEvidenceEnv(t *testing.T) *evidenceEnv {
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

	cfg := &config.Config{AuthSecret: testAuthSecret, EvidenceMaxSizeMB: 1}
	logger := zap.NewNop().Sugar()
	users := repo.NewUserRepository(db)
	keys := crypto.NewKeyDeriver("handlers-test-secret-0123456789", crypto.MinIterations)
	m := metrics.New()
	evidenceSvc := service.NewEvidenceService(repo.NewEvidenceRepository(db), service.NewAccessGate(users), keys, logger,
		service.WithMetrics(m), service.WithMaxBytes(cfg.MaxEvidenceBytes()))

	h := handlers.NewHandler(service.NewUserService(users), evidenceSvc, m, logger, cfg)
	return &evidenceEnv{router: h.Router, db: db, cfg: cfg}
}

// mkOwner создаёт пользователя и возвращает его внешний идентификатор.
func (e *evidenceEnv) mkOwner(t *testing.T, login string) string {
	t.Helper()
	u := &model.User{Login: login, ExternalID: uuid.NewString(), Password: "hash"}
	require.NoError(t, e.db.Create(u).Error)
	return u.ExternalID
}

func (e *evidenceEnv) do(t *testing.T, req *http.Request, owner string) *httptest.ResponseRecorder {
	t.Helper()
	if owner != "" {
		addAuthCookie(t, req, owner, testAuthSecret)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func addAuthCookie(t *testing.T, req *http.Request, userID string, secret string) {
	t.Helper()
	rr := httptest.NewRecorder()
	require.NoError(t, middleware.SetLoginCookie(rr, userID, secret))
	for _, c := range rr.Result().Cookies() {
		req.AddCookie(c)
	}
}

type uploadForm struct {
	filename    string
	contentType string
	data        []byte
	fields      map[string]string
}

// newUploadRequest собирает multipart-запрос на загрузку улики.
func newUploadRequest(t *testing.T, f uploadForm) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range f.fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if f.filename != "" {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, f.filename))
		if f.contentType != "" {
			hdr.Set("Content-Type", f.contentType)
		}
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/evidence", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
