package service

import (
	"EvidenceVault/internal/crypto"
	"EvidenceVault/internal/metrics"
	"EvidenceVault/internal/model"
	"EvidenceVault/internal/repo"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// IngestInput — данные новой улики.
type IngestInput struct {
	Owner       string // внешний идентификатор владельца
	Name        string
	MimeType    string
	Data        []byte
	Description string
	Tags        []string
	CaseRef     string
}

type RetrieveInput struct {
	Owner  string
	ItemID string
}

type VerifyInput struct {
	Owner  string
	ItemID string
}

type UpdateInput struct {
	Owner  string
	ItemID string
	Patch  model.MetadataPatch
}

type DeleteInput struct {
	Owner  string
	ItemID string
}

// Retrieved — расшифрованная улика.
type Retrieved struct {
	Data          []byte
	Name          string
	MimeType      string
	ContentDigest string
	IngestedAt    time.Time
}

// VerifyResult — результат проверки целостности.
type VerifyResult struct {
	ItemID        string
	Intact        bool
	StoredDigest  string
	CurrentDigest string // пусто, если расшифровка не удалась
	IngestedAt    time.Time
	Reason        string
}

// EvidenceService — точка входа во все операции хранилища улик.
// Состояния между вызовами нет: ключ выводится заново на каждую операцию.
type EvidenceService struct {
	repo     repo.EvidenceRepository
	gate     *AccessGate
	keys     *crypto.KeyDeriver
	logger   *zap.SugaredLogger
	metrics  *metrics.Metrics
	maxBytes int64
}

// Option настраивает EvidenceService.
type Option func(*EvidenceService)

// WithMetrics подключает счётчики Prometheus.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *EvidenceService) { s.metrics = m }
}

// WithMaxBytes задаёт предельный размер улики; 0 снимает ограничение.
func WithMaxBytes(n int64) Option {
	return func(s *EvidenceService) { s.maxBytes = n }
}

func NewEvidenceService(
	r repo.EvidenceRepository,
	gate *AccessGate,
	keys *crypto.KeyDeriver,
	logger *zap.SugaredLogger,
	opts ...Option,
) *EvidenceService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &EvidenceService{
		repo:     r,
		gate:     gate,
		keys:     keys,
		logger:   logger,
		maxBytes: DefaultMaxUploadMB << 20,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Ingest шифрует и сохраняет новую улику. При любой ошибке ничего не сохраняется.
func (s *EvidenceService) Ingest(ctx context.Context, in IngestInput) (*model.Evidence, error) {
	const op = "ingest"

	ownerID, err := s.gate.ResolveOwner(ctx, in.Owner)
	if err != nil {
		return nil, opError(op, "", err)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, newValidationError("missing file name")
	}
	if !AllowedMimeType(in.MimeType) {
		return nil, newValidationError("content type %q is not accepted", in.MimeType)
	}
	if s.maxBytes > 0 && int64(len(in.Data)) > s.maxBytes {
		return nil, newValidationError("payload of %d bytes exceeds limit of %d bytes", len(in.Data), s.maxBytes)
	}

	digest := crypto.Digest(in.Data)

	key, err := s.keys.DeriveKey(ownerID)
	if err != nil {
		return nil, opError(op, "", err)
	}
	sealed, err := crypto.Encrypt(in.Data, key)
	crypto.WipeKey(key)
	if err != nil {
		return nil, opError(op, "", err)
	}

	mimeType := NormalizeMimeType(in.MimeType)
	ev := &model.Evidence{
		OwnerID:       ownerID,
		Name:          name,
		MediaType:     model.MediaTypeFor(mimeType),
		MimeType:      mimeType,
		SizeBytes:     int64(len(in.Data)),
		Description:   in.Description,
		Tags:          cleanTags(in.Tags),
		CaseRef:       strings.TrimSpace(in.CaseRef),
		Ciphertext:    sealed.Ciphertext,
		Nonce:         sealed.Nonce,
		AuthTag:       sealed.AuthTag,
		ContentDigest: digest,
	}
	if err := s.repo.Create(ctx, ev); err != nil {
		return nil, opError(op, "", err)
	}

	s.metrics.Ingested()
	s.logger.Infow("evidence ingested",
		"item_id", ev.ID,
		"owner_id", ownerID,
		"media_type", ev.MediaType,
		"size_bytes", ev.SizeBytes,
	)
	return ev, nil
}

// List возвращает метаданные улик владельца без шифртекста.
func (s *EvidenceService) List(ctx context.Context, owner string) ([]model.Evidence, error) {
	ownerID, err := s.gate.ResolveOwner(ctx, owner)
	if err != nil {
		return nil, opError("list", "", err)
	}
	items, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, opError("list", "", err)
	}
	return items, nil
}

// Retrieve расшифровывает улику владельца.
func (s *EvidenceService) Retrieve(ctx context.Context, in RetrieveInput) (*Retrieved, error) {
	const op = "retrieve"

	meta, err := s.load(ctx, in.Owner, in.ItemID)
	if err != nil {
		return nil, opError(op, in.ItemID, err)
	}
	ev, err := s.sealed(ctx, meta.ID)
	if errors.Is(err, repo.ErrCiphertextMissing) {
		s.integrityFailure(op, meta.ID)
		return nil, opError(op, meta.ID, fmt.Errorf("%w: %w", ErrCorruptedEvidence, err))
	}
	if err != nil {
		return nil, opError(op, meta.ID, err)
	}

	data, err := s.open(ev)
	if err != nil {
		if errors.Is(err, crypto.ErrIntegrity) {
			s.integrityFailure(op, ev.ID)
			return nil, opError(op, ev.ID, fmt.Errorf("%w: %w", ErrCorruptedEvidence, err))
		}
		return nil, opError(op, ev.ID, err)
	}
	// тег совпал, но дайджест не сходится: запись подменена вместе с ключевыми полями
	if !crypto.EqualDigest(crypto.Digest(data), ev.ContentDigest) {
		s.integrityFailure(op, ev.ID)
		return nil, opError(op, ev.ID, ErrCorruptedEvidence)
	}

	s.metrics.Retrieved()
	return &Retrieved{
		Data:          data,
		Name:          ev.Name,
		MimeType:      ev.MimeType,
		ContentDigest: ev.ContentDigest,
		IngestedAt:    ev.IngestedAt,
	}, nil
}

// Verify проверяет, что улика не изменялась с момента загрузки.
// Нарушение целостности — результат проверки, а не ошибка.
func (s *EvidenceService) Verify(ctx context.Context, in VerifyInput) (*VerifyResult, error) {
	const op = "verify"

	meta, err := s.load(ctx, in.Owner, in.ItemID)
	if err != nil {
		return nil, opError(op, in.ItemID, err)
	}

	res := &VerifyResult{
		ItemID:       meta.ID,
		StoredDigest: meta.ContentDigest,
		IngestedAt:   meta.IngestedAt,
	}

	ev, err := s.sealed(ctx, meta.ID)
	if errors.Is(err, repo.ErrCiphertextMissing) {
		s.integrityFailure(op, meta.ID)
		res.Reason = "stored ciphertext missing"
		s.metrics.Verified(false)
		return res, nil
	}
	if err != nil {
		return nil, opError(op, meta.ID, err)
	}

	data, err := s.open(ev)
	switch {
	case errors.Is(err, crypto.ErrIntegrity):
		s.integrityFailure(op, ev.ID)
		res.Reason = "authentication tag mismatch"
	case err != nil:
		return nil, opError(op, ev.ID, err)
	default:
		res.CurrentDigest = crypto.Digest(data)
		res.Intact = crypto.EqualDigest(res.CurrentDigest, ev.ContentDigest)
		if !res.Intact {
			s.integrityFailure(op, ev.ID)
			res.Reason = "content digest mismatch"
		}
	}

	s.metrics.Verified(res.Intact)
	return res, nil
}

// UpdateMetadata меняет описательные поля; шифртекст и дайджест не затрагиваются.
func (s *EvidenceService) UpdateMetadata(ctx context.Context, in UpdateInput) (*model.Evidence, error) {
	const op = "update"

	if in.Patch.IsEmpty() {
		return nil, newValidationError("nothing to update")
	}
	if in.Patch.Name != nil && strings.TrimSpace(*in.Patch.Name) == "" {
		return nil, newValidationError("name must not be empty")
	}

	ev, err := s.load(ctx, in.Owner, in.ItemID)
	if err != nil {
		return nil, opError(op, in.ItemID, err)
	}

	patch := in.Patch
	if patch.Name != nil {
		n := strings.TrimSpace(*patch.Name)
		patch.Name = &n
	}
	if patch.CaseRef != nil {
		c := strings.TrimSpace(*patch.CaseRef)
		patch.CaseRef = &c
	}
	if patch.Tags != nil {
		patch.Tags = cleanTags(patch.Tags)
	}

	if err := s.repo.UpdateMetadata(ctx, ev.ID, patch); err != nil {
		return nil, opError(op, ev.ID, mapNotFound(err))
	}

	updated, err := s.repo.GetMetadata(ctx, ev.ID)
	if err != nil {
		return nil, opError(op, ev.ID, mapNotFound(err))
	}
	return updated, nil
}

// Delete безвозвратно удаляет улику владельца.
func (s *EvidenceService) Delete(ctx context.Context, in DeleteInput) error {
	const op = "delete"

	ev, err := s.load(ctx, in.Owner, in.ItemID)
	if err != nil {
		return opError(op, in.ItemID, err)
	}
	if err := s.repo.Delete(ctx, ev.ID); err != nil {
		return opError(op, ev.ID, mapNotFound(err))
	}
	s.logger.Infow("evidence deleted", "item_id", ev.ID, "owner_id", ev.OwnerID)
	return nil
}

// load читает метаданные улики и проверяет владельца до чтения шифртекста
// и любых криптографических операций.
func (s *EvidenceService) load(ctx context.Context, owner, itemID string) (*model.Evidence, error) {
	ownerID, err := s.gate.ResolveOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(itemID) == "" {
		return nil, newValidationError("missing evidence id")
	}
	ev, err := s.repo.GetMetadata(ctx, itemID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if err := s.gate.Authorize(ownerID, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// sealed дочитывает шифртекст, nonce и тег уже авторизованной улики.
func (s *EvidenceService) sealed(ctx context.Context, id string) (*model.Evidence, error) {
	ev, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return ev, nil
}

func (s *EvidenceService) open(ev *model.Evidence) ([]byte, error) {
	key, err := s.keys.DeriveKey(ev.OwnerID)
	if err != nil {
		return nil, err
	}
	defer crypto.WipeKey(key)
	return crypto.Decrypt(ev.Ciphertext, ev.Nonce, ev.AuthTag, key)
}

func (s *EvidenceService) integrityFailure(op, itemID string) {
	s.metrics.IntegrityFailure(op)
	s.logger.Errorw("evidence integrity check failed", "op", op, "item_id", itemID)
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
