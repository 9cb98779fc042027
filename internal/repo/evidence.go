package repo

import (
	"EvidenceVault/internal/model"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrMissingOwner — попытка сохранить улику без владельца.
	ErrMissingOwner = errors.New("evidence owner is required")
	// ErrCiphertextMissing — строка есть, а шифртекста в объектном хранилище нет.
	ErrCiphertextMissing = errors.New("stored ciphertext is missing")
)

// metaColumns — колонки для списков; шифртекст, nonce и тег в списки не попадают.
var metaColumns = []string{
	"id", "owner_id", "name", "media_type", "mime_type", "size_bytes",
	"description", "tags", "case_ref", "content_digest", "ingested_at",
	"created_at", "updated_at",
}

// EvidenceRepository — хранилище зашифрованных улик.
// Проверку владельца выполняет вызывающий сервис.
type EvidenceRepository interface {
	// Create назначает ID и IngestedAt и сохраняет запись целиком.
	Create(ctx context.Context, ev *model.Evidence) error
	// ListByOwner возвращает только метаданные, новые первыми.
	ListByOwner(ctx context.Context, ownerID int64) ([]model.Evidence, error)
	// GetByID возвращает полную запись; gorm.ErrRecordNotFound, если её нет,
	// ErrCiphertextMissing, если пропал вынесенный шифртекст.
	GetByID(ctx context.Context, id string) (*model.Evidence, error)
	// GetMetadata возвращает запись без шифртекста, nonce и тега.
	GetMetadata(ctx context.Context, id string) (*model.Evidence, error)
	// UpdateMetadata меняет только описательные поля.
	UpdateMetadata(ctx context.Context, id string, patch model.MetadataPatch) error
	// Delete безвозвратно удаляет запись.
	Delete(ctx context.Context, id string) error
}

type evidenceRepo struct {
	db      *gorm.DB
	objects ObjectStore
	now     func() time.Time
}

// NewEvidenceRepository создаёт репозиторий, хранящий шифртекст в строке таблицы.
func NewEvidenceRepository(db *gorm.DB) EvidenceRepository {
	return &evidenceRepo{db: db, now: time.Now}
}

// NewEvidenceRepositoryWithObjects создаёт репозиторий, выносящий шифртекст в объектное хранилище.
func NewEvidenceRepositoryWithObjects(db *gorm.DB, objects ObjectStore) EvidenceRepository {
	return &evidenceRepo{db: db, objects: objects, now: time.Now}
}

func objectKey(ownerID int64, id string) string {
	return "evidence/" + strconv.FormatInt(ownerID, 10) + "/" + id
}

func (r *evidenceRepo) Create(ctx context.Context, ev *model.Evidence) error {
	if ev == nil || ev.OwnerID == 0 {
		return ErrMissingOwner
	}
	ev.ID = uuid.NewString()
	ev.IngestedAt = r.now().UTC()

	if r.objects == nil {
		return r.db.WithContext(ctx).Create(ev).Error
	}

	key := objectKey(ev.OwnerID, ev.ID)
	if err := r.objects.Put(ctx, key, ev.Ciphertext); err != nil {
		return fmt.Errorf("put ciphertext: %w", err)
	}
	row := *ev
	row.Ciphertext = nil
	row.CipherKey = key
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		// запись не создана — убираем объект, чтобы не оставлять частичных данных
		if delErr := r.objects.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			return errors.Join(err, fmt.Errorf("cleanup ciphertext: %w", delErr))
		}
		return err
	}
	ev.CipherKey = key
	ev.CreatedAt, ev.UpdatedAt = row.CreatedAt, row.UpdatedAt
	return nil
}

func (r *evidenceRepo) ListByOwner(ctx context.Context, ownerID int64) ([]model.Evidence, error) {
	var items []model.Evidence
	err := r.db.WithContext(ctx).
		Select(metaColumns).
		Where("owner_id = ?", ownerID).
		Order("ingested_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *evidenceRepo) GetByID(ctx context.Context, id string) (*model.Evidence, error) {
	var ev model.Evidence
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&ev).Error; err != nil {
		return nil, err
	}
	if ev.CipherKey != "" {
		if r.objects == nil {
			return nil, fmt.Errorf("evidence %s: ciphertext is offloaded but no object store is configured", id)
		}
		data, err := r.objects.Get(ctx, ev.CipherKey)
		if errors.Is(err, ErrObjectNotFound) {
			return nil, fmt.Errorf("evidence %s: %w: %w", id, ErrCiphertextMissing, err)
		}
		if err != nil {
			return nil, fmt.Errorf("get ciphertext: %w", err)
		}
		ev.Ciphertext = data
	}
	return &ev, nil
}

func (r *evidenceRepo) GetMetadata(ctx context.Context, id string) (*model.Evidence, error) {
	var ev model.Evidence
	if err := r.db.WithContext(ctx).Select(metaColumns).Where("id = ?", id).First(&ev).Error; err != nil {
		return nil, err
	}
	return &ev, nil
}

func (r *evidenceRepo) UpdateMetadata(ctx context.Context, id string, patch model.MetadataPatch) error {
	var cols []string
	var upd model.Evidence
	if patch.Name != nil {
		cols = append(cols, "name")
		upd.Name = *patch.Name
	}
	if patch.Description != nil {
		cols = append(cols, "description")
		upd.Description = *patch.Description
	}
	if patch.CaseRef != nil {
		cols = append(cols, "case_ref")
		upd.CaseRef = *patch.CaseRef
	}
	if patch.Tags != nil {
		cols = append(cols, "tags")
		upd.Tags = patch.Tags
	}
	if len(cols) == 0 {
		return nil
	}
	// структура + Select: пустые значения тоже записываются, tags проходят через json-сериализатор
	tx := r.db.WithContext(ctx).Model(&model.Evidence{}).Where("id = ?", id).Select(cols).Updates(&upd)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *evidenceRepo) Delete(ctx context.Context, id string) error {
	if r.objects != nil {
		var ev model.Evidence
		if err := r.db.WithContext(ctx).Select("id", "cipher_key").Where("id = ?", id).First(&ev).Error; err != nil {
			return err
		}
		// сначала объект: при ошибке строка остаётся и удаление можно повторить
		if ev.CipherKey != "" {
			err := r.objects.Delete(ctx, ev.CipherKey)
			if err != nil && !errors.Is(err, ErrObjectNotFound) {
				return fmt.Errorf("delete ciphertext: %w", err)
			}
		}
	}
	tx := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Evidence{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
