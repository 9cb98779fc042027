package model

import (
	"strings"
	"time"
)

// MediaType — категория улики, вычисляется один раз при загрузке.
type MediaType string

const (
	MediaPhoto    MediaType = "photo"
	MediaVideo    MediaType = "video"
	MediaDocument MediaType = "document"
)

// MediaTypeFor определяет категорию по заявленному MIME-типу.
func MediaTypeFor(mimeType string) MediaType {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.HasPrefix(mt, "image/"):
		return MediaPhoto
	case strings.HasPrefix(mt, "video/"):
		return MediaVideo
	default:
		return MediaDocument
	}
}

// Evidence — зашифрованная улика пользователя.
type Evidence struct {
	ID      string `gorm:"primaryKey;type:uuid"`
	OwnerID int64  `gorm:"not null;index"` // ссылка на users.id

	// Связи
	Owner *User `gorm:"foreignKey:OwnerID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`

	Name        string    `gorm:"not null"`
	MediaType   MediaType `gorm:"not null;size:16"`
	MimeType    string    `gorm:"not null"`
	SizeBytes   int64     `gorm:"not null"`
	Description string
	Tags        []string `gorm:"serializer:json;type:text"`
	CaseRef     string   `gorm:"index"`

	// Шифртекст хранится в строке либо во внешнем объектном хранилище (CipherKey).
	Ciphertext []byte
	CipherKey  string
	Nonce      []byte `gorm:"not null"`
	AuthTag    []byte `gorm:"not null"`

	// Дайджест открытых данных, вычисленный до шифрования.
	ContentDigest string    `gorm:"not null;size:64"`
	IngestedAt    time.Time `gorm:"not null"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// MetadataPatch — изменяемые владельцем поля, не влияющие на безопасность.
type MetadataPatch struct {
	Name        *string
	Description *string
	Tags        []string
	CaseRef     *string
}

// IsEmpty сообщает, что патч ничего не меняет.
func (p MetadataPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.Tags == nil && p.CaseRef == nil
}
