package service

import (
	"mime"
	"strings"
)

// DefaultMaxUploadMB — ограничение размера улики по умолчанию.
const DefaultMaxUploadMB = 100

// allowedExact — разрешённые типы документов помимо image/* и video/*.
var allowedExact = map[string]struct{}{
	"application/pdf":                                {},
	"text/plain":                                     {},
	"application/msword":                             {},
	"application/vnd.ms-excel":                       {},
	"application/vnd.ms-powerpoint":                  {},
	"application/rtf":                                {},
	"application/vnd.oasis.opendocument.text":        {},
	"application/vnd.oasis.opendocument.spreadsheet": {},
}

const ooxmlPrefix = "application/vnd.openxmlformats-officedocument."

// UploadCheck — входные данные проверки загрузки на границе.
type UploadCheck struct {
	Owner    string
	HasFile  bool
	MimeType string
	Size     int64
	MaxBytes int64
}

// NormalizeMimeType отбрасывает параметры и приводит тип к нижнему регистру.
func NormalizeMimeType(v string) string {
	if mt, _, err := mime.ParseMediaType(v); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(v))
}

// AllowedMimeType сообщает, принимается ли тип содержимого.
func AllowedMimeType(v string) bool {
	mt := NormalizeMimeType(v)
	switch {
	case mt == "":
		return false
	case strings.HasPrefix(mt, "image/"), strings.HasPrefix(mt, "video/"):
		return true
	case strings.HasPrefix(mt, ooxmlPrefix):
		return true
	}
	_, ok := allowedExact[mt]
	return ok
}

// ValidateUpload выполняет проверки до вызова Ingest.
func ValidateUpload(c UploadCheck) error {
	if strings.TrimSpace(c.Owner) == "" {
		return newValidationError("missing owner identity")
	}
	if !c.HasFile {
		return newValidationError("missing file")
	}
	if !AllowedMimeType(c.MimeType) {
		return newValidationError("content type %q is not accepted", c.MimeType)
	}
	if c.MaxBytes > 0 && c.Size > c.MaxBytes {
		return newValidationError("payload of %d bytes exceeds limit of %d bytes", c.Size, c.MaxBytes)
	}
	return nil
}
