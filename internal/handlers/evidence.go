package handlers

import (
	"EvidenceVault/internal/config"
	"EvidenceVault/internal/middleware"
	"EvidenceVault/internal/model"
	"EvidenceVault/internal/service"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// multipartOverhead — запас на заголовки частей и текстовые поля формы.
const multipartOverhead = 1 << 20

// EvidenceHandler — HTTP-граница хранилища улик.
type EvidenceHandler struct {
	Evidence *service.EvidenceService
	Logger   *zap.SugaredLogger
	Config   *config.Config
}

func NewEvidenceHandler(evidence *service.EvidenceService, logger *zap.SugaredLogger, cfg *config.Config) *EvidenceHandler {
	return &EvidenceHandler{Evidence: evidence, Logger: logger, Config: cfg}
}

// EvidenceView — метаданные улики без шифртекста, nonce и тега.
type EvidenceView struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	MediaType     string    `json:"mediaType"`
	MimeType      string    `json:"mimeType"`
	SizeBytes     int64     `json:"sizeBytes"`
	Description   string    `json:"description"`
	Tags          []string  `json:"tags"`
	CaseRef       string    `json:"caseRef"`
	ContentDigest string    `json:"contentDigest"`
	IngestedAt    time.Time `json:"ingestedAt"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toView(ev *model.Evidence) EvidenceView {
	tags := ev.Tags
	if tags == nil {
		tags = []string{}
	}
	return EvidenceView{
		ID:            ev.ID,
		Name:          ev.Name,
		MediaType:     string(ev.MediaType),
		MimeType:      ev.MimeType,
		SizeBytes:     ev.SizeBytes,
		Description:   ev.Description,
		Tags:          tags,
		CaseRef:       ev.CaseRef,
		ContentDigest: ev.ContentDigest,
		IngestedAt:    ev.IngestedAt.UTC(),
		CreatedAt:     ev.CreatedAt.UTC(),
	}
}

// VerifyResponse — ответ проверки целостности.
type VerifyResponse struct {
	ID            string    `json:"id"`
	Intact        bool      `json:"intact"`
	StoredHash    string    `json:"storedHash"`
	CurrentHash   string    `json:"currentHash"`
	TimestampedAt time.Time `json:"timestampedAt"`
	Reason        string    `json:"reason,omitempty"`
}

// PatchRequest — изменяемые поля метаданных; отсутствующие поля не меняются.
type PatchRequest struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	CaseRef     *string   `json:"caseRef,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	ID    string `json:"id,omitempty"`
}

// Upload принимает multipart-форму с файлом улики.
func (h *EvidenceHandler) Upload(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	limit := h.Config.MaxEvidenceBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		h.Logger.Warnw("Upload: invalid multipart form", "error", err)
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	hasFile := err == nil
	var mimeType string
	var size int64
	if hasFile {
		defer file.Close()
		mimeType = declaredType(header.Header.Get("Content-Type"), header.Filename)
		size = header.Size
	}

	check := service.UploadCheck{Owner: owner, HasFile: hasFile, MimeType: mimeType, Size: size, MaxBytes: limit}
	if err := service.ValidateUpload(check); err != nil {
		status := http.StatusBadRequest
		if hasFile && size > limit {
			status = http.StatusRequestEntityTooLarge
		}
		h.Logger.Warnw("Upload: rejected", "owner", owner, "error", err)
		http.Error(w, err.Error(), status)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		h.Logger.Warnw("Upload: failed to read file", "error", err)
		http.Error(w, "failed to read file", http.StatusBadRequest)
		return
	}
	if int64(len(data)) > limit {
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
		return
	}

	ev, err := h.Evidence.Ingest(r.Context(), service.IngestInput{
		Owner:       owner,
		Name:        filepath.Base(header.Filename),
		MimeType:    mimeType,
		Data:        data,
		Description: r.FormValue("description"),
		Tags:        splitTags(r.FormValue("tags")),
		CaseRef:     r.FormValue("case_ref"),
	})
	if err != nil {
		h.writeError(w, "Upload", "", err)
		return
	}

	writeJSON(w, http.StatusCreated, toView(ev))
}

// List возвращает метаданные всех улик владельца.
func (h *EvidenceHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	items, err := h.Evidence.List(r.Context(), owner)
	if err != nil {
		h.writeError(w, "List", "", err)
		return
	}

	views := make([]EvidenceView, 0, len(items))
	for i := range items {
		views = append(views, toView(&items[i]))
	}
	writeJSON(w, http.StatusOK, views)
}

// Download отдаёт расшифрованный файл.
func (h *EvidenceHandler) Download(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	id := chi.URLParam(r, "id")

	res, err := h.Evidence.Retrieve(r.Context(), service.RetrieveInput{Owner: owner, ItemID: id})
	if err != nil {
		h.writeError(w, "Download", id, err)
		return
	}

	w.Header().Set("Content-Type", res.MimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": res.Name}))
	w.Header().Set("X-Content-Digest", res.ContentDigest)
	w.Header().Set("X-Ingested-At", res.IngestedAt.UTC().Format(time.RFC3339Nano))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

// Verify проверяет целостность улики.
func (h *EvidenceHandler) Verify(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	id := chi.URLParam(r, "id")

	res, err := h.Evidence.Verify(r.Context(), service.VerifyInput{Owner: owner, ItemID: id})
	if err != nil {
		h.writeError(w, "Verify", id, err)
		return
	}

	writeJSON(w, http.StatusOK, VerifyResponse{
		ID:            res.ItemID,
		Intact:        res.Intact,
		StoredHash:    res.StoredDigest,
		CurrentHash:   res.CurrentDigest,
		TimestampedAt: res.IngestedAt.UTC(),
		Reason:        res.Reason,
	})
}

// Update меняет описательные поля улики.
func (h *EvidenceHandler) Update(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	id := chi.URLParam(r, "id")

	var req PatchRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, multipartOverhead)).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	patch := model.MetadataPatch{Name: req.Name, Description: req.Description, CaseRef: req.CaseRef}
	if req.Tags != nil {
		patch.Tags = *req.Tags
		if patch.Tags == nil {
			patch.Tags = []string{}
		}
	}

	ev, err := h.Evidence.UpdateMetadata(r.Context(), service.UpdateInput{Owner: owner, ItemID: id, Patch: patch})
	if err != nil {
		h.writeError(w, "Update", id, err)
		return
	}
	writeJSON(w, http.StatusOK, toView(ev))
}

// Delete безвозвратно удаляет улику.
func (h *EvidenceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	id := chi.URLParam(r, "id")

	if err := h.Evidence.Delete(r.Context(), service.DeleteInput{Owner: owner, ItemID: id}); err != nil {
		h.writeError(w, "Delete", id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

// writeError переводит ошибку сервиса в HTTP-статус; детали шифрования наружу не уходят.
func (h *EvidenceHandler) writeError(w http.ResponseWriter, op, id string, err error) {
	switch {
	case service.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrUnknownOwner):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, service.ErrNotFound):
		http.Error(w, "evidence not found", http.StatusNotFound)
	case errors.Is(err, service.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, service.ErrCorruptedEvidence):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "evidence integrity check failed", ID: id})
	default:
		h.Logger.Errorw(op+": service error", "item_id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// declaredType возвращает тип части формы, а для пустого или
// application/octet-stream пытается определить его по расширению.
func declaredType(contentType, filename string) string {
	mt := service.NormalizeMimeType(contentType)
	if mt != "" && mt != "application/octet-stream" {
		return mt
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
		return service.NormalizeMimeType(byExt)
	}
	return mt
}

func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Split(raw, ",")
}
