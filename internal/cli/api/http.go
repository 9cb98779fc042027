package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	fsrepo "EvidenceVault/internal/cli/repo/fs"
)

// Client — HTTP-клиент CLI; в тестах может подменяться.
var Client = http.DefaultClient

// PostJSON sends a JSON POST request. If token is non-empty, it is passed as auth cookie.
func PostJSON(ctx context.Context, url string, payload any, token string) (*http.Response, []byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	return Do(ctx, http.MethodPost, url, bytes.NewReader(b), "application/json", token)
}

// Do выполняет запрос и читает тело ответа целиком.
func Do(ctx context.Context, method, url string, body io.Reader, contentType, token string) (*http.Response, []byte, error) {
	resp, err := Stream(ctx, method, url, body, contentType, token)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, nil, err
	}
	return resp, data, nil
}

// Stream выполняет запрос и возвращает ответ с открытым телом; закрывает вызывающий.
func Stream(ctx context.Context, method, url string, body io.Reader, contentType, token string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Cookie", "auth_token="+token)
	}
	return Client.Do(req)
}

// DetectContentType определяет MIME-тип файла по расширению, иначе по первым байтам.
func DetectContentType(path string, head []byte) string {
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); byExt != "" {
		return byExt
	}
	return http.DetectContentType(head)
}

// UploadFile отправляет файл multipart-формой в поле "file" вместе с текстовыми полями.
// Файл не читается в память целиком: тело формируется на лету.
func UploadFile(ctx context.Context, url, path string, fields map[string]string, token string) (*http.Response, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, nil, err
	}
	contentType := DetectContentType(path, head[:n])

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(mw, f, filepath.Base(path), contentType, fields))
	}()

	resp, body, err := Do(ctx, http.MethodPost, url, pr, mw.FormDataContentType(), token)
	_ = pr.Close()
	return resp, body, err
}

func writeForm(mw *multipart.Writer, src io.Reader, filename, contentType string, fields map[string]string) error {
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{"name": "file", "filename": filename}))
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, src); err != nil {
		return err
	}
	return mw.Close()
}

// PersistAuthFromResponse извлекает auth cookie из ответа и сохраняет его через файловое хранилище.
func PersistAuthFromResponse(resp *http.Response) error {
	store := fsrepo.AuthFSStore{}
	for _, c := range resp.Cookies() {
		if c.Name == "auth_token" && c.Value != "" {
			return store.Save(c.Value)
		}
	}
	return fmt.Errorf("no auth cookie in response")
}
