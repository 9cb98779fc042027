package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"EvidenceVault/internal/cli/bootstrap"
	"EvidenceVault/internal/cli/repo"
	fsrepo "EvidenceVault/internal/cli/repo/fs"
	"EvidenceVault/internal/config"

	"golang.org/x/term"
)

// authStore — хранилище токена и активного логина.
var authStore repo.AuthStore = fsrepo.AuthFSStore{}

// readPassword запрашивает пароль без эха; в тестах подменяется.
var readPassword = func(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("password argument is required when stdin is not a terminal")
	}
	fmt.Fprint(Out, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(Out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// openReceipts открывает квитанции текущего пользователя.
var openReceipts = func(cfg *config.Config) (repo.ReceiptRepository, func() error, error) {
	return bootstrap.OpenReceiptRepo(cfg.ClientDBPath)
}

func endpoint(cfg *config.Config, path string) string {
	return strings.TrimRight(cfg.ServerURL, "/") + path
}

func loadToken() (string, error) {
	token, err := authStore.Load()
	if err != nil {
		return "", errors.New("not logged in: run login or register first")
	}
	return token, nil
}

// serverError переводит неуспешный ответ сервера в ошибку для пользователя.
func serverError(resp *http.Response, body []byte) error {
	msg := strings.TrimSpace(string(body))
	var er struct {
		Error string `json:"error"`
		ID    string `json:"id"`
	}
	if json.Unmarshal(body, &er) == nil && er.Error != "" {
		msg = er.Error
		if er.ID != "" {
			msg += " (" + er.ID + ")"
		}
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return errors.New("unauthorized: run login first")
	case http.StatusForbidden:
		return errors.New("access denied: evidence belongs to another user")
	case http.StatusNotFound:
		return errors.New("evidence not found")
	case http.StatusRequestEntityTooLarge:
		return errors.New("file is too large for the server limit")
	case http.StatusConflict:
		return fmt.Errorf("integrity failure: %s", msg)
	}
	return fmt.Errorf("server status %d: %s", resp.StatusCode, msg)
}
