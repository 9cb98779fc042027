package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"EvidenceVault/internal/cli/api"
	"EvidenceVault/internal/cli/bootstrap"
	"EvidenceVault/internal/config"
)

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// authenticate отправляет логин и пароль и сохраняет сессию при успехе.
func authenticate(ctx context.Context, cfg *config.Config, path string, args []string) (*http.Response, []byte, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, nil, ErrUsage
	}
	login := args[0]
	var password string
	if len(args) == 2 {
		password = args[1]
	} else {
		p, err := readPassword("Password: ")
		if err != nil {
			return nil, nil, err
		}
		password = p
	}
	if login == "" || password == "" {
		return nil, nil, ErrUsage
	}

	resp, body, err := api.PostJSON(ctx, endpoint(cfg, path), credentialsRequest{Login: login, Password: password}, "")
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return resp, body, nil
	}
	if err := api.PersistAuthFromResponse(resp); err != nil {
		return nil, nil, fmt.Errorf("saving auth: %w", err)
	}
	if err := authStore.SaveLogin(login); err != nil {
		return nil, nil, fmt.Errorf("saving login: %w", err)
	}
	// готовим локальную базу квитанций пользователя
	_, done, err := bootstrap.OpenReceiptRepoFor(cfg.ClientDBPath, login)
	if err != nil {
		return nil, nil, err
	}
	_ = done()
	return resp, body, nil
}

type loginCmd struct{}

func (loginCmd) Name() string        { return "login" }
func (loginCmd) Description() string { return "Login and store auth cookie" }
func (loginCmd) Usage() string       { return "login <login> [<password>]" }

func (loginCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	resp, body, err := authenticate(ctx, cfg, "/api/user/login", args)
	if err != nil {
		return err
	}
	switch resp.StatusCode {
	case http.StatusOK:
		fmt.Fprintln(Out, "Logged in successfully")
		return nil
	case http.StatusUnauthorized:
		return errors.New("invalid login or password")
	}
	return serverError(resp, body)
}

type registerCmd struct{}

func (registerCmd) Name() string        { return "register" }
func (registerCmd) Description() string { return "Create an account and log in" }
func (registerCmd) Usage() string       { return "register <login> [<password>]" }

func (registerCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	resp, body, err := authenticate(ctx, cfg, "/api/user/register", args)
	if err != nil {
		return err
	}
	switch resp.StatusCode {
	case http.StatusOK:
		fmt.Fprintln(Out, "Registered successfully")
		return nil
	case http.StatusConflict:
		return errors.New("login already in use")
	}
	return serverError(resp, body)
}

type dataResponse struct {
	Result string `json:"result"`
}

type statusCmd struct{}

func (statusCmd) Name() string        { return "status" }
func (statusCmd) Description() string { return "Show whether the stored session is valid" }
func (statusCmd) Usage() string       { return "status" }

func (statusCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	token, _ := authStore.Load()
	resp, body, err := api.PostJSON(ctx, endpoint(cfg, "/api/user/test"), struct{}{}, token)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return serverError(resp, body)
	}
	var dr dataResponse
	if err := json.Unmarshal(body, &dr); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	fmt.Fprintln(Out, "Status:", dr.Result)
	return nil
}

func init() {
	RegisterCmd(loginCmd{})
	RegisterCmd(registerCmd{})
	RegisterCmd(statusCmd{})
}
