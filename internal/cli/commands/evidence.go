package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"EvidenceVault/internal/cli/api"
	"EvidenceVault/internal/cli/model"
	"EvidenceVault/internal/config"
	"EvidenceVault/internal/crypto"
)

// errTampered — сервер или локальная сверка обнаружили нарушение целостности.
var errTampered = errors.New("evidence failed integrity verification")

// evidenceView — метаданные улики в ответах сервера.
type evidenceView struct {
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
}

type verifyView struct {
	ID            string    `json:"id"`
	Intact        bool      `json:"intact"`
	StoredHash    string    `json:"storedHash"`
	CurrentHash   string    `json:"currentHash"`
	TimestampedAt time.Time `json:"timestampedAt"`
	Reason        string    `json:"reason"`
}

func evidenceURL(cfg *config.Config, id string, suffix string) string {
	return endpoint(cfg, "/api/evidence/"+url.PathEscape(id)+suffix)
}

// --- upload ---

type uploadCmd struct{}

func (uploadCmd) Name() string { return "upload" }
func (uploadCmd) Description() string {
	return "Encrypt and store a file on the server, keep a local receipt"
}
func (uploadCmd) Usage() string { return "upload <path> [<case-ref> [<description>]]" }

func (uploadCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) < 1 || len(args) > 3 {
		return ErrUsage
	}
	path := args[0]
	fields := map[string]string{}
	if len(args) > 1 {
		fields["case_ref"] = args[1]
	}
	if len(args) > 2 {
		fields["description"] = args[2]
	}

	token, err := loadToken()
	if err != nil {
		return err
	}

	localDigest, size, err := fileDigest(path)
	if err != nil {
		return err
	}

	resp, body, err := api.UploadFile(ctx, endpoint(cfg, "/api/evidence"), path, fields, token)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusCreated {
		return serverError(resp, body)
	}
	var view evidenceView
	if err := json.Unmarshal(body, &view); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if !crypto.EqualDigest(view.ContentDigest, localDigest) {
		return fmt.Errorf("server digest %s does not match local digest %s for %s", view.ContentDigest, localDigest, view.ID)
	}

	receipts, done, err := openReceipts(cfg)
	if err != nil {
		return err
	}
	defer done()
	abs, _ := filepath.Abs(path)
	if err := receipts.Save(model.Receipt{
		ID:            view.ID,
		Name:          view.Name,
		CaseRef:       view.CaseRef,
		ContentDigest: localDigest,
		SizeBytes:     size,
		SourcePath:    abs,
		IngestedAt:    view.IngestedAt,
	}); err != nil {
		return fmt.Errorf("save receipt: %w", err)
	}

	fmt.Fprintf(Out, "Uploaded %s\n  id:      %s\n  sha256:  %s\n  type:    %s\n", view.Name, view.ID, view.ContentDigest, view.MediaType)
	return nil
}

func fileDigest(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	return crypto.DigestReader(f)
}

// --- list ---

type listCmd struct{}

func (listCmd) Name() string        { return "list" }
func (listCmd) Description() string { return "List evidence stored on the server" }
func (listCmd) Usage() string       { return "list" }

func (listCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	token, err := loadToken()
	if err != nil {
		return err
	}
	resp, body, err := api.Do(ctx, http.MethodGet, endpoint(cfg, "/api/evidence"), nil, "", token)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return serverError(resp, body)
	}
	var items []evidenceView
	if err := json.Unmarshal(body, &items); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if len(items) == 0 {
		fmt.Fprintln(Out, "No evidence stored")
		return nil
	}

	tw := tabwriter.NewWriter(Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tSIZE\tCASE\tINGESTED")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", it.ID, it.Name, it.MediaType, it.SizeBytes, it.CaseRef, it.IngestedAt.Local().Format(time.RFC3339))
	}
	return tw.Flush()
}

// --- download ---

type downloadCmd struct{}

func (downloadCmd) Name() string { return "download" }
func (downloadCmd) Description() string {
	return "Decrypt and save evidence, checking its digest locally"
}
func (downloadCmd) Usage() string { return "download <id> <out-path>" }

func (downloadCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 2 {
		return ErrUsage
	}
	id, out := args[0], args[1]
	token, err := loadToken()
	if err != nil {
		return err
	}

	resp, err := api.Stream(ctx, http.MethodGet, evidenceURL(cfg, id, ""), nil, "", token)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return serverError(resp, body)
	}

	tmp, err := os.CreateTemp(filepath.Dir(out), ".evcli-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	digest, n, err := crypto.DigestReader(io.TeeReader(resp.Body, tmp))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}

	if header := resp.Header.Get("X-Content-Digest"); header != "" && !crypto.EqualDigest(header, digest) {
		return fmt.Errorf("%w: received bytes hash to %s, server reports %s", errTampered, digest, header)
	}
	if rc := findReceipt(cfg, id); rc != nil && !crypto.EqualDigest(rc.ContentDigest, digest) {
		return fmt.Errorf("%w: received bytes hash to %s, local receipt has %s", errTampered, digest, rc.ContentDigest)
	}

	if err := os.Rename(tmp.Name(), out); err != nil {
		return err
	}
	fmt.Fprintf(Out, "Saved %d bytes to %s\n  sha256:  %s\n", n, out, digest)
	return nil
}

// findReceipt возвращает локальную квитанцию, если она есть; ошибки базы не мешают основной операции.
func findReceipt(cfg *config.Config, id string) *model.Receipt {
	receipts, done, err := openReceipts(cfg)
	if err != nil {
		return nil
	}
	defer done()
	rc, err := receipts.Get(id)
	if err != nil {
		return nil
	}
	return rc
}

// --- verify ---

type verifyCmd struct{}

func (verifyCmd) Name() string        { return "verify" }
func (verifyCmd) Description() string { return "Ask the server to verify evidence integrity" }
func (verifyCmd) Usage() string       { return "verify <id>" }

func (verifyCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	id := args[0]
	token, err := loadToken()
	if err != nil {
		return err
	}
	resp, body, err := api.Do(ctx, http.MethodGet, evidenceURL(cfg, id, "/verify"), nil, "", token)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return serverError(resp, body)
	}
	var v verifyView
	if err := json.Unmarshal(body, &v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	intact := v.Intact
	reason := v.Reason
	if receipts, done, err := openReceipts(cfg); err == nil {
		defer done()
		if rc, _ := receipts.Get(id); rc != nil {
			if !crypto.EqualDigest(rc.ContentDigest, v.StoredHash) {
				intact = false
				reason = "stored hash differs from local receipt"
			}
			_ = receipts.MarkVerified(id, intact, time.Now())
		}
	}

	fmt.Fprintf(Out, "Evidence %s\n  stored:    %s\n  current:   %s\n  ingested:  %s\n",
		v.ID, v.StoredHash, v.CurrentHash, v.TimestampedAt.Local().Format(time.RFC3339))
	if !intact {
		fmt.Fprintf(Out, "  result:    TAMPERED (%s)\n", reason)
		return errTampered
	}
	fmt.Fprintln(Out, "  result:    intact")
	return nil
}

// --- delete ---

type deleteCmd struct{}

func (deleteCmd) Name() string        { return "delete" }
func (deleteCmd) Description() string { return "Permanently delete evidence and its local receipt" }
func (deleteCmd) Usage() string       { return "delete <id>" }

func (deleteCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	id := args[0]
	token, err := loadToken()
	if err != nil {
		return err
	}
	resp, body, err := api.Do(ctx, http.MethodDelete, evidenceURL(cfg, id, ""), nil, "", token)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return serverError(resp, body)
	}
	if receipts, done, err := openReceipts(cfg); err == nil {
		defer done()
		_ = receipts.Delete(id)
	}
	fmt.Fprintf(Out, "Deleted %s\n", id)
	return nil
}

// --- receipts ---

type receiptsCmd struct{}

func (receiptsCmd) Name() string        { return "receipts" }
func (receiptsCmd) Description() string { return "Show local upload receipts" }
func (receiptsCmd) Usage() string       { return "receipts" }

func (receiptsCmd) Run(_ context.Context, cfg *config.Config, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	receipts, done, err := openReceipts(cfg)
	if err != nil {
		return err
	}
	defer done()
	list, err := receipts.List()
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(Out, "No receipts")
		return nil
	}

	tw := tabwriter.NewWriter(Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCASE\tSHA256\tLAST CHECK")
	for _, rc := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", rc.ID, rc.Name, rc.CaseRef, shortDigest(rc.ContentDigest), lastCheck(rc))
	}
	return tw.Flush()
}

func shortDigest(d string) string {
	if len(d) <= 16 {
		return d
	}
	return d[:16] + "..."
}

func lastCheck(rc model.Receipt) string {
	if rc.VerifiedAt == nil || rc.VerifiedIntact == nil {
		return "never"
	}
	state := "intact"
	if !*rc.VerifiedIntact {
		state = "TAMPERED"
	}
	return state + " @ " + rc.VerifiedAt.Local().Format(time.RFC3339)
}

func init() {
	RegisterCmd(uploadCmd{})
	RegisterCmd(listCmd{})
	RegisterCmd(downloadCmd{})
	RegisterCmd(verifyCmd{})
	RegisterCmd(deleteCmd{})
	RegisterCmd(receiptsCmd{})
}
