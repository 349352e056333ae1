package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/neomorfeo/delayguard/internal/adapter/fsm"
	"github.com/neomorfeo/delayguard/internal/adapter/sqlite"
	"github.com/neomorfeo/delayguard/internal/app"
	"github.com/neomorfeo/delayguard/internal/config"
	"github.com/neomorfeo/delayguard/internal/domain"
)

// testPublisher is a local EventPublisher for the smoke test.
// The smoke test verifies HTTP wiring, not River.
type testPublisher struct{}

func (p *testPublisher) Publish(_ context.Context, _ domain.Notification) error {
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// discardStdout silences the stdout OTel exporters and the JSON logger.
func discardStdout(t *testing.T) {
	t.Helper()
	origStdout := os.Stdout
	devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("opening /dev/null: %v", err)
	}
	os.Stdout = devNull
	t.Cleanup(func() {
		os.Stdout = origStdout
		devNull.Close()
	})
}

func getLedger(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url+"/api/v1/ledger", nil)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/v1/ledger failed: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.StatusCode, body
}

// TestSmoke wires the stack like serve() and verifies it responds.
func TestSmoke(t *testing.T) {
	repo, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("database: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	cfg := config.Default()
	escrow, _ := cfg.Escrow()
	tokenAddr, _ := cfg.Token()
	ledger := app.NewPolicyLedger(escrow, repo, sqlite.NewTokenLedger(repo.DB(), tokenAddr), &testPublisher{}, fsm.New())

	srv := httptest.NewServer(newRouter(ledger))
	t.Cleanup(srv.Close)

	status, body := getLedger(t, srv.URL)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want %d", status, http.StatusOK)
	}
	if body["initialized"] != false {
		t.Errorf("initialized = %v, want false on an empty database", body["initialized"])
	}
	if body["escrow"] != config.DefaultEscrowAddress {
		t.Errorf("escrow = %v, want %s", body["escrow"], config.DefaultEscrowAddress)
	}
}

// TestServe exercises serve() end-to-end: OTel, River, HTTP server, and
// graceful shutdown. It uses the stdout OTel exporter and a temp database.
func TestServe(t *testing.T) {
	t.Setenv("OTEL_EXPORTER", "stdout")
	t.Setenv("OTEL_ENVIRONMENT", "test")
	discardStdout(t)

	cfg := config.Default()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "serve.db")
	cfg.Port = 19876
	cfg.ShutdownTimeout = "5s"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- serve(ctx, cfg, discardLogger()) }()

	serverURL := "http://localhost:19876"
	ready := false
	for i := 0; i < 50; i++ {
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, serverURL+"/api/v1/ledger", nil)
		resp, reqErr := http.DefaultClient.Do(req)
		if reqErr == nil {
			resp.Body.Close()
			ready = true
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if !ready {
		t.Fatal("server did not start within 5 seconds")
	}

	if status, _ := getLedger(t, serverURL); status != http.StatusOK {
		t.Fatalf("status = %d, want %d", status, http.StatusOK)
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("serve() returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve() did not exit within 10 seconds")
	}
}

func TestServe_InvalidDB(t *testing.T) {
	t.Setenv("OTEL_EXPORTER", "stdout")
	discardStdout(t)

	cfg := config.Default()
	cfg.DatabasePath = "/nonexistent/path/db.sqlite"
	cfg.Port = 19877

	if err := serve(context.Background(), cfg, discardLogger()); err == nil {
		t.Fatal("expected error for invalid database path, got nil")
	}
}

func TestServe_UnsupportedExporter(t *testing.T) {
	t.Setenv("OTEL_EXPORTER", "carrier-pigeon")

	cfg := config.Default()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "exporter.db")

	if err := serve(context.Background(), cfg, discardLogger()); err == nil {
		t.Fatal("expected error for an unsupported exporter, got nil")
	}
}

// execute runs the CLI with args against a config file pointing at dbPath.
func execute(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "delayguard.yaml")
	if err := os.WriteFile(cfgPath, []byte("databasePath: "+dbPath+"\n"), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out.String(), "delayguard dev") {
		t.Errorf("output = %q", out.String())
	}
}

func TestMigrateCommand(t *testing.T) {
	discardStdout(t)
	dbPath := filepath.Join(t.TempDir(), "migrate.db")

	if _, err := execute(t, dbPath, "migrate"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("database not created: %v", err)
	}
}

func TestTokenCommands(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "token.db")
	holder := "0x00000000000000000000000000000000000000b1"

	out, err := execute(t, dbPath, "token", "mint", holder, "1500")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if !strings.Contains(out, "balance 1500") {
		t.Errorf("mint output = %q", out)
	}

	if _, err := execute(t, dbPath, "token", "mint", holder, "500"); err != nil {
		t.Fatalf("second mint: %v", err)
	}
	out, err = execute(t, dbPath, "token", "balance", holder)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if strings.TrimSpace(out) != "2000" {
		t.Errorf("balance = %q, want 2000", out)
	}

	out, err = execute(t, dbPath, "token", "approve", holder, "1000")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !strings.Contains(out, config.DefaultEscrowAddress) {
		t.Errorf("approve output = %q", out)
	}

	repo, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("database: %v", err)
	}
	defer repo.Close()
	tokenAddr := domain.MustParseAddress(config.DefaultTokenAddress)
	allowance, err := sqlite.NewTokenLedger(repo.DB(), tokenAddr).
		Allowance(context.Background(), domain.MustParseAddress(holder), domain.MustParseAddress(config.DefaultEscrowAddress))
	if err != nil {
		t.Fatalf("Allowance: %v", err)
	}
	if allowance.String() != "1000" {
		t.Errorf("allowance = %s, want 1000", allowance)
	}
}

func TestTokenCommands_InvalidArgs(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "invalid.db")

	if _, err := execute(t, dbPath, "token", "mint", "not-an-address", "10"); err == nil {
		t.Error("expected an error for a malformed address")
	}
	if _, err := execute(t, dbPath, "token", "mint", "0x00000000000000000000000000000000000000b1", "-3"); err == nil {
		t.Error("expected an error for a negative amount")
	}
	if _, err := execute(t, dbPath, "token", "balance"); err == nil {
		t.Error("expected an error for a missing argument")
	}
}
