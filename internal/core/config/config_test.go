package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xtal-lab/xtal/internal/instrument"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "xtal.yaml")
	requireNoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	requireNoError(t, err)

	if cfg.Storage.Type != StorageMemory {
		t.Fatalf("expected memory storage, got %q", cfg.Storage.Type)
	}
	if cfg.Evaluation.Timeout != 2*time.Second || cfg.Evaluation.RawTimeout != 50*time.Millisecond {
		t.Fatalf("unexpected evaluation budgets: %+v", cfg.Evaluation)
	}
	if cfg.Watch.Debounce != 150*time.Millisecond {
		t.Fatalf("unexpected debounce %s", cfg.Watch.Debounce)
	}

	svcCfg, err := cfg.Evaluation.ServiceConfig()
	requireNoError(t, err)
	if svcCfg.Kinds != instrument.AllKinds() {
		t.Fatalf("expected all kinds enabled, got %s", svcCfg.Kinds)
	}
	if svcCfg.Sandbox.Hook != "__xtal__" || svcCfg.Sandbox.MaxCallStackSize != 500 {
		t.Fatalf("unexpected sandbox options: %+v", svcCfg.Sandbox)
	}
}

func TestLoad_FileAndEnvLayers(t *testing.T) {
	cfgPath := writeConfig(t, `
server:
  port: 9090
  mode: "debug"
storage:
  type: "badger"
  path: "/var/lib/xtal"
evaluation:
  timeout: "5s"
  kinds: ["call", "binary"]
`)
	t.Setenv("XTAL_EVALUATION__RUN_TIMEOUT", "3s")
	t.Setenv("XTAL_SERVER__PORT", "9191")

	cfg, err := Load(cfgPath)
	requireNoError(t, err)

	if cfg.Server.Port != 9191 {
		t.Fatalf("env should override file: got port %d", cfg.Server.Port)
	}
	if cfg.Server.Mode != "debug" || cfg.Storage.Type != StorageBadger || cfg.Storage.Path != "/var/lib/xtal" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Evaluation.Timeout != 5*time.Second || cfg.Evaluation.RunTimeout != 3*time.Second {
		t.Fatalf("unexpected budgets: %+v", cfg.Evaluation)
	}

	svcCfg, err := cfg.Evaluation.ServiceConfig()
	requireNoError(t, err)
	if !svcCfg.Kinds.Has(instrument.KindCall) || svcCfg.Kinds.Has(instrument.KindLiteral) {
		t.Fatalf("unexpected kinds %s", svcCfg.Kinds)
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "invalid port",
			body:    "server:\n  port: -1\n",
			wantErr: "invalid server.port",
		},
		{
			name:    "unknown storage",
			body:    "storage:\n  type: \"redis\"\n",
			wantErr: "unsupported storage.type",
		},
		{
			name:    "postgres without dsn",
			body:    "storage:\n  type: \"postgres\"\n",
			wantErr: "storage.dsn is required",
		},
		{
			name:    "raw budget not below run budget",
			body:    "evaluation:\n  raw_timeout: \"1s\"\n  run_timeout: \"1s\"\n",
			wantErr: "must be less than evaluation.run_timeout",
		},
		{
			name:    "run budget above overall budget",
			body:    "evaluation:\n  run_timeout: \"3s\"\n",
			wantErr: "must not exceed evaluation.timeout",
		},
		{
			name:    "hook is not an identifier",
			body:    "evaluation:\n  hook_name: \"1hook\"\n",
			wantErr: "invalid evaluation.hook_name",
		},
		{
			name:    "unknown kind",
			body:    "evaluation:\n  kinds: [\"loop\"]\n",
			wantErr: "invalid evaluation.kinds",
		},
		{
			name:    "zero debounce",
			body:    "watch:\n  debounce: \"0s\"\n",
			wantErr: "watch.debounce must be > 0",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "failed to load config file") {
		t.Fatalf("expected file load error, got %v", err)
	}
}

func requireNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func TestEvaluationConfig_WithTimeout(t *testing.T) {
	cfg, err := Load("")
	requireNoError(t, err)

	longer := cfg.Evaluation.WithTimeout(10 * time.Second)
	if longer.Timeout != 10*time.Second || longer.RunTimeout != time.Second || longer.RawTimeout != 50*time.Millisecond {
		t.Fatalf("sub-budgets should be untouched: %+v", longer)
	}

	shorter := cfg.Evaluation.WithTimeout(40 * time.Millisecond)
	if shorter.RunTimeout != 40*time.Millisecond || shorter.RawTimeout != 20*time.Millisecond {
		t.Fatalf("sub-budgets should shrink: %+v", shorter)
	}
	if cfg.Evaluation.Timeout != 2*time.Second {
		t.Fatalf("receiver must not change: %+v", cfg.Evaluation)
	}
}
