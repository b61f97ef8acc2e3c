package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tapcanvas/threadgate/pkg/aliasstore"
	"tapcanvas/threadgate/pkg/cli"
)

// execute runs the root command with args and returns everything written
// to stdout and stderr.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	aliasesFlags.format = "text"
	runFlags.listenAddress = ""
	runFlags.logLevel = ""
	runFlags.dryRun = false

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	return buf.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		config   string
		wantErr  bool
		wantText string
	}{
		{
			name:     "valid",
			config:   "proxy:\n  listen_address: 127.0.0.1:9000\naliases:\n  backend: memory\n",
			wantText: "is valid",
		},
		{
			name:     "invalid listen address",
			config:   "proxy:\n  listen_address: nope\n",
			wantErr:  true,
			wantText: "proxy.listen_address",
		},
		{
			name:     "unknown backend",
			config:   "aliases:\n  backend: cassandra\n",
			wantErr:  true,
			wantText: "aliases.backend",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.config)
			out, err := execute(t, "validate", "--config", path)

			if tt.wantErr {
				if cli.ExitCode(err) != cli.ExitConfig {
					t.Fatalf("expected config error, got %v", err)
				}
			} else if err != nil {
				t.Fatalf("validate: %v", err)
			}
			if !strings.Contains(out, tt.wantText) {
				t.Errorf("output %q does not contain %q", out, tt.wantText)
			}
		})
	}
}

func TestValidate_MissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")
	out, err := execute(t, "validate", "--config", path)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "not found, defaults") || !strings.Contains(out, "127.0.0.1:8787") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRun_DryRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")
	out, err := execute(t, "run", "--dry-run", "--listen", "127.0.0.1:9911", "--log-level", "warn", "--config", path)
	if err != nil {
		t.Fatalf("run --dry-run: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") || !strings.Contains(out, "127.0.0.1:9911") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRun_InvalidOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")
	_, err := execute(t, "run", "--dry-run", "--log-level", "chatty", "--config", path)
	if cli.ExitCode(err) != cli.ExitConfig {
		t.Fatalf("expected config error, got %v", err)
	}
}

func seedAliases(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "aliases.db")

	store, err := aliasstore.NewSQLite(aliasstore.SQLiteConfig{Path: dbPath})
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	ctx := context.Background()
	if err := store.Upsert(ctx, "conv-42", "t_987", true); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.Upsert(ctx, "conv-7", "conv-7", false); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	return writeConfig(t, "aliases:\n  backend: sqlite\n  sqlite:\n    path: "+dbPath+"\n")
}

func TestAliasesList(t *testing.T) {
	cfgPath := seedAliases(t)

	t.Run("text", func(t *testing.T) {
		out, err := execute(t, "aliases", "list", "--config", cfgPath)
		if err != nil {
			t.Fatalf("aliases list: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(out), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header and 2 rows, got:\n%s", out)
		}
		if !strings.HasPrefix(lines[1], "conv-42") || !strings.Contains(lines[1], "t_987") {
			t.Errorf("row = %q", lines[1])
		}
	})

	t.Run("json", func(t *testing.T) {
		out, err := execute(t, "aliases", "list", "--format", "json", "--config", cfgPath)
		if err != nil {
			t.Fatalf("aliases list: %v", err)
		}
		var records []aliasstore.Record
		if err := json.Unmarshal([]byte(out), &records); err != nil {
			t.Fatalf("decode: %v\n%s", err, out)
		}
		if len(records) != 2 || records[0].Alias != "conv-42" || records[0].RefreshCount != 1 {
			t.Errorf("records = %+v", records)
		}
	})

	t.Run("bad format", func(t *testing.T) {
		if _, err := execute(t, "aliases", "list", "--format", "xml", "--config", cfgPath); err == nil {
			t.Fatal("expected error for unknown format")
		}
	})
}

func TestAliasesShow(t *testing.T) {
	cfgPath := seedAliases(t)

	out, err := execute(t, "aliases", "show", "conv-42", "--format", "json", "--config", cfgPath)
	if err != nil {
		t.Fatalf("aliases show: %v", err)
	}
	var rec aliasstore.Record
	if err := json.Unmarshal([]byte(out), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.InternalID != "t_987" {
		t.Errorf("record = %+v", rec)
	}

	_, err = execute(t, "aliases", "show", "missing", "--config", cfgPath)
	var nf *cli.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if cli.ExitCode(err) != cli.ExitNotFound {
		t.Errorf("exit code = %d", cli.ExitCode(err))
	}
}
