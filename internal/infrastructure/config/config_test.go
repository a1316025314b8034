package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultsApplyWithNoConfigFiles(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	chdirTemp(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8790 {
		t.Errorf("expected default port 8790, got %d", cfg.Server.Port)
	}
	if cfg.Gate.DefaultMaxAttempts != 2 {
		t.Errorf("expected default max_attempts 2, got %d", cfg.Gate.DefaultMaxAttempts)
	}
}

func TestLoad_EnvOverridesDefault(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	chdirTemp(t)
	t.Setenv("PROMPTGATE_SERVER_PORT", "9100")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("expected env override to win, got %d", cfg.Server.Port)
	}
}

func TestLoad_LocalFileOverridesGlobal(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if err := os.MkdirAll(filepath.Join(home, AppDirName), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(home, AppDirName, "config.yaml"), []byte("server:\n  port: 7000\nlog:\n  level: warn\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	dir := chdirTemp(t)
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server:\n  port: 7001\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 7001 {
		t.Errorf("expected local config to override global port, got %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("expected global-only key to survive the merge, got %q", cfg.Log.Level)
	}
}

// chdirTemp switches the working directory to a fresh temp dir for the
// duration of the test and returns it.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
	return dir
}
