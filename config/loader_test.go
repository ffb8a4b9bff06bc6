package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// newTestLoader isolates a loader from the real home, cwd and environment.
func newTestLoader(home, cwd string, environ ...string) *Loader {
	l := NewLoader(nil)
	l.homeDir = func() (string, error) { return home, nil }
	l.workDir = func() (string, error) { return cwd, nil }
	l.environ = func() []string { return environ }
	return l
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoader_Layers(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	cwd := filepath.Join(project, "sub", "dir")
	if err := os.MkdirAll(cwd, 0755); err != nil {
		t.Fatal(err)
	}

	writeConfig(t, filepath.Join(home, UserConfigDir, UserConfigFile), `
directory:
  gateway_url: "http://user-gateway"
notifier:
  org_root: "d:user_root"
  workers: 2
`)
	writeConfig(t, filepath.Join(project, ProjectConfigFile), `
notifier:
  org_root: "d:project_root"
`)
	explicit := filepath.Join(t.TempDir(), "explicit.yaml")
	writeConfig(t, explicit, `
notifier:
  interval: 5m
`)

	l := newTestLoader(home, cwd,
		"CONTRACTNOTIFY_NOTIFIER_WORKERS=16",
		"CONTRACTNOTIFY_MAIL_TEMPLATES=a/*.yaml,b/**/*.yaml",
		"CONTRACTNOTIFY_DIRECTORY_CALL_TIMEOUT=2s",
		"UNRELATED_NOTIFIER_WORKERS=99",
	)

	cfg, err := l.Load(explicit)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Directory.GatewayURL != "http://user-gateway" {
		t.Errorf("user layer lost: %s", cfg.Directory.GatewayURL)
	}
	if cfg.Notifier.OrgRoot != "d:project_root" {
		t.Errorf("project layer should override user layer, got %s", cfg.Notifier.OrgRoot)
	}
	if cfg.Notifier.Interval.Duration() != 5*time.Minute {
		t.Errorf("explicit layer lost: %s", cfg.Notifier.Interval)
	}
	if cfg.Notifier.Workers != 16 {
		t.Errorf("environment should win, got %d workers", cfg.Notifier.Workers)
	}
	if cfg.Directory.CallTimeout.Duration() != 2*time.Second {
		t.Errorf("expected env call timeout, got %s", cfg.Directory.CallTimeout)
	}
	if len(cfg.Mail.Templates) != 2 || cfg.Mail.Templates[1] != "b/**/*.yaml" {
		t.Errorf("expected env templates, got %v", cfg.Mail.Templates)
	}
}

func TestLoader_MissingExplicitFile(t *testing.T) {
	l := newTestLoader(t.TempDir(), t.TempDir())
	if _, err := l.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestLoader_ValidationFailure(t *testing.T) {
	l := newTestLoader(t.TempDir(), t.TempDir())
	if _, err := l.Load(""); err == nil {
		t.Error("expected validation error without org root")
	}

	cfg, err := l.LoadUnvalidated("")
	if err != nil {
		t.Fatalf("LoadUnvalidated failed: %v", err)
	}
	if cfg.Notifier.Workers != 4 {
		t.Errorf("expected defaults, got %d workers", cfg.Notifier.Workers)
	}
}

func TestLoader_BadEnvironment(t *testing.T) {
	l := newTestLoader(t.TempDir(), t.TempDir(), "CONTRACTNOTIFY_NOTIFIER_INTERVAL=whenever")
	if _, err := l.LoadUnvalidated(""); err == nil {
		t.Error("expected error for invalid duration in environment")
	}
}

func TestLoader_EnsureUserConfig(t *testing.T) {
	home := t.TempDir()
	l := newTestLoader(home, t.TempDir())

	if err := l.EnsureUserConfig(); err != nil {
		t.Fatalf("EnsureUserConfig failed: %v", err)
	}
	path := filepath.Join(home, UserConfigDir, UserConfigFile)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("user config not created: %v", err)
	}

	// Second call leaves the file alone
	writeConfig(t, path, "notifier:\n  org_root: d:mine\n")
	if err := l.EnsureUserConfig(); err != nil {
		t.Fatalf("EnsureUserConfig failed: %v", err)
	}
	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Notifier.OrgRoot != "d:mine" {
		t.Errorf("user config was overwritten")
	}
}
