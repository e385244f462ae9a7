package env

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileIsIgnored(t *testing.T) {
	if err := Load(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Fatalf("expected nil error for missing file, got %v", err)
	}
}

func TestLoadDoesNotOverrideExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	content := "BPSIM_TEST_KEEP=from-file\nBPSIM_TEST_NEW=fresh\nENVIRONMENT=production\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("BPSIM_TEST_KEEP", "from-env")
	t.Setenv("BPSIM_TEST_NEW", "")
	os.Unsetenv("BPSIM_TEST_NEW")
	t.Setenv("ENVIRONMENT", "")
	os.Unsetenv("ENVIRONMENT")
	defer func() { environment = os.Getenv("ENVIRONMENT") }()

	if err := Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if v := os.Getenv("BPSIM_TEST_KEEP"); v != "from-env" {
		t.Errorf("expected existing value to win, got %q", v)
	}
	if v := os.Getenv("BPSIM_TEST_NEW"); v != "fresh" {
		t.Errorf("expected value from file, got %q", v)
	}
	if !IsProduction() || !IsRemote() {
		t.Errorf("expected ENVIRONMENT from file to be applied, got %q", GetEnvironment())
	}
}

func TestGetEnvironmentDefaultsToLocal(t *testing.T) {
	prev := environment
	defer func() { environment = prev }()

	environment = ""
	if GetEnvironment() != "local" {
		t.Errorf("expected local, got %s", GetEnvironment())
	}
	if !IsLocal() {
		t.Error("expected IsLocal for empty environment")
	}
}
