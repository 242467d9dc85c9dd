package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	valid bool
}

func (s *sample) Validate() error {
	if s.Port == 0 {
		return errors.New("port is required")
	}
	s.valid = true
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_ExpandsEnvAndValidates(t *testing.T) {
	t.Setenv("PILE_TEST_PORT", "9090")
	p := writeFile(t, "name: pile\nport: ${PILE_TEST_PORT}\n")

	var cfg sample
	if err := Load(p, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "pile" || cfg.Port != 9090 || !cfg.valid {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_KeepsDefaults(t *testing.T) {
	p := writeFile(t, "port: 1\n")
	cfg := sample{Name: "default"}
	if err := Load(p, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "default" {
		t.Errorf("name = %q, want default kept", cfg.Name)
	}
}

func TestLoad_Errors(t *testing.T) {
	var cfg sample
	if err := Load(filepath.Join(t.TempDir(), "missing.yaml"), &cfg); err == nil {
		t.Error("missing file should fail")
	}
	if err := Load(writeFile(t, "port: [unclosed\n"), &cfg); err == nil {
		t.Error("invalid yaml should fail")
	}
	err := Load(writeFile(t, "name: x\n"), &sample{})
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("validation error = %v", err)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	fallback := writeFile(t, "port: 7\n")
	var cfg sample
	if err := LoadWithDefaults(filepath.Join(t.TempDir(), "absent.yaml"), fallback, &cfg); err != nil {
		t.Fatalf("LoadWithDefaults: %v", err)
	}
	if cfg.Port != 7 {
		t.Errorf("port = %d", cfg.Port)
	}
	if err := LoadWithDefaults(filepath.Join(t.TempDir(), "absent.yaml"), "", &cfg); err == nil {
		t.Error("missing file without fallback should fail")
	}
}

func TestDecode(t *testing.T) {
	var cfg sample
	if err := Decode([]byte("port: 3\n"), &cfg); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Port != 3 {
		t.Errorf("port = %d", cfg.Port)
	}
}

func TestMustLoad_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	var cfg sample
	MustLoad(filepath.Join(t.TempDir(), "missing.yaml"), &cfg)
}
