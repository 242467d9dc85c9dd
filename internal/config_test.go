package internal

import (
	"strings"
	"testing"

	"github.com/starford/pile/internal/document"
	"github.com/starford/pile/internal/upload"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if got := cfg.Editor.Schema.Keys(); len(got) != 2 || got[0] != "title" || got[1] != "slug" {
		t.Errorf("default schema keys = %v", got)
	}
}

func TestEditorConfig_Schema(t *testing.T) {
	cases := []struct {
		name   string
		schema document.Schema
		ok     bool
	}{
		{"empty", nil, false},
		{"duplicate", document.TextSchema("title", "title"), false},
		{"blank key", document.Schema{{Key: "", Type: document.FieldText}}, false},
		{"unknown type", document.Schema{{Key: "n", Type: "number"}}, false},
		{"valid", document.TextSchema("title", "author"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := EditorConfig{Schema: tc.schema}
			err := cfg.Validate()
			if tc.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestUploadConfig(t *testing.T) {
	cfg := UploadConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty upload config: %v", err)
	}
	if cfg.Mode != upload.ModeStub {
		t.Errorf("mode = %q, want stub", cfg.Mode)
	}
	if err := (&UploadConfig{Mode: "ftp"}).Validate(); err == nil {
		t.Error("unknown mode should fail")
	}
	if err := (&UploadConfig{Mode: upload.ModeStamped, BaseURL: "not a url"}).Validate(); err == nil {
		t.Error("bad base url should fail")
	}
	if err := (&UploadConfig{Mode: upload.ModeVault, BaseURL: "https://cdn.test"}).Validate(); err != nil {
		t.Errorf("valid config: %v", err)
	}
}
