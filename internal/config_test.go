package internal

import (
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/inkwell/pkg/config"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should pass: %v", err)
	}
	if cfg.App.HTTP.Address() != ":8080" {
		t.Errorf("address = %q", cfg.App.HTTP.Address())
	}
}

func TestStorageConfig_Backends(t *testing.T) {
	for _, backend := range []string{"fs", "badger", "sqlite"} {
		cfg := StorageConfig{Backend: backend, Path: "./data"}
		if err := cfg.Validate(); err != nil {
			t.Errorf("backend %q should pass: %v", backend, err)
		}
	}

	cfg := StorageConfig{Backend: "postgres", Path: "./data"}
	if err := cfg.Validate(); err == nil {
		t.Error("unknown backend should fail validation")
	}

	cfg = StorageConfig{Backend: "fs"}
	if err := cfg.Validate(); err == nil {
		t.Error("empty path should fail validation")
	}
}

func TestAuthConfig_GeneratedKeyNeedsDataDir(t *testing.T) {
	cfg := AuthConfig{TokenTTL: time.Hour}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("missing key and data dir should fail")
	}
	if !strings.Contains(err.Error(), "DataDir") {
		t.Errorf("unexpected error: %v", err)
	}

	cfg.TokenKey = strings.Repeat("ab", 32)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("explicit key without data dir should pass: %v", err)
	}
}

func TestAuthConfig_TokenKeyFormat(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"short", strings.Repeat("ab", 16)},
		{"not hex", strings.Repeat("zz", 32)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := AuthConfig{TokenKey: tt.key, TokenTTL: time.Hour, DataDir: "./data"}
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), "TokenKey") {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestAuthConfig_TTLTooShort(t *testing.T) {
	cfg := AuthConfig{TokenTTL: time.Second, DataDir: "./data"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("sub-minute ttl should fail")
	}
}

func TestHTTPConfig_CORSOrigins(t *testing.T) {
	cfg := HTTPConfig{Port: 8080, CORSOrigins: []string{"http://localhost:5173", "*"}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid origins should pass: %v", err)
	}
	cfg.CORSOrigins = []string{""}
	if err := cfg.Validate(); err == nil {
		t.Error("empty origin should fail")
	}
}

func TestFullConfig_SectionErrorsArePrefixed(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.RateLimit.Burst = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch ratelimit error")
	}
	if !strings.HasPrefix(err.Error(), "ratelimit: ") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestExampleConfigLoads(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := pkgconfig.Load("../config/config.example.yaml", cfg); err != nil {
		t.Fatalf("example config: %v", err)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Errorf("token ttl = %v", cfg.Auth.TokenTTL)
	}
	if len(cfg.App.HTTP.CORSOrigins) != 1 {
		t.Errorf("cors origins = %v", cfg.App.HTTP.CORSOrigins)
	}
}
