package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "zero start page",
			mutate: func(cfg *Config) {
				cfg.StartPage = 0
			},
			wantErr: "start page",
		},
		{
			name: "end before start",
			mutate: func(cfg *Config) {
				cfg.StartPage = 5
				cfg.EndPage = 2
			},
			wantErr: "end page",
		},
		{
			name: "end id before start id",
			mutate: func(cfg *Config) {
				cfg.StartID = 20
				cfg.EndID = 10
			},
			wantErr: "end id",
		},
		{
			name: "end id without start id",
			mutate: func(cfg *Config) {
				cfg.EndID = 10
			},
			wantErr: "start id",
		},
		{
			name: "empty listing url",
			mutate: func(cfg *Config) {
				cfg.ListingURL = ""
			},
			wantErr: "listing URL",
		},
		{
			name: "invalid url format",
			mutate: func(cfg *Config) {
				cfg.DocumentURL = "http://"
			},
			wantErr: "document URL",
		},
		{
			name: "item format without placeholder",
			mutate: func(cfg *Config) {
				cfg.ItemURLFormat = "https://tululu.org/b/"
			},
			wantErr: "item URL format",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "backoff above cap",
			mutate: func(cfg *Config) {
				cfg.RetryBackoff = 5 * time.Second
				cfg.RetryBackoffMax = time.Second
			},
			wantErr: "retry backoff",
		},
		{
			name: "zero columns",
			mutate: func(cfg *Config) {
				cfg.Columns = 0
			},
			wantErr: "columns",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestUnlimitedRetriesValid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRetries = -1
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unlimited retries should validate, got %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.yaml")
	content := "start_page: 3\nend_page: 4\nskip_imgs: true\nretry_backoff: 250ms\nretry_backoff_max: 2s\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFile(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StartPage != 3 || cfg.EndPage != 4 {
		t.Fatalf("pages = %d..%d, want 3..4", cfg.StartPage, cfg.EndPage)
	}
	if !cfg.SkipImages {
		t.Fatalf("skip images not applied")
	}
	if cfg.RetryBackoff != 250*time.Millisecond || cfg.RetryBackoffMax != 2*time.Second {
		t.Fatalf("backoff = %s/%s", cfg.RetryBackoff, cfg.RetryBackoffMax)
	}
	if cfg.ListingURL != DefaultConfig().ListingURL {
		t.Fatalf("unset keys should keep defaults, got %q", cfg.ListingURL)
	}
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.yaml")
	if err := os.WriteFile(path, []byte("start_pgae: 3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := DefaultConfig().LoadFile(path); err == nil {
		t.Fatalf("expected unknown key error")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("LIBRARY_START_PAGE", "7")
	t.Setenv("LIBRARY_DEST_FOLDER", "/tmp/library")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.StartPage != 7 {
		t.Fatalf("start page = %d, want 7", cfg.StartPage)
	}
	if cfg.CatalogPath() != filepath.Join("/tmp/library", "books.json") {
		t.Fatalf("catalog path = %q", cfg.CatalogPath())
	}

	t.Setenv("LIBRARY_END_PAGE", "many")
	if err := cfg.ApplyEnv(); err == nil {
		t.Fatalf("expected invalid integer error")
	}
}
