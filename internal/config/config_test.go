package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Options.OutputSuffix != ".md" {
		t.Errorf("expected output suffix %q, got %q", ".md", cfg.Options.OutputSuffix)
	}
	if cfg.Options.MetadataSuffix != MetadataSuffix {
		t.Errorf("expected metadata suffix %q, got %q", MetadataSuffix, cfg.Options.MetadataSuffix)
	}
	if cfg.Options.SourceURIKey != BedrockSourceURIKey {
		t.Errorf("expected source uri key %q, got %q", BedrockSourceURIKey, cfg.Options.SourceURIKey)
	}
	if cfg.Options.IncludeHeader || cfg.Options.IncludeMetadata || cfg.Options.UseTitleAttribute {
		t.Errorf("expected feature flags off by default, got %+v", cfg.Options)
	}
	if cfg.WorkerCount != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.WorkerCount)
	}
	if cfg.JobTTL != time.Hour {
		t.Errorf("expected 1h job TTL, got %s", cfg.JobTTL)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("MARKDOWN_INCLUDE_HEADER", "true")
	t.Setenv("MARKDOWN_INCLUDE_METADATA", "1")
	t.Setenv("MARKDOWN_BASE_URL", "https://x/y")
	t.Setenv("MARKDOWN_METADATA_SUFFIX", LegacyMetadataSuffix)
	t.Setenv("WORKER_COUNT", "-3")

	cfg := Load()
	if !cfg.Options.IncludeHeader || !cfg.Options.IncludeMetadata {
		t.Errorf("expected header and metadata enabled, got %+v", cfg.Options)
	}
	if cfg.Options.BaseURL != "https://x/y" {
		t.Errorf("expected base url from env, got %q", cfg.Options.BaseURL)
	}
	if cfg.Options.MetadataSuffix != LegacyMetadataSuffix {
		t.Errorf("expected legacy suffix, got %q", cfg.Options.MetadataSuffix)
	}
	if cfg.WorkerCount != 4 {
		t.Errorf("expected invalid worker count to fall back to 4, got %d", cfg.WorkerCount)
	}
}

func TestParse_JSONCOverlay(t *testing.T) {
	data := []byte(`{
		// build options
		"include_metadata": true,
		"base_url": "/path/to/site_root",
		"source_uri_key": "source-uri", // neutral key
		"out_dir": "out",
	}`)

	base := Load()
	base.Options.IncludeHeader = true

	cfg, err := Parse(data, base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Options.IncludeMetadata {
		t.Error("expected include_metadata from file")
	}
	if !cfg.Options.IncludeHeader {
		t.Error("expected unset keys to keep the base value")
	}
	if cfg.Options.SourceURIKey != NeutralSourceURIKey {
		t.Errorf("expected %q, got %q", NeutralSourceURIKey, cfg.Options.SourceURIKey)
	}
	if cfg.OutDir != "out" {
		t.Errorf("expected out dir %q, got %q", "out", cfg.OutDir)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte(`{"include_header": `), Load()); err == nil {
		t.Error("expected error for truncated config")
	}
	if _, err := Parse([]byte(`{"include_header": "yes"}`), Load()); err == nil {
		t.Error("expected error for wrong value type")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mdbuild.json")
	if err := os.WriteFile(path, []byte(`{"output_suffix": ".txt"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path, Load())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Options.OutputSuffix != ".txt" {
		t.Errorf("expected %q, got %q", ".txt", cfg.Options.OutputSuffix)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"), Load()); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"suffix without dot", func(c *Config) { c.Options.OutputSuffix = "md" }, true},
		{"empty suffix", func(c *Config) { c.Options.OutputSuffix = "" }, true},
		{"empty sidecar suffix", func(c *Config) { c.Options.MetadataSuffix = "" }, true},
		{"empty source uri key", func(c *Config) { c.Options.SourceURIKey = "" }, true},
		{"source uri key shadows title", func(c *Config) { c.Options.SourceURIKey = "title" }, true},
		{"neutral source uri key", func(c *Config) { c.Options.SourceURIKey = NeutralSourceURIKey }, false},
		{"empty out dir", func(c *Config) { c.OutDir = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateServer_RequiresAPIKey(t *testing.T) {
	cfg := Load()
	cfg.APIKey = ""
	if err := cfg.ValidateServer(); err == nil {
		t.Error("expected error without API key")
	}
	cfg.APIKey = "secret"
	if err := cfg.ValidateServer(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestOptions_FileNames(t *testing.T) {
	opts := DefaultOptions()
	if got := opts.BodyFile("guide/intro"); got != "guide/intro.md" {
		t.Errorf("BodyFile = %q", got)
	}
	opts.OutputSuffix = ".txt"
	opts.MetadataSuffix = LegacyMetadataSuffix
	if got := opts.SidecarFile("guide/intro"); got != "guide/intro.txt.manifest.json" {
		t.Errorf("SidecarFile = %q", got)
	}
}
