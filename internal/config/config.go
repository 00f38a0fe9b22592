package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/tailscale/hujson"
)

// Sidecar naming variants.
const (
	MetadataSuffix       = ".metadata.json"
	LegacyMetadataSuffix = ".manifest.json"

	BedrockSourceURIKey = "x-amz-bedrock-kb-source-uri"
	NeutralSourceURIKey = "source-uri"
)

// Options are the per-document build options. They are captured once and
// passed by value into the assembler.
type Options struct {
	IncludeHeader     bool   `json:"include_header"`
	IncludeMetadata   bool   `json:"include_metadata"`
	UseTitleAttribute bool   `json:"use_title_attribute"`
	BaseURL           string `json:"base_url"`
	OutputSuffix      string `json:"output_suffix"`

	// Sidecar file suffix appended after OutputSuffix.
	MetadataSuffix string `json:"metadata_suffix"`
	// Key of the source URI attribute in the sidecar.
	SourceURIKey string `json:"source_uri_key"`

	// TextWidth wraps paragraphs. Zero disables wrapping.
	TextWidth int `json:"text_width"`
}

// DefaultOptions returns the option defaults.
func DefaultOptions() Options {
	return Options{
		OutputSuffix:   ".md",
		MetadataSuffix: MetadataSuffix,
		SourceURIKey:   BedrockSourceURIKey,
	}
}

func (o Options) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.OutputSuffix, validation.Required, validation.By(startsWithDot)),
		validation.Field(&o.MetadataSuffix, validation.Required, validation.By(startsWithDot)),
		// The sidecar already carries a "title" attribute.
		validation.Field(&o.SourceURIKey, validation.Required, validation.NotIn("title")),
		validation.Field(&o.TextWidth, validation.Min(0)),
	)
}

// BodyFile returns the output name of a document's body.
func (o Options) BodyFile(docname string) string {
	return docname + o.OutputSuffix
}

// SidecarFile returns the output name of a document's sidecar.
func (o Options) SidecarFile(docname string) string {
	return o.BodyFile(docname) + o.MetadataSuffix
}

func startsWithDot(value any) error {
	s, _ := value.(string)
	if !strings.HasPrefix(s, ".") {
		return validation.NewError("mdbuild.config.suffix", "must start with a dot")
	}
	return nil
}

type Config struct {
	Port string

	// Auth
	APIKey string

	// Build directories
	SourceDir string
	OutDir    string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// PDF
	PDFFallbackPdftotext bool

	Options Options
}

func Load() Config {
	defaults := DefaultOptions()
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("MDBUILD_API_KEY"),

		SourceDir: envOr("MDBUILD_SOURCE_DIR", "."),
		OutDir:    envOr("MDBUILD_OUT_DIR", "_build/markdown"),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),

		Options: Options{
			IncludeHeader:     envBool("MARKDOWN_INCLUDE_HEADER", false),
			IncludeMetadata:   envBool("MARKDOWN_INCLUDE_METADATA", false),
			UseTitleAttribute: envBool("MARKDOWN_USE_TITLE_ATTRIBUTE", false),
			BaseURL:           os.Getenv("MARKDOWN_BASE_URL"),
			OutputSuffix:      envOr("MARKDOWN_OUTPUT_SUFFIX", defaults.OutputSuffix),
			MetadataSuffix:    envOr("MARKDOWN_METADATA_SUFFIX", defaults.MetadataSuffix),
			SourceURIKey:      envOr("MARKDOWN_SOURCE_URI_KEY", defaults.SourceURIKey),
			TextWidth:         envInt("MARKDOWN_TEXT_WIDTH", 0),
		},
	}

	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.WorkerCount <= 0 {
		c.WorkerCount = 4
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = 100
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 52428800
	}
	if c.JobTTL <= 0 {
		c.JobTTL = 1 * time.Hour
	}
	if c.Options.TextWidth < 0 {
		c.Options.TextWidth = 0
	}
}

// Validate checks the build options. The API key is only required when
// serving, see ValidateServer.
func (c Config) Validate() error {
	if c.OutDir == "" {
		return fmt.Errorf("MDBUILD_OUT_DIR is required")
	}
	if err := c.Options.Validate(); err != nil {
		return fmt.Errorf("options: %w", err)
	}
	return nil
}

func (c Config) ValidateServer() error {
	if c.APIKey == "" {
		return fmt.Errorf("MDBUILD_API_KEY is required")
	}
	return c.Validate()
}

// fileOptions mirrors Options with pointer fields so an overlay only
// replaces what it sets.
type fileOptions struct {
	IncludeHeader     *bool   `json:"include_header"`
	IncludeMetadata   *bool   `json:"include_metadata"`
	UseTitleAttribute *bool   `json:"use_title_attribute"`
	BaseURL           *string `json:"base_url"`
	OutputSuffix      *string `json:"output_suffix"`
	MetadataSuffix    *string `json:"metadata_suffix"`
	SourceURIKey      *string `json:"source_uri_key"`
	TextWidth         *int    `json:"text_width"`
	SourceDir         *string `json:"source_dir"`
	OutDir            *string `json:"out_dir"`
	WorkerCount       *int    `json:"worker_count"`
}

// LoadFile overlays a JSON-with-comments config file onto base.
func LoadFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data, base)
}

// Parse overlays JSONC data onto base.
func Parse(data []byte, base Config) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var f fileOptions
	if err := json.Unmarshal(standardized, &f); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	cfg := base
	setBool(&cfg.Options.IncludeHeader, f.IncludeHeader)
	setBool(&cfg.Options.IncludeMetadata, f.IncludeMetadata)
	setBool(&cfg.Options.UseTitleAttribute, f.UseTitleAttribute)
	setString(&cfg.Options.BaseURL, f.BaseURL)
	setString(&cfg.Options.OutputSuffix, f.OutputSuffix)
	setString(&cfg.Options.MetadataSuffix, f.MetadataSuffix)
	setString(&cfg.Options.SourceURIKey, f.SourceURIKey)
	setInt(&cfg.Options.TextWidth, f.TextWidth)
	setString(&cfg.SourceDir, f.SourceDir)
	setString(&cfg.OutDir, f.OutDir)
	setInt(&cfg.WorkerCount, f.WorkerCount)

	cfg.applyDefaults()
	return cfg, nil
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
