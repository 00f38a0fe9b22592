// Command mdbuild builds every supported document under a source directory
// into markdown text files, with optional front matter and sidecar metadata.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/dgallion1/mdbuild/internal/config"
	"github.com/dgallion1/mdbuild/internal/parser"
	"github.com/dgallion1/mdbuild/internal/pipeline"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, out, errOut io.Writer) int {
	flagSet := flag.NewFlagSet("mdbuild", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	configPath := flagSet.StringP("config", "c", "", "JSON-with-comments config file")
	sourceDir := flagSet.StringP("source", "s", "", "Source directory")
	outDir := flagSet.StringP("out", "o", "", "Output directory")
	workers := flagSet.IntP("workers", "j", 0, "Documents built in parallel")
	header := flagSet.Bool("header", false, "Prefix each body with YAML front matter")
	metadata := flagSet.Bool("metadata", false, "Write a sidecar metadata file per document")
	titleAttr := flagSet.Bool("title-attribute", false, "Prefer the document title attribute over the first heading")
	baseURL := flagSet.String("base-url", "", "Base URL for page and self URLs")
	suffix := flagSet.String("suffix", "", "Body file suffix")
	metadataSuffix := flagSet.String("metadata-suffix", "", "Sidecar suffix appended to the body file name")
	sourceURIKey := flagSet.String("source-uri-key", "", "Sidecar attribute key holding the page URL")
	width := flagSet.Int("width", 0, "Wrap paragraphs at this width (0 disables)")
	verbose := flagSet.BoolP("verbose", "v", false, "Log unhandled node kinds and per-document progress")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(out, "Usage: mdbuild [flags]")
			fmt.Fprint(out, flagSet.FlagUsages())
			return 0
		}
		fmt.Fprintln(errOut, "error:", err)
		return 2
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))

	cfg := config.Load()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFile(*configPath, cfg); err != nil {
			fmt.Fprintln(errOut, "error:", err)
			return 1
		}
	}

	// Flags win over env and config file.
	changed := flagSet.Changed
	if changed("source") {
		cfg.SourceDir = *sourceDir
	}
	if changed("out") {
		cfg.OutDir = *outDir
	}
	if changed("workers") && *workers > 0 {
		cfg.WorkerCount = *workers
	}
	if changed("header") {
		cfg.Options.IncludeHeader = *header
	}
	if changed("metadata") {
		cfg.Options.IncludeMetadata = *metadata
	}
	if changed("title-attribute") {
		cfg.Options.UseTitleAttribute = *titleAttr
	}
	if changed("base-url") {
		cfg.Options.BaseURL = *baseURL
	}
	if changed("suffix") {
		cfg.Options.OutputSuffix = *suffix
	}
	if changed("metadata-suffix") {
		cfg.Options.MetadataSuffix = *metadataSuffix
	}
	if changed("source-uri-key") {
		cfg.Options.SourceURIKey = *sourceURIKey
	}
	if changed("width") {
		cfg.Options.TextWidth = *width
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(errOut, "error: invalid configuration:", err)
		return 1
	}

	sources, err := collectSources(cfg.SourceDir, cfg.OutDir, log)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	if len(sources) == 0 {
		fmt.Fprintln(errOut, "error: no supported documents in", cfg.SourceDir)
		return 1
	}

	orch := pipeline.NewOrchestrator(cfg, pipeline.FSSink{Dir: cfg.OutDir}, log)
	outcomes := orch.BuildAll(ctx, sources)

	failed := 0
	for _, oc := range outcomes {
		if oc.Err != nil {
			failed++
			fmt.Fprintf(errOut, "FAIL %s: %v\n", oc.Source.Docname, oc.Err)
			continue
		}
		line := oc.Result.BodyFile
		if oc.Result.SidecarFile != "" {
			line += " " + oc.Result.SidecarFile
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "built %d of %d documents into %s\n", len(outcomes)-failed, len(outcomes), cfg.OutDir)

	if failed > 0 {
		return 1
	}
	return 0
}

// collectSources walks root for supported files in lexical order. Hidden
// directories and the output directory are skipped. When two files map to
// the same docname the first one wins.
func collectSources(root, outDir string, log *slog.Logger) ([]pipeline.Source, error) {
	absOut, _ := filepath.Abs(outDir)
	seen := make(map[string]string)

	var sources []pipeline.Source
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if abs, _ := filepath.Abs(path); abs == absOut {
				return filepath.SkipDir
			}
			return nil
		}
		if !parser.IsSupportedExtension(path) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		docname := parser.Docname(rel)
		if prev, ok := seen[docname]; ok {
			log.Warn("duplicate docname, skipping", "docname", docname, "file", rel, "kept", prev)
			return nil
		}
		seen[docname] = rel

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", rel, err)
		}
		sources = append(sources, pipeline.Source{Docname: docname, Filename: filepath.Base(path), Data: data})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return sources, nil
}
