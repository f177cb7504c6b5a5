// Command extract merges local page scans and runs letter extraction on
// them, printing the parsed fields as JSON. It is meant for tuning the
// extraction prompt without going through uploads and drafts.
//
//	go run ./cmd/extract [-out merged.pdf] page1.jpg page2.jpg ...
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"letterarchive/internal/config"
	"letterarchive/internal/service/extraction"
	"letterarchive/internal/service/merge"
)

func main() {
	out := flag.String("out", "", "Also write the merged PDF to this path")
	timeout := flag.Duration("timeout", 5*time.Minute, "Overall deadline including retries")
	verbose := flag.Bool("v", false, "Log retries and request details")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: extract [-out merged.pdf] [-v] file...")
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg := config.Load()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(cfg, flag.Args(), *out, *timeout, logger); err != nil {
		fmt.Fprintf(os.Stderr, "extract: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, paths []string, out string, timeout time.Duration, logger *slog.Logger) error {
	files := make([]merge.File, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files = append(files, merge.File{
			Name:        filepath.Base(p),
			ContentType: detectContentType(p, data),
			Data:        data,
		})
	}

	pdf, err := merge.Files(files)
	if err != nil {
		return err
	}
	pages, _ := merge.PageCount(pdf)
	logger.Info("merged input", "files", len(files), "pages", pages, "bytes", len(pdf))

	if out != "" {
		if err := os.WriteFile(out, pdf, 0o644); err != nil {
			return fmt.Errorf("write merged pdf: %w", err)
		}
	}

	client, err := extraction.NewClient(extraction.OptionsFromConfig(cfg), logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	parsed, err := client.ParseLetter(ctx, pdf)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(parsed)
}

// detectContentType prefers the file extension and falls back to sniffing.
func detectContentType(path string, data []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}
