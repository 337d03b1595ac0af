package report

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// DefaultPath is where the report is written when none is configured.
const DefaultPath = "index.html"

// FileWriter publishes report documents at a fixed path, replacing the
// previous report each time. When MarkdownPath is set, a Markdown rendition
// of the same document is written alongside.
type FileWriter struct {
	Path         string
	MarkdownPath string
	Logger       *slog.Logger

	md *converter.Converter
}

// NewFileWriter creates a FileWriter. An empty path means DefaultPath.
func NewFileWriter(path, markdownPath string, logger *slog.Logger) *FileWriter {
	if path == "" {
		path = DefaultPath
	}
	if logger == nil {
		logger = slog.Default()
	}
	w := &FileWriter{Path: path, MarkdownPath: markdownPath, Logger: logger}
	if markdownPath != "" {
		w.md = newMarkdownConverter()
	}
	return w
}

func newMarkdownConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
}

// Write replaces the report at w.Path with doc.
func (w *FileWriter) Write(_ context.Context, doc []byte) error {
	if err := writeFileAtomic(w.Path, doc); err != nil {
		return fmt.Errorf("report: write %s: %w", w.Path, err)
	}
	w.Logger.Debug("report: written", "path", w.Path, "size", len(doc))

	if w.md == nil {
		return nil
	}
	md, err := w.md.ConvertString(string(doc))
	if err != nil {
		return fmt.Errorf("report: markdown: %w", err)
	}
	md = strings.TrimSpace(md) + "\n"
	if err := writeFileAtomic(w.MarkdownPath, []byte(md)); err != nil {
		return fmt.Errorf("report: write %s: %w", w.MarkdownPath, err)
	}
	w.Logger.Debug("report: markdown written", "path", w.MarkdownPath, "size", len(md))
	return nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it over path, so readers never see a partial report.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
