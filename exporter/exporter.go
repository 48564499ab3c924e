// Package exporter writes the merged catalog as a pretty-printed JSON array.
package exporter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/use-agent/gamedeck/models"
)

// FileSuffix ends every output file name.
const FileSuffix = "_xbox_games.json"

// Encode writes records to w as an indented JSON array. Characters such as
// '&' in URLs are written verbatim. An empty set is written as [].
func Encode(w io.Writer, records []models.Record) error {
	if records == nil {
		records = []models.Record{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return err
	}
	_, err := w.Write(bytes.TrimRight(buf.Bytes(), "\n"))
	return err
}

// WriteFile creates dir if needed and writes records to a new file named
// "<id>_xbox_games.json", returning its path.
func WriteFile(dir string, records []models.Record) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", models.NewScrapeError(models.ErrCodeOutput, "failed to create output directory", err)
	}

	path := filepath.Join(dir, uuid.NewString()[:4]+FileSuffix)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", models.NewScrapeError(models.ErrCodeOutput, "failed to create output file", err)
	}

	if err := Encode(f, records); err != nil {
		f.Close()
		return "", models.NewScrapeError(models.ErrCodeOutput, fmt.Sprintf("failed to write %s", path), err)
	}
	if err := f.Close(); err != nil {
		return "", models.NewScrapeError(models.ErrCodeOutput, fmt.Sprintf("failed to close %s", path), err)
	}

	slog.Info("results saved", "file", path, "dir", dir, "records", len(records))
	return path, nil
}
