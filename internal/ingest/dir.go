package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/h2non/filetype"

	"github.com/decimal-labs/leakwatch/internal/common"
	"github.com/decimal-labs/leakwatch/internal/model"
)

// DefaultMaxFileSize bounds how much of a single file is loaded.
const DefaultMaxFileSize = 10 << 20

// DirSource turns every regular file under Root into a document. Files that
// are not text are still emitted, flagged as binary, so the pipeline can
// count them as failures instead of silently dropping them.
type DirSource struct {
	logger      *slog.Logger
	Root        string
	MaxFileSize int64
	// IncludeHidden also walks dot-files and dot-directories.
	IncludeHidden bool
}

// NewDirSource creates a source over root.
func NewDirSource(root string, logger *slog.Logger) *DirSource {
	return &DirSource{Root: root, MaxFileSize: DefaultMaxFileSize, logger: common.OrDefault(logger)}
}

// Stream implements Source.
func (s *DirSource) Stream(ctx context.Context, out chan<- model.Document) error {
	root, err := filepath.Abs(s.Root)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", s.Root, err)
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("Skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path != root && !s.IncludeHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		doc, err := s.load(path, d)
		if err != nil {
			s.logger.Warn("Skipping file", "path", path, "error", err)
			return nil
		}
		return send(ctx, out, doc)
	})
}

func (s *DirSource) load(path string, d fs.DirEntry) (model.Document, error) {
	info, err := d.Info()
	if err != nil {
		return model.Document{}, err
	}
	limit := s.MaxFileSize
	if limit <= 0 {
		limit = DefaultMaxFileSize
	}
	if info.Size() > limit {
		return model.Document{}, fmt.Errorf("file is %d bytes, limit is %d", info.Size(), limit)
	}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from the walk
	if err != nil {
		return model.Document{}, err
	}

	return model.Document{
		Source:       "file://" + filepath.ToSlash(path),
		Text:         string(data),
		ByteLength:   len(data),
		DiscoveredAt: info.ModTime(),
		Binary:       isBinary(data),
	}, nil
}

// isBinary reports whether data is a recognised non-text format or not UTF-8.
func isBinary(data []byte) bool {
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
		mime := kind.MIME.Value
		if !strings.HasPrefix(mime, "text/") && !strings.Contains(mime, "xml") && !strings.Contains(mime, "json") {
			return true
		}
	}
	return !utf8.Valid(data)
}
