// Package ingest turns source documents into plain text for extraction.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// DefaultMaxFileSizeMB is the largest file accepted when Config leaves it unset.
const DefaultMaxFileSizeMB = 100

// Formats.
const (
	FormatText     = "txt"
	FormatMarkdown = "md"
	FormatCSV      = "csv"
	FormatXLSX     = "xlsx"
	FormatPDF      = "pdf"
)

// DefaultFormats are the formats accepted when Config leaves them unset.
var DefaultFormats = []string{FormatText, FormatMarkdown, FormatCSV, FormatXLSX, FormatPDF}

var imageFormats = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "gif": true,
	"bmp": true, "tif": true, "tiff": true, "webp": true,
}

var formatAliases = map[string]string{
	"text":     FormatText,
	"markdown": FormatMarkdown,
	"xlsm":     FormatXLSX,
}

// Document is the text pulled out of one source file.
type Document struct {
	Path   string `json:"path" yaml:"path"`
	Format string `json:"format" yaml:"format"`
	Text   string `json:"text" yaml:"text"`
	// Pages is the PDF page count or the spreadsheet sheet count, 1 otherwise.
	Pages int   `json:"pages" yaml:"pages"`
	Size  int64 `json:"size" yaml:"size"`
}

// Config configures a Reader.
type Config struct {
	MaxFileSizeMB    int
	SupportedFormats []string
	Logger           *slog.Logger
}

// Reader validates and decodes documents.
type Reader struct {
	maxBytes int64
	formats  map[string]bool
	logger   *slog.Logger
}

// NewReader creates a Reader, filling unset Config fields with defaults.
func NewReader(cfg Config) *Reader {
	if cfg.MaxFileSizeMB <= 0 {
		cfg.MaxFileSizeMB = DefaultMaxFileSizeMB
	}
	if len(cfg.SupportedFormats) == 0 {
		cfg.SupportedFormats = DefaultFormats
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	formats := make(map[string]bool, len(cfg.SupportedFormats))
	for _, f := range cfg.SupportedFormats {
		formats[normalizeFormat(f)] = true
	}
	return &Reader{
		maxBytes: int64(cfg.MaxFileSizeMB) * 1024 * 1024,
		formats:  formats,
		logger:   cfg.Logger.With("component", "ingest"),
	}
}

// Formats returns the accepted formats, sorted.
func (r *Reader) Formats() []string {
	out := make([]string, 0, len(r.formats))
	for f := range r.formats {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Read validates the file at path and decodes its text.
func (r *Reader) Read(ctx context.Context, path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &FileNotFoundError{Path: path}
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > r.maxBytes {
		return nil, &FileTooLargeError{Path: path, Size: info.Size(), Limit: r.maxBytes}
	}
	if _, err := r.format(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return r.Decode(ctx, path, data)
}

// Decode decodes data as the format named by the extension of name. It
// applies the same size and format checks as Read.
func (r *Reader) Decode(ctx context.Context, name string, data []byte) (*Document, error) {
	if int64(len(data)) > r.maxBytes {
		return nil, &FileTooLargeError{Path: name, Size: int64(len(data)), Limit: r.maxBytes}
	}
	format, err := r.format(name)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc := &Document{Path: name, Format: format, Pages: 1, Size: int64(len(data))}
	switch format {
	case FormatText, FormatMarkdown:
		doc.Text = decodeText(data)
	case FormatCSV:
		doc.Text, err = readCSV(bytes.NewReader(data))
	case FormatXLSX:
		doc.Text, doc.Pages, err = readXLSX(bytes.NewReader(data))
	case FormatPDF:
		doc.Text, doc.Pages, err = r.readPDF(ctx, data)
	default:
		err = &UnsupportedFormatError{Path: name, Format: format}
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}

	r.logger.Debug("document decoded",
		"path", name,
		"format", format,
		"pages", doc.Pages,
		"chars", utf8.RuneCountInString(doc.Text))
	return doc, nil
}

func (r *Reader) format(path string) (string, error) {
	format := normalizeFormat(filepath.Ext(path))
	if imageFormats[format] {
		return "", &UnsupportedFormatError{
			Path:   path,
			Format: format,
			Reason: "text extraction from images (OCR) is not supported",
		}
	}
	if !r.formats[format] {
		return "", &UnsupportedFormatError{Path: path, Format: format}
	}
	return format, nil
}

func normalizeFormat(f string) string {
	f = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(f), "."))
	if alias, ok := formatAliases[f]; ok {
		return alias
	}
	return f
}

func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data)
	}
	// Treat invalid UTF-8 as Latin-1.
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}

var numberSuffixRe = regexp.MustCompile(`[-_](\d+)\.[^.]+$`)

// SortPaths orders paths by their numeric suffix, so "parts-2.csv" comes
// before "parts-10.csv". Paths without a suffix come first, alphabetically.
func SortPaths(paths []string) []string {
	sorted := make([]string, len(paths))
	copy(sorted, paths)

	sort.SliceStable(sorted, func(i, j int) bool {
		mi := numberSuffixRe.FindStringSubmatch(sorted[i])
		mj := numberSuffixRe.FindStringSubmatch(sorted[j])

		if len(mi) > 1 && len(mj) > 1 {
			ni, _ := strconv.Atoi(mi[1])
			nj, _ := strconv.Atoi(mj[1])
			if ni != nj {
				return ni < nj
			}
			return sorted[i] < sorted[j]
		}
		if len(mi) > 1 {
			return false
		}
		if len(mj) > 1 {
			return true
		}
		return sorted[i] < sorted[j]
	})
	return sorted
}

// SourceName derives a display name from a path: the base name without
// extension.
func SourceName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
