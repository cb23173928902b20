package document

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/IgnacyBartnik/LLM-PDF-extractor/constants"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/entity"
)

var pdfHeader = []byte("%PDF-")

// Config bounds what the loader will accept.
type Config struct {
	MaxFileBytes int64 // 0 means constants.MaxFileBytesDefault
}

// Loader opens PDF byte streams and extracts their text layer page by page.
// It holds no per-call state; one Loader is safe for concurrent use.
type Loader struct {
	cfg Config
	log *slog.Logger
}

func NewLoader(cfg Config, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = constants.MaxFileBytesDefault
	}
	return &Loader{cfg: cfg, log: logger}
}

// Load validates the byte stream and extracts per-page text into a
// FormDocument. Pages that fail to parse are skipped with a recorded warning;
// the load fails only when no page yields any text. The input slice is never
// mutated and no temporary storage outlives the call.
func (l *Loader) Load(content []byte, filename string) (*entity.FormDocument, error) {
	start := time.Now()

	if len(content) == 0 {
		return nil, newError(KindEmpty, "empty byte stream", nil)
	}
	if len(content) < constants.MinFileBytes {
		return nil, newError(KindEmpty, fmt.Sprintf("file is too small (%d bytes)", len(content)), nil)
	}
	if int64(len(content)) > l.cfg.MaxFileBytes {
		return nil, newError(KindTooLarge,
			fmt.Sprintf("file is %d bytes, limit is %d", len(content), l.cfg.MaxFileBytes), nil)
	}
	if !bytes.HasPrefix(content, pdfHeader) {
		return nil, newError(KindInvalidFormat, "missing %PDF- header", nil)
	}

	reader, err := openReader(content)
	if err != nil {
		l.log.Warn("document.load.invalid", "filename", filename, "error", err)
		return nil, newError(KindInvalidFormat, "not a parseable PDF", err)
	}

	pageCount := reader.NumPage()
	if pageCount == 0 {
		return nil, newError(KindUnreadable, "PDF has no pages", nil)
	}

	var b strings.Builder
	var warnings []string
	extracted := 0
	for i := 1; i <= pageCount; i++ {
		text, err := pageText(reader, i)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("page %d: %v", i, err))
			l.log.Warn("document.load.page_skipped", "filename", filename, "page", i, "error", err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			warnings = append(warnings, fmt.Sprintf("page %d: no text layer", i))
			continue
		}
		b.WriteString(fmt.Sprintf("\n--- Page %d ---\n", i))
		b.WriteString(strings.TrimSpace(text))
		b.WriteString("\n")
		extracted++
	}

	if extracted == 0 {
		return nil, newError(KindUnreadable, "no page yielded text", nil)
	}

	doc := &entity.FormDocument{
		Filename:  filename,
		Content:   content,
		FileSize:  int64(len(content)),
		PageCount: pageCount,
		Text:      strings.TrimSpace(b.String()),
		Warnings:  warnings,
	}

	l.log.Info("document.load.ok",
		"filename", filename,
		"bytes", doc.FileSize,
		"pages", pageCount,
		"pages_with_text", extracted,
		"text_len", len(doc.Text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return doc, nil
}

// openReader shields callers from the parser's panics on malformed xref
// tables and truncated streams.
func openReader(content []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pdf parser panic: %v", rec)
		}
	}()
	return pdf.NewReader(bytes.NewReader(content), int64(len(content)))
}

func pageText(r *pdf.Reader, i int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pdf parser panic: %v", rec)
		}
	}()
	page := r.Page(i)
	if page.V.IsNull() {
		return "", fmt.Errorf("page object is null")
	}
	return page.GetPlainText(nil)
}
