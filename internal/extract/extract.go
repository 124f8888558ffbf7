package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	ErrUnreadableDocument = errors.New("document is unreadable")
	ErrOcrUnavailable     = errors.New("ocr engine unavailable")
	ErrOcrFailure         = errors.New("ocr engine failed")
)

// UnsupportedText is returned as-is for media types the extractor does not
// handle; it is a sentinel, not an error.
const UnsupportedText = "Formato no soportado"

const (
	MediaTypePDF  = "application/pdf"
	MediaTypePNG  = "image/png"
	MediaTypeJPEG = "image/jpeg"
)

// Extractor turns uploaded documents into plain text for the conversation
// context. OCR shells out to the configured tesseract binary.
type Extractor struct {
	tesseractPath string
}

// New returns an Extractor using the given tesseract executable for images.
func New(tesseractPath string) *Extractor {
	return &Extractor{tesseractPath: tesseractPath}
}

// Extract returns the text content of the document according to its declared
// media type. Callers are expected to swallow extraction errors into an empty
// context; the sentinel errors only classify what went wrong.
func (e *Extractor) Extract(ctx context.Context, content []byte, mediaType string) (string, error) {
	switch mediaType {
	case MediaTypePDF:
		return e.extractPDF(content)
	case MediaTypePNG, MediaTypeJPEG:
		return e.extractImage(ctx, content)
	default:
		return UnsupportedText, nil
	}
}

// extractPDF concatenates the plain text of every page in order.
func (e *Extractor) extractPDF(content []byte) (text string, err error) {
	// The pdf package panics on some malformed inputs; fold those into the
	// unreadable-document error instead of crashing the session.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: %v", ErrUnreadableDocument, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}

	var builder strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			log.Printf("[extract] page %d unreadable, skipping: %v", i, err)
			continue
		}
		builder.WriteString(pageText)
	}

	return strings.TrimSpace(builder.String()), nil
}

// extractImage runs tesseract over the whole image via stdin/stdout.
func (e *Extractor) extractImage(ctx context.Context, content []byte) (string, error) {
	if e.tesseractPath == "" {
		return "", ErrOcrUnavailable
	}
	if _, err := os.Stat(e.tesseractPath); err != nil {
		if _, lookErr := exec.LookPath(e.tesseractPath); lookErr != nil {
			return "", fmt.Errorf("%w: %s", ErrOcrUnavailable, e.tesseractPath)
		}
	}

	cmd := exec.CommandContext(ctx, e.tesseractPath, "stdin", "stdout")
	cmd.Stdin = bytes.NewReader(content)

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: %v (%s)", ErrOcrFailure, err, strings.TrimSpace(stderr.String()))
	}

	return strings.TrimSpace(out.String()), nil
}
