package ocr

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"busboard/internal/ports"
)

// Tesseract shells out to the local tesseract binary. Used as a fallback
// when the remote OCR service is unavailable, or standalone when no service
// is configured.
type Tesseract struct {
	binary string
}

var _ ports.OCRExtractor = (*Tesseract)(nil)

func NewTesseract() *Tesseract {
	return &Tesseract{binary: "tesseract"}
}

// Available reports whether the tesseract binary is on PATH.
func Available() bool {
	_, err := exec.LookPath("tesseract")
	return err == nil
}

func (t *Tesseract) ExtractText(ctx context.Context, image []byte) (ports.Extraction, error) {
	dir, err := os.MkdirTemp("", "busboard-ocr-*")
	if err != nil {
		return ports.Extraction{}, err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "input")
	if err := os.WriteFile(path, image, 0o600); err != nil {
		return ports.Extraction{}, err
	}

	out, err := exec.CommandContext(ctx, t.binary, path, "stdout").Output()
	if cerr := ctx.Err(); cerr != nil {
		return ports.Extraction{}, cerr
	}
	if err != nil {
		return ports.Extraction{}, fmt.Errorf("tesseract: %w", err)
	}
	// The CLI reports no confidence; use a fixed conservative value.
	return ports.Extraction{Text: string(out), Confidence: 0.5}, nil
}
