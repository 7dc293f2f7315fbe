package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"

	"github.com/kirillkom/document-intake/internal/core/domain"
)

// Strategy extracts text from a file on local disk.
type Strategy interface {
	ExtractFile(ctx context.Context, path string) (string, error)
}

type StrategyFunc func(ctx context.Context, path string) (string, error)

func (f StrategyFunc) ExtractFile(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}

// Dispatcher picks an extraction strategy from the upload's FileKind. Every
// supported kind must have a strategy; there is no fallthrough.
type Dispatcher struct {
	strategies map[domain.FileKind]Strategy
}

func NewDispatcher(pdf, image, docx Strategy) *Dispatcher {
	return &Dispatcher{strategies: map[domain.FileKind]Strategy{
		domain.KindPDF:  pdf,
		domain.KindPNG:  image,
		domain.KindJPG:  image,
		domain.KindJPEG: image,
		domain.KindDOCX: docx,
	}}
}

func (d *Dispatcher) Extract(ctx context.Context, doc *domain.UploadedDocument) (string, error) {
	strategy, ok := d.strategies[doc.Kind]
	if !ok || strategy == nil {
		return "", &domain.UnsupportedFileTypeError{Extension: strings.ToLower(filepath.Ext(doc.Filename))}
	}

	mime, err := checkSignature(doc.Kind, doc.Path)
	if err != nil {
		return "", err
	}
	doc.MimeType = mime

	text, err := strategy.ExtractFile(ctx, doc.Path)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", doc.Kind, err)
	}
	return text, nil
}

// checkSignature rejects files whose magic bytes contradict the extension
// before they reach the cgo decoders. It returns the sniffed MIME type.
func checkSignature(kind domain.FileKind, path string) (string, error) {
	head, err := readHead(path)
	if err != nil {
		return "", fmt.Errorf("sniff content: %w", err)
	}
	mt, _ := filetype.Match(head)

	switch {
	case kind == domain.KindPDF && !filetype.Is(head, "pdf"):
		return "", fmt.Errorf("content is not a valid PDF (detected %s)", describe(mt))
	case kind.IsImage() && !filetype.IsImage(head):
		return "", fmt.Errorf("content is not a valid image (detected %s)", describe(mt))
	case kind == domain.KindDOCX && !filetype.Is(head, "docx") && !filetype.Is(head, "zip"):
		return "", &domain.DecodeError{Format: "DOCX", Err: fmt.Errorf("file is not a zip archive (detected %s)", describe(mt))}
	}
	return mt.MIME.Value, nil
}

func readHead(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	head := make([]byte, 8192)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return head[:n], nil
}

func describe(mt types.Type) string {
	if mt == filetype.Unknown || mt.MIME.Value == "" {
		return "unknown"
	}
	return mt.MIME.Value
}
