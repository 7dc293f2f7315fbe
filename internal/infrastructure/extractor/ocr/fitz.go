package ocr

import (
	"context"
	"fmt"

	"github.com/gen2brain/go-fitz"
)

// FitzRenderer rasterizes PDF pages with MuPDF.
type FitzRenderer struct{}

func (FitzRenderer) RenderPages(ctx context.Context, path string, dpi float64, fn func(page int, image []byte) error) (int, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	for i := 0; i < pages; i++ {
		if err := ctx.Err(); err != nil {
			return pages, err
		}
		png, err := doc.ImagePNG(i, dpi)
		if err != nil {
			return pages, fmt.Errorf("render page %d: %w", i+1, err)
		}
		if err := fn(i, png); err != nil {
			return pages, err
		}
	}
	return pages, nil
}
