//go:build cgo

package recovery

import (
	"context"
	"fmt"
	"image"

	fitz "github.com/gen2brain/go-fitz"
)

// FitzRasterizer renders PDF pages through MuPDF.
type FitzRasterizer struct {
	DPI float64
}

// NewPageRasterizer returns the MuPDF-backed rasterizer.
func NewPageRasterizer(dpi float64) PageRasterizer {
	return FitzRasterizer{DPI: dpi}
}

func (r FitzRasterizer) FirstPage(ctx context.Context, data []byte) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("recovery: open document: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() < 1 {
		return nil, ErrEmptyDocument
	}
	dpi := r.DPI
	if dpi <= 0 {
		dpi = 200
	}
	img, err := doc.ImageDPI(0, dpi)
	if err != nil {
		return nil, fmt.Errorf("recovery: render first page: %w", err)
	}
	return img, nil
}
